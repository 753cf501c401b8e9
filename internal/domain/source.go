package domain

// Source represents how a token entered the watch set.
type Source string

const (
	SourceStream Source = "STREAM"
	SourceScan   Source = "SCAN"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	return s == SourceStream || s == SourceScan
}
