package domain

// Candle represents one OHLCV bar synthesized from metric history.
type Candle struct {
	OpenTimeMs int64   // bar start timestamp (ms)
	Open       float64 // first price in bucket
	High       float64 // max price in bucket
	Low        float64 // min price in bucket
	Close      float64 // last price in bucket
	Volume     float64 // summed bucket volume in USD
}

// Body returns the absolute open-close distance.
func (c *Candle) Body() float64 {
	d := c.Close - c.Open
	if d < 0 {
		return -d
	}
	return d
}

// Range returns the high-low distance.
func (c *Candle) Range() float64 {
	return c.High - c.Low
}

// Bullish reports whether the bar closed above its open.
func (c *Candle) Bullish() bool {
	return c.Close > c.Open
}
