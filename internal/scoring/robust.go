package scoring

import (
	"math"
	"sort"
)

const (
	// madScale makes MAD consistent with the standard deviation under
	// normality, so z magnitudes stay comparable across fallbacks.
	madScale = 1.4826
	// zClip bounds every z-score; a single 100x meme outlier must not
	// drown the rest of the batch.
	zClip = 6.0
	eps   = 1e-9
)

// computeMedian returns the median of xs. 0 for an empty slice.
func computeMedian(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// computeMAD returns the median absolute deviation around med.
func computeMAD(xs []float64, med float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - med)
	}
	return computeMedian(devs)
}

// computeMean calculates the arithmetic mean of xs.
func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computeStddev calculates the sample standard deviation (n-1 denominator).
func computeStddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		diff := x - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC. p is the percentile (0.85 = 85th).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// robustZ computes outlier-robust z-scores for one feature column:
// (x - median) / (MAD * 1.4826). A collapsed MAD falls back to the
// mean/stddev pair; a collapsed stddev zeroes the column. Every output
// is clipped to [-zClip, zClip].
func robustZ(xs []float64) []float64 {
	zs := make([]float64, len(xs))
	if len(xs) == 0 {
		return zs
	}

	center := computeMedian(xs)
	scale := computeMAD(xs, center) * madScale
	if scale < eps {
		center = computeMean(xs)
		scale = computeStddev(xs, center)
	}
	if scale < eps {
		return zs // constant column carries no cross-sectional signal
	}

	for i, x := range xs {
		z := (x - center) / scale
		if z > zClip {
			z = zClip
		} else if z < -zClip {
			z = -zClip
		}
		zs[i] = z
	}
	return zs
}

// signalThreshold derives the cycle's emission bar from the batch's
// instability distribution: the p-th percentile, never below the absolute
// floor. Batches smaller than minBatch have no usable distribution and
// fall straight to the floor.
func signalThreshold(instabilities []float64, p, floor float64, minBatch int) float64 {
	if len(instabilities) < minBatch {
		return floor
	}
	sorted := make([]float64, len(instabilities))
	copy(sorted, instabilities)
	sort.Float64s(sorted)
	return math.Max(computePercentile(sorted, p), floor)
}
