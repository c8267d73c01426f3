package kmeans

import "math"

type cluster struct {
	sum   float64
	count int
}

func (c *cluster) add(v float64) {
	c.sum += v
	c.count++
}

func (c *cluster) mean(fallback float64) float64 {
	if c.count == 0 {
		return fallback
	}
	return c.sum / float64(c.count)
}

// OneDim splits one-dimensional data into a high and a low cluster (k=2).
//
// Centers start at the minimum and maximum. Each pass assigns every value to
// the nearer center and moves both centers to the mean of their members,
// until the midpoint moves less than 1e-6 or 300 passes elapse.
//
// The result is true for members of the high cluster. When every value is
// equal all of them are high.
func OneDim(values []float64) []bool {
	high := make([]bool, len(values))
	if len(values) == 0 {
		return high
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	etol := math.Pow10(-6)
	for range 300 {
		threshold := (lo + hi) / 2.
		var highs, lows cluster
		for i, v := range values {
			high[i] = threshold <= v
			if high[i] {
				highs.add(v)
			} else {
				lows.add(v)
			}
		}
		lo, hi = lows.mean(lo), highs.mean(hi)
		if math.Abs((lo+hi)/2.-threshold) < etol {
			break
		}
	}
	return high
}
