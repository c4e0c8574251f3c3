// Package bars buckets a day's trades into one-second bars and rolls them up
// into running one- and five-minute bars.
package bars

import "math"

// Combiner accumulates a volume-weighted mean and variance one sample at a
// time. A sample may itself summarize a group through its standard
// deviation, which lets second bars merge into minute bars without revisiting
// trades. The zero value is ready to use.
type Combiner struct {
	total float64
	mean  float64
	m2    float64
}

// Add folds in a sample with the given weight. Non-positive weights are ignored.
func (c *Combiner) Add(weight, value, stddev float64) {
	if weight <= 0 {
		return
	}
	c.total += weight
	delta := value - c.mean
	c.mean += delta * weight / c.total
	c.m2 += weight * (stddev*stddev + delta*(value-c.mean))
}

// Reset clears the accumulator for the next period.
func (c *Combiner) Reset() { *c = Combiner{} }

// Weight is the total weight seen since the last reset.
func (c *Combiner) Weight() float64 { return c.total }

// Mean is the weighted mean, or 0 when nothing was added.
func (c *Combiner) Mean() float64 { return c.mean }

// Variance is the weighted population variance, clamped at zero.
func (c *Combiner) Variance() float64 {
	if c.total <= 0 {
		return 0
	}
	v := c.m2 / c.total
	if v < 0 {
		return 0
	}
	return v
}

func (c *Combiner) StdDev() float64 { return math.Sqrt(c.Variance()) }
