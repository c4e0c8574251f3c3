// Package distributions holds the parameter conversions and samplers shared by
// the episode samplers and the order-flow simulator. All sampling functions take
// an explicit *rand.Rand so results are reproducible per seed.
package distributions

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrInvalidParams is returned when a distribution cannot be built from the
// given parameters.
var ErrInvalidParams = errors.New("invalid distribution parameters")

// Kind names a continuous family usable for durations.
type Kind string

const (
	KindLogNormal Kind = "lognormal"
	KindGamma     Kind = "gamma"
)

// Continuous is a positive continuous distribution.
type Continuous interface {
	LogProb(x float64) float64
	Sample(r *rand.Rand) float64
	Mean() float64
	StdDev() float64
}

// NewFromMeanStd builds a distribution of the given kind from its first two moments.
func NewFromMeanStd(kind Kind, mean, std float64) (Continuous, error) {
	switch kind {
	case KindLogNormal, "":
		return NewLogNormalFromMeanStd(mean, std)
	case KindGamma:
		return NewGammaFromMeanStd(mean, std)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, kind)
	}
}

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidParams, name, v)
	}
	return nil
}

// RoundStochastic rounds x down or up with probability equal to its
// fractional part, so E[RoundStochastic(x)] == x.
func RoundStochastic(r *rand.Rand, x float64) int64 {
	fl := math.Floor(x)
	if r.Float64() < x-fl {
		return int64(fl) + 1
	}
	return int64(fl)
}

// SqrtActivityCorrection returns exp(sigma^2/8), the factor c for which
// E[c*sqrt(A)] == 1 when A ~ LogNormal(-sigma^2/2, sigma).
func SqrtActivityCorrection(sigma float64) float64 {
	return math.Exp(sigma * sigma / 8)
}
