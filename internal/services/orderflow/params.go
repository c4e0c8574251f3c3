// Package orderflow turns a trend episode into a stream of trades.
//
// Log-price follows dlogP = -v^2/2 dt + v sqrt(dt) Z with Z drawn from a
// standard normal truncated so that logP stays between a drifting support
// and resistance band. The local volatility v scales with sqrt(size/meanSize).
package orderflow

import (
	"fmt"
	"math"

	"TradeSynth/internal/domain/models"
)

// TrendParams configures trade generation for one trend label.
type TrendParams struct {
	// Volatility of log-price per sqrt(second).
	Volatility float64 `yaml:"volatility" validate:"gte=0"`
	// BandDrift moves both bands, in log units per second.
	BandDrift float64 `yaml:"band_drift"`
	// BandWidth is the initial half-width of the band around the start price.
	BandWidth float64 `yaml:"band_width" validate:"gt=0"`
	// BandNoise is the stddev of the per-trade Gaussian perturbation of each band.
	BandNoise  float64 `yaml:"band_noise" validate:"gte=0"`
	MedianRate float64 `yaml:"median_rate" validate:"gt=0"`
	MeanRate   float64 `yaml:"mean_rate" validate:"gt=0"`
	MedianSize float64 `yaml:"median_size" validate:"gt=0"`
	MeanSize   float64 `yaml:"mean_size" validate:"gt=0"`
}

func (p TrendParams) validate() error {
	for name, v := range map[string]float64{
		"volatility": p.Volatility, "band_drift": p.BandDrift, "band_width": p.BandWidth, "band_noise": p.BandNoise,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if p.Volatility < 0 || p.BandNoise < 0 {
		return fmt.Errorf("volatility and band_noise must be non-negative")
	}
	if p.BandWidth <= 0 {
		return fmt.Errorf("band_width must be positive, got %v", p.BandWidth)
	}
	return nil
}

// DefaultTrendParams returns the built-in per-trend order-flow parameters.
func DefaultTrendParams() [models.TrendCount]TrendParams {
	mk := func(vol, drift, width, medRate, meanRate float64) TrendParams {
		return TrendParams{
			Volatility: vol,
			BandDrift:  drift,
			BandWidth:  width,
			BandNoise:  5e-5,
			MedianRate: medRate,
			MeanRate:   meanRate,
			MedianSize: 100,
			MeanSize:   250,
		}
	}
	return [models.TrendCount]TrendParams{
		models.StrongUptrend:   mk(4e-4, 1.5e-5, 3e-3, 3, 5),
		models.MidUptrend:      mk(3e-4, 8e-6, 3e-3, 2.5, 4),
		models.WeakUptrend:     mk(2.5e-4, 3e-6, 3e-3, 2, 3),
		models.Consolidation:   mk(2e-4, 0, 2e-3, 1.5, 2.5),
		models.WeakDowntrend:   mk(2.5e-4, -3e-6, 3e-3, 2, 3),
		models.MidDowntrend:    mk(3e-4, -8e-6, 3e-3, 2.5, 4),
		models.StrongDowntrend: mk(4e-4, -1.5e-5, 3e-3, 3, 5),
	}
}
