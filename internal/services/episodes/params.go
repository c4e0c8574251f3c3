// Package episodes partitions a trading day into sessions and each session
// into trend episodes using Metropolis-Hastings over episode durations and labels.
//
// Durations are minutes kept on a 2^-20 minute grid so that transfer moves
// preserve the partition sum exactly.
package episodes

import (
	"fmt"
	"math"

	"TradeSynth/internal/domain/models"
	"TradeSynth/internal/services/distributions"
	"TradeSynth/internal/services/mcmc"
)

const gridScale = 1 << 20

// Quantize rounds minutes onto the duration grid.
func Quantize(minutes float64) float64 {
	return math.Round(minutes*gridScale) / gridScale
}

// CanonicalSessionMinutes are the regular-hours session lengths of a 390 minute day.
var CanonicalSessionMinutes = [models.SessionCount]float64{60, 270, 60}

// DurationParams describes a duration distribution by its moments, in minutes.
type DurationParams struct {
	Kind   distributions.Kind `yaml:"kind"`
	Mean   float64            `yaml:"mean" validate:"gt=0"`
	StdDev float64            `yaml:"stddev" validate:"gt=0"`
}

func (p DurationParams) build() (distributions.Continuous, error) {
	return distributions.NewFromMeanStd(p.Kind, p.Mean, p.StdDev)
}

// Params configures both sampling levels.
type Params struct {
	Sessions [models.SessionCount]DurationParams
	Trends   [models.TrendCount]DurationParams
	// Weights[s][t] is the prior selection weight of trend t inside session s.
	Weights [models.SessionCount][models.TrendCount]float64

	// MaxDelta bounds the minutes moved by one transfer proposal.
	MaxDelta     float64
	TransferProb float64
	SessionMCMC  mcmc.Config
	TrendMCMC    mcmc.Config
}

// DefaultSessionParams returns the built-in session duration targets.
func DefaultSessionParams() [models.SessionCount]DurationParams {
	return [models.SessionCount]DurationParams{
		models.Morning: {Kind: distributions.KindLogNormal, Mean: 60, StdDev: 15},
		models.Mid:     {Kind: distributions.KindLogNormal, Mean: 270, StdDev: 30},
		models.Close:   {Kind: distributions.KindLogNormal, Mean: 60, StdDev: 15},
	}
}

// DefaultTrendParams returns the built-in trend duration targets.
func DefaultTrendParams() [models.TrendCount]DurationParams {
	strong := DurationParams{Kind: distributions.KindLogNormal, Mean: 12, StdDev: 6}
	mid := DurationParams{Kind: distributions.KindLogNormal, Mean: 20, StdDev: 10}
	weak := DurationParams{Kind: distributions.KindLogNormal, Mean: 30, StdDev: 15}
	return [models.TrendCount]DurationParams{
		models.StrongUptrend:   strong,
		models.MidUptrend:      mid,
		models.WeakUptrend:     weak,
		models.Consolidation:   {Kind: distributions.KindLogNormal, Mean: 40, StdDev: 20},
		models.WeakDowntrend:   weak,
		models.MidDowntrend:    mid,
		models.StrongDowntrend: strong,
	}
}

// DefaultWeights returns the per-session trend selection weights.
func DefaultWeights() [models.SessionCount][models.TrendCount]float64 {
	return [models.SessionCount][models.TrendCount]float64{
		models.Morning: {0.10, 0.15, 0.15, 0.20, 0.15, 0.15, 0.10},
		models.Mid:     {0.04, 0.10, 0.18, 0.36, 0.18, 0.10, 0.04},
		models.Close:   {0.08, 0.14, 0.16, 0.24, 0.16, 0.14, 0.08},
	}
}

// DefaultParams returns a complete parameter set.
func DefaultParams() Params {
	return Params{
		Sessions:     DefaultSessionParams(),
		Trends:       DefaultTrendParams(),
		Weights:      DefaultWeights(),
		MaxDelta:     15,
		TransferProb: 0.7,
		SessionMCMC:  mcmc.Config{Iterations: 2000},
		TrendMCMC:    mcmc.Config{Iterations: 5000},
	}
}

func (p Params) validate() error {
	if !(p.MaxDelta > 0) || math.IsInf(p.MaxDelta, 0) {
		return fmt.Errorf("max delta must be positive, got %v", p.MaxDelta)
	}
	if p.TransferProb < 0 || p.TransferProb > 1 {
		return fmt.Errorf("transfer probability must be in [0,1], got %v", p.TransferProb)
	}
	if p.SessionMCMC.Iterations < 0 || p.TrendMCMC.Iterations < 0 {
		return fmt.Errorf("mcmc iterations must be non-negative")
	}
	for s, row := range p.Weights {
		var sum float64
		for t, w := range row {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("weight %s/%s must be non-negative, got %v",
					models.DaySession(s), models.Trend(t), w)
			}
			sum += w
		}
		if sum <= 0 {
			return fmt.Errorf("session %s has no positive trend weight", models.DaySession(s))
		}
	}
	return nil
}
