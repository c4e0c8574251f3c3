package orderflow

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"TradeSynth/internal/domain/models"
	"TradeSynth/internal/services/distributions"
)

type trendModel struct {
	params     TrendParams
	rate       distributions.LogNormal
	size       distributions.LogNormal
	correction float64
}

// Simulator is immutable after construction; concurrent use requires one
// *rand.Rand per goroutine.
type Simulator struct {
	trends     [models.TrendCount]trendModel
	traceBands bool
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithBandTrace records the support/resistance band seen by every trade.
func WithBandTrace() Option {
	return func(s *Simulator) { s.traceBands = true }
}

// NewSimulator validates params and precomputes the per-trend distributions.
func NewSimulator(params [models.TrendCount]TrendParams, opts ...Option) (*Simulator, error) {
	s := &Simulator{}
	for i, p := range params {
		label := models.Trend(i)
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("trend %s: %w", label, err)
		}
		rate, err := distributions.NewLogNormalFromMedianMean(p.MedianRate, p.MeanRate)
		if err != nil {
			return nil, fmt.Errorf("trend %s trade rate: %w", label, err)
		}
		size, err := distributions.NewLogNormalFromMedianMean(p.MedianSize, p.MeanSize)
		if err != nil {
			return nil, fmt.Errorf("trend %s trade size: %w", label, err)
		}
		s.trends[i] = trendModel{
			params:     p,
			rate:       rate,
			size:       size,
			correction: distributions.SqrtActivityCorrection(size.Sigma),
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Band is the log-price support/resistance pair in effect for one trade.
type Band struct {
	Support    float64
	Resistance float64
}

// EpisodeResult is the simulated trade stream of one episode.
type EpisodeResult struct {
	Trades     []models.Trade
	StartPrice float64
	EndPrice   float64
	// Bands is filled only by a simulator built WithBandTrace.
	Bands []Band
}

// SimulateEpisode generates the trades of a trend episode lasting seconds,
// starting from startPrice. At least one trade is always produced.
func (s *Simulator) SimulateEpisode(r *rand.Rand, trend models.Trend, seconds, startPrice float64) EpisodeResult {
	tm := &s.trends[trend]
	p := tm.params

	count := distributions.RoundStochastic(r, tm.rate.Sample(r)*seconds)
	if count < 1 {
		count = 1
	}
	times := make([]float64, count)
	for i := range times {
		times[i] = r.Float64() * seconds
	}
	slices.Sort(times)

	res := EpisodeResult{
		Trades:     make([]models.Trade, count),
		StartPrice: startPrice,
	}
	if s.traceBands {
		res.Bands = make([]Band, count)
	}

	logP := math.Log(startPrice)
	support := logP - p.BandWidth
	resistance := logP + p.BandWidth
	meanSize := tm.size.Mean()

	for k := range times {
		dt := 1 / p.MeanRate
		if k > 0 {
			dt = times[k] - times[k-1]
		}

		sizeF := tm.size.Sample(r)
		size := int64(math.Round(sizeF))
		if size < 1 {
			size = 1
		}
		vol := p.Volatility * tm.correction * math.Sqrt(sizeF/meanSize)

		support += p.BandDrift*dt + p.BandNoise*r.NormFloat64()
		resistance += p.BandDrift*dt + p.BandNoise*r.NormFloat64()

		sd := vol * math.Sqrt(dt)
		if sd > 0 {
			mu := -vol * vol / 2 * dt
			lo := (support - logP - mu) / sd
			hi := (resistance - logP - mu) / sd
			logP += mu + sd*distributions.TruncatedStdNormal(r, lo, hi)
		}

		res.Trades[k] = models.Trade{Time: times[k], Price: math.Exp(logP), Size: size, Trend: trend}
		if s.traceBands {
			res.Bands[k] = Band{Support: support, Resistance: resistance}
		}
	}
	res.EndPrice = res.Trades[count-1].Price
	return res
}
