package episodes

import (
	"fmt"
	"math"
	"math/rand/v2"

	"TradeSynth/internal/domain/models"
	"TradeSynth/internal/services/distributions"
	"TradeSynth/internal/services/mcmc"
)

// Sampler draws day partitions. It is immutable after construction and safe
// to share between goroutines as long as each uses its own *rand.Rand.
type Sampler struct {
	params       Params
	sessionDists [models.SessionCount]distributions.Continuous
	trendDists   [models.TrendCount]distributions.Continuous
	logWeights   [models.SessionCount][models.TrendCount]float64
	cumWeights   [models.SessionCount][models.TrendCount]float64
}

// NewSampler validates p and builds the label distributions.
func NewSampler(p Params) (*Sampler, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s := &Sampler{params: p}
	for i, dp := range p.Sessions {
		d, err := dp.build()
		if err != nil {
			return nil, fmt.Errorf("session %s duration: %w", models.DaySession(i), err)
		}
		s.sessionDists[i] = d
	}
	for i, dp := range p.Trends {
		d, err := dp.build()
		if err != nil {
			return nil, fmt.Errorf("trend %s duration: %w", models.Trend(i), err)
		}
		s.trendDists[i] = d
	}
	for si, row := range p.Weights {
		var total float64
		for _, w := range row {
			total += w
		}
		var cum float64
		for ti, w := range row {
			s.logWeights[si][ti] = math.Log(w / total)
			cum += w / total
			s.cumWeights[si][ti] = cum
		}
	}
	return s, nil
}

// Params returns the parameters the sampler was built with.
func (s *Sampler) Params() Params { return s.params }

// SampleDay partitions dayMinutes into sessions and every session into trends.
func (s *Sampler) SampleDay(r *rand.Rand, dayMinutes float64) models.DayResult {
	sessions := s.SampleSessions(r, dayMinutes)
	trends := make([][]models.Episode[models.Trend], len(sessions))
	for i, se := range sessions {
		trends[i] = s.SampleTrends(r, se.Label, se.Duration)
	}
	return models.DayResult{Sessions: sessions, Trends: trends}
}

// SampleSessions runs the session-level chain.
func (s *Sampler) SampleSessions(r *rand.Rand, dayMinutes float64) []models.Episode[models.DaySession] {
	out, _ := s.sessionChain().Run(s.params.SessionMCMC, s.initialSessions(dayMinutes), r)
	return out
}

// SampleTrends runs the trend-level chain for one session.
func (s *Sampler) SampleTrends(r *rand.Rand, session models.DaySession, minutes float64) []models.Episode[models.Trend] {
	out, _ := s.trendChain(session).Run(s.params.TrendMCMC, s.initialTrends(r, session, minutes), r)
	return out
}

func (s *Sampler) initialSessions(dayMinutes float64) []models.Episode[models.DaySession] {
	parent := Quantize(dayMinutes)
	var canonical float64
	for _, m := range CanonicalSessionMinutes {
		canonical += m
	}
	durations := make([]float64, models.SessionCount)
	for i, m := range CanonicalSessionMinutes {
		durations[i] = parent * m / canonical
	}
	closeOnGrid(durations, parent)

	eps := make([]models.Episode[models.DaySession], models.SessionCount)
	for i, ses := range models.Sessions {
		eps[i] = models.Episode[models.DaySession]{Label: ses, Duration: durations[i]}
	}
	return eps
}

func (s *Sampler) initialTrends(r *rand.Rand, session models.DaySession, minutes float64) []models.Episode[models.Trend] {
	parent := Quantize(minutes)
	var eps []models.Episode[models.Trend]
	var total float64
	for total < parent {
		label := s.drawTrend(r, session)
		d := s.trendDists[label].Sample(r)
		eps = append(eps, models.Episode[models.Trend]{Label: label, Duration: d})
		total += d
	}
	durations := make([]float64, len(eps))
	for i := range eps {
		durations[i] = eps[i].Duration * parent / total
	}
	durations = closeOnGrid(durations, parent)
	eps = eps[:len(durations)]
	for i := range eps {
		eps[i].Duration = durations[i]
	}
	return eps
}

// closeOnGrid quantizes durations and assigns the remainder to the last entry
// so that the sum equals parent exactly. A non-positive remainder is folded
// into its predecessor.
func closeOnGrid(durations []float64, parent float64) []float64 {
	if len(durations) == 0 {
		return durations
	}
	var sum float64
	last := len(durations) - 1
	for i := 0; i < last; i++ {
		durations[i] = Quantize(durations[i])
		sum += durations[i]
	}
	durations[last] = parent - sum
	for last > 0 && durations[last] <= 0 {
		durations[last-1] += durations[last]
		durations = durations[:last]
		last--
	}
	return durations
}

func (s *Sampler) drawTrend(r *rand.Rand, session models.DaySession) models.Trend {
	u := r.Float64()
	cum := s.cumWeights[session]
	for t, c := range cum {
		if u < c {
			return models.Trend(t)
		}
	}
	// Rounding left u above the final cumulative weight.
	for t := len(cum) - 1; t >= 0; t-- {
		if s.params.Weights[session][t] > 0 {
			return models.Trend(t)
		}
	}
	return models.Consolidation
}

func (s *Sampler) sessionChain() mcmc.Sampler[[]models.Episode[models.DaySession]] {
	return mcmc.Sampler[[]models.Episode[models.DaySession]]{
		LogLikelihood: func(eps []models.Episode[models.DaySession]) float64 {
			var ll float64
			for _, e := range eps {
				ll += s.sessionDists[e.Label].LogProb(e.Duration)
			}
			return ll
		},
		Propose: func(r *rand.Rand, cur []models.Episode[models.DaySession]) ([]models.Episode[models.DaySession], bool) {
			return transfer(r, cur, s.params.MaxDelta)
		},
	}
}

func (s *Sampler) trendChain(session models.DaySession) mcmc.Sampler[[]models.Episode[models.Trend]] {
	return mcmc.Sampler[[]models.Episode[models.Trend]]{
		LogLikelihood: func(eps []models.Episode[models.Trend]) float64 {
			var ll float64
			for _, e := range eps {
				ll += s.logWeights[session][e.Label] + s.trendDists[e.Label].LogProb(e.Duration)
			}
			return ll
		},
		Propose: func(r *rand.Rand, cur []models.Episode[models.Trend]) ([]models.Episode[models.Trend], bool) {
			if len(cur) >= 2 && r.Float64() < s.params.TransferProb {
				return transfer(r, cur, s.params.MaxDelta)
			}
			return relabel(r, cur)
		},
	}
}

// transfer moves a grid-aligned delta from one element to another.
func transfer[L models.Label](r *rand.Rand, cur []models.Episode[L], maxDelta float64) ([]models.Episode[L], bool) {
	n := len(cur)
	if n < 2 {
		return nil, false
	}
	i := r.IntN(n)
	j := r.IntN(n - 1)
	if j >= i {
		j++
	}
	delta := Quantize((2*r.Float64() - 1) * maxDelta)
	if delta == 0 {
		return nil, false
	}
	next := make([]models.Episode[L], n)
	copy(next, cur)
	next[i].Duration += delta
	next[j].Duration -= delta
	return next, true
}

// relabel draws a new label uniformly over all trends, ignoring the prior weights.
func relabel(r *rand.Rand, cur []models.Episode[models.Trend]) ([]models.Episode[models.Trend], bool) {
	if len(cur) == 0 {
		return nil, false
	}
	next := make([]models.Episode[models.Trend], len(cur))
	copy(next, cur)
	next[r.IntN(len(next))].Label = models.Trend(r.IntN(int(models.TrendCount)))
	return next, true
}
