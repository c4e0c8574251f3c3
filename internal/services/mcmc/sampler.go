// Package mcmc implements a generic Metropolis-Hastings sampler.
package mcmc

import (
	"math"
	"math/rand/v2"
)

// Config controls a sampling run. There is no burn-in or thinning: the state
// after the last iteration is the sample.
type Config struct {
	Iterations int `yaml:"iterations" default:"2000" validate:"gte=0"`
}

// LogLikelihood scores a state. -Inf marks an impossible state.
type LogLikelihood[S any] func(S) float64

// Proposal returns a candidate derived from current, or false when no move
// applies. It must not mutate current.
type Proposal[S any] func(r *rand.Rand, current S) (S, bool)

// Stats counts what happened during a run.
type Stats struct {
	Proposed int
	Accepted int
	NoMove   int
}

// AcceptanceRate is Accepted/Proposed, or 0 before any proposal.
func (s Stats) AcceptanceRate() float64 {
	if s.Proposed == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Proposed)
}

// Sampler binds a likelihood and a proposal for one state type.
type Sampler[S any] struct {
	LogLikelihood LogLikelihood[S]
	Propose       Proposal[S]
	// OnAccept, if set, observes every accepted state.
	OnAccept func(step int, state S)
}

// Run performs cfg.Iterations Metropolis steps from initial.
func (s Sampler[S]) Run(cfg Config, initial S, r *rand.Rand) (S, Stats) {
	var st Stats
	current := initial
	currentLL := s.LogLikelihood(current)

	for i := 0; i < cfg.Iterations; i++ {
		proposed, ok := s.Propose(r, current)
		if !ok {
			st.NoMove++
			continue
		}
		st.Proposed++

		proposedLL := s.LogLikelihood(proposed)
		// NaN ratios (both states impossible) never pass the comparison.
		if math.Log(r.Float64()) < proposedLL-currentLL {
			current, currentLL = proposed, proposedLL
			st.Accepted++
			if s.OnAccept != nil {
				s.OnAccept(i, current)
			}
		}
	}
	return current, st
}

// Run is the functional form of Sampler.Run.
func Run[S any](cfg Config, logLik LogLikelihood[S], propose Proposal[S], initial S, r *rand.Rand) S {
	out, _ := Sampler[S]{LogLikelihood: logLik, Propose: propose}.Run(cfg, initial, r)
	return out
}
