package usecase

import (
	"fmt"
	"math"
	"math/rand/v2"

	"TradeSynth/internal/domain/models"
	"TradeSynth/internal/services/bars"
	"TradeSynth/internal/services/episodes"
	"TradeSynth/internal/services/orderflow"
)

// daySeedStream is the fixed PCG stream selector; the day is chosen by the seed.
const daySeedStream = 0x9e3779b97f4a7c15

// DayRand returns the random source of one day. Every day is an independent
// stream, so any worker can produce any day and get the same result.
func DayRand(baseSeed uint64, dayID int64) *rand.Rand {
	return rand.New(rand.NewPCG(baseSeed+uint64(dayID), daySeedStream))
}

// EpisodeSpan locates one trend episode inside a chained day.
type EpisodeSpan struct {
	Session models.DaySession
	Trend   models.Trend
	// Start and Seconds are in seconds from the day start.
	Start   float64
	Seconds float64
	// Trades[FirstTrade:EndTrade] belong to this episode.
	FirstTrade int
	EndTrade   int
	StartPrice float64
	EndPrice   float64
}

// Day is everything generated for one day_id.
type Day struct {
	ID       int64
	Episodes models.DayResult
	Spans    []EpisodeSpan
	Trades   []models.Trade
	Bars     models.DayBars
}

// DayGenerator assembles whole days: episode hierarchy, chained order flow
// and bars. It holds no mutable state and is safe for concurrent use.
type DayGenerator struct {
	episodes   *episodes.Sampler
	flow       *orderflow.Simulator
	dayMinutes float64
	startPrice float64
	baseSeed   uint64
}

// NewDayGenerator creates a new DayGenerator.
func NewDayGenerator(ep *episodes.Sampler, flow *orderflow.Simulator, dayMinutes, startPrice float64, baseSeed uint64) (*DayGenerator, error) {
	if ep == nil || flow == nil {
		return nil, fmt.Errorf("day generator needs an episode sampler and an order-flow simulator")
	}
	if !(dayMinutes > 0) || math.IsInf(dayMinutes, 0) {
		return nil, fmt.Errorf("day minutes must be positive, got %v", dayMinutes)
	}
	if !(startPrice > 0) || math.IsInf(startPrice, 0) {
		return nil, fmt.Errorf("start price must be positive, got %v", startPrice)
	}
	return &DayGenerator{
		episodes:   ep,
		flow:       flow,
		dayMinutes: dayMinutes,
		startPrice: startPrice,
		baseSeed:   baseSeed,
	}, nil
}

func (g *DayGenerator) BaseSeed() uint64 { return g.baseSeed }

func (g *DayGenerator) DayMinutes() float64 { return g.dayMinutes }

func (g *DayGenerator) StartPrice() float64 { return g.startPrice }

// Simulate samples the episodes of dayID and chains their order flow. Each
// episode starts at the previous episode's last price and its trade times are
// shifted by the elapsed day time.
func (g *DayGenerator) Simulate(dayID int64) Day {
	r := DayRand(g.baseSeed, dayID)
	result := g.episodes.SampleDay(r, g.dayMinutes)

	day := Day{ID: dayID, Episodes: result}
	price := g.startPrice
	var offset float64
	for i, session := range result.Sessions {
		for _, ep := range result.Trends[i] {
			seconds := ep.Duration * bars.SecondsPerMinute
			res := g.flow.SimulateEpisode(r, ep.Label, seconds, price)

			span := EpisodeSpan{
				Session:    session.Label,
				Trend:      ep.Label,
				Start:      offset,
				Seconds:    seconds,
				FirstTrade: len(day.Trades),
				StartPrice: res.StartPrice,
				EndPrice:   res.EndPrice,
			}
			for _, t := range res.Trades {
				t.Time += offset
				day.Trades = append(day.Trades, t)
			}
			span.EndTrade = len(day.Trades)
			day.Spans = append(day.Spans, span)

			price = res.EndPrice
			offset += seconds
		}
	}
	return day
}

// Generate simulates dayID and aggregates it into bars.
func (g *DayGenerator) Generate(dayID int64) Day {
	day := g.Simulate(dayID)
	day.Bars = bars.Aggregate(dayID, day.Episodes, day.Trades, g.startPrice)
	return day
}
