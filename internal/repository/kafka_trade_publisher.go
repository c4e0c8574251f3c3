package repository

import (
	"context"
	"time"

	"TradeSynth/internal/domain/models"
	"TradeSynth/internal/service/ratelimit"
	pkgkafka "TradeSynth/pkg/kafka"
)

const publishChunk = 500

// TickPublisher implements TradePublisher for Kafka using the tick payload
// {symbol, t, c, v} with t in unix milliseconds.
type TickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	limiter  *ratelimit.Limiter
	rate     float64
}

// NewTickPublisher creates Kafka publisher.
func NewTickPublisher(producer *pkgkafka.Producer, topic string) *TickPublisher {
	return &TickPublisher{producer: producer, topic: topic}
}

// SetRateLimit caps publishing at perSec messages per second with a burst of
// one second. Zero or less removes the cap.
func (p *TickPublisher) SetRateLimit(perSec float64) {
	if perSec <= 0 {
		p.limiter, p.rate = nil, 0
		return
	}
	p.limiter, p.rate = ratelimit.New(), perSec
}

// TickMessages converts trades of a day into keyed tick messages.
func TickMessages(symbol string, dayStart time.Time, trades []models.Trade) []pkgkafka.Message {
	msgs := make([]pkgkafka.Message, len(trades))
	for i, t := range trades {
		ts := dayStart.Add(time.Duration(t.Time * float64(time.Second)))
		msgs[i] = pkgkafka.Message{
			Key: []byte(symbol),
			Value: map[string]interface{}{
				"symbol": symbol,
				"t":      ts.UnixMilli(),
				"c":      t.Price,
				"v":      t.Size,
				"trend":  t.Trend.String(),
			},
		}
	}
	return msgs
}

func (p *TickPublisher) PublishTrades(ctx context.Context, symbol string, dayStart time.Time, trades []models.Trade) error {
	msgs := TickMessages(symbol, dayStart, trades)
	for lo := 0; lo < len(msgs); lo += publishChunk {
		hi := min(lo+publishChunk, len(msgs))
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx, p.topic, float64(hi-lo), p.rate, p.rate); err != nil {
				return err
			}
		}
		if err := p.producer.PublishBatch(ctx, p.topic, msgs[lo:hi]); err != nil {
			return err
		}
	}
	return nil
}

func (p *TickPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
