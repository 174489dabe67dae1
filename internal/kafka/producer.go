package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	w   *kafka.Writer
	log *zap.Logger
}

// NewProducer writes to one topic, hashing keys to partitions so messages
// sharing a key stay ordered.
func NewProducer(brokers []string, topic string, batch int, log *zap.Logger) *Producer {
	if batch <= 0 {
		batch = 100
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchSize:    batch,
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log,
	}
}

// Send writes synchronously and returns once every message is acknowledged.
func (p *Producer) Send(ctx context.Context, msgs ...kafka.Message) error {
	now := time.Now()
	for i := range msgs {
		if msgs[i].Time.IsZero() {
			msgs[i].Time = now
		}
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		p.log.Error("kafka write failed", zap.String("topic", p.w.Topic), zap.Int("count", len(msgs)), zap.Error(err))
		return err
	}
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error { return p.w.Close() }
