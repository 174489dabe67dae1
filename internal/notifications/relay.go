package notifications

import (
	"context"
	"time"

	"github.com/ariefcatur/agro-market/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Outbox is the read side of the notification table used by the relay.
type Outbox interface {
	Unpublished(ctx context.Context, limit int) ([]Notification, error)
	MarkPublished(ctx context.Context, ids []string) error
}

type Publisher interface {
	Send(ctx context.Context, msgs ...kafkago.Message) error
}

// Relay moves committed notifications from the outbox to Kafka. Delivery is
// at-least-once: a crash between Send and MarkPublished re-sends the batch,
// and consumers dedup on the envelope's event id.
type Relay struct {
	Outbox    Outbox
	Publisher Publisher
	Producer  string
	Batch     int
	Interval  time.Duration
	Log       *zap.Logger
}

func (r *Relay) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		r.Interval = time.Second
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.Log.Error("outbox flush failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Flush publishes one batch and returns how many rows were relayed.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	if r.Batch <= 0 {
		r.Batch = 100
	}
	pending, err := r.Outbox.Unpublished(ctx, r.Batch)
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	msgs := make([]kafkago.Message, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, n := range pending {
		env, err := NewEnvelope(r.Producer, n)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, kafkago.Message{
			Key:   PartitionKey(n.UserID),
			Value: kafka.MustMarshal(env),
			Headers: []kafkago.Header{
				{Key: "x-event-type", Value: []byte(EventNotificationCreated)},
				{Key: "x-event-version", Value: []byte("1")},
			},
		})
		ids = append(ids, n.ID)
	}

	if err := r.Publisher.Send(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.Outbox.MarkPublished(ctx, ids); err != nil {
		return 0, err
	}
	r.Log.Debug("outbox relayed", zap.Int("count", len(ids)))
	return len(ids), nil
}
