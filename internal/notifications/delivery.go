package notifications

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/agro-market/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Deliverer hands a notification to the user-facing channel.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogDeliverer writes the delivery to the structured log. Push, email and
// in-app delivery are handled outside this service.
type LogDeliverer struct{ Log *zap.Logger }

func (d LogDeliverer) Deliver(_ context.Context, n Notification) error {
	d.Log.Info("notification delivered",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
		zap.String("title", n.Title),
	)
	return nil
}

type DeliveryService struct {
	Dedup     Deduper
	Deliverer Deliverer
	Log       *zap.Logger
}

// HandleMessage is installed as the consumer handler.
func (s *DeliveryService) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("dropping undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != EventNotificationCreated {
		return nil
	}

	first, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	n, err := kafka.UnwrapPayload[Notification](env.Payload)
	if err != nil {
		s.Log.Warn("dropping bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if err := s.Deliverer.Deliver(ctx, n); err != nil {
		_ = s.Dedup.Forget(ctx, env.EventID)
		return err
	}
	return nil
}
