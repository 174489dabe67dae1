package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ariefcatur/agro-market/internal/memstore"
	"github.com/ariefcatur/agro-market/internal/notifications"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	sent []kafkago.Message
	err  error
}

func (p *fakePublisher) Send(_ context.Context, msgs ...kafkago.Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func seed(t *testing.T, mem *memstore.Store, users ...string) []notifications.Notification {
	t.Helper()
	var out []notifications.Notification
	for _, u := range users {
		n := notifications.New(u, "Order Status Update", "confirmed", notifications.TypeOrder)
		require.NoError(t, mem.Notify(context.Background(), n))
		out = append(out, n)
	}
	return out
}

func TestRelayFlushPublishesOnce(t *testing.T) {
	mem := memstore.New()
	seeded := seed(t, mem, "buyer-1", "vendor-1", "buyer-1")
	pub := &fakePublisher{}
	r := &notifications.Relay{Outbox: mem, Publisher: pub, Producer: "api", Batch: 2, Log: zap.NewNop()}
	ctx := context.Background()

	n, err := r.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = r.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = r.Flush(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.Len(t, pub.sent, 3)
	for i, m := range pub.sent {
		require.Equal(t, seeded[i].UserID, string(m.Key))
		var env notifications.Envelope
		require.NoError(t, json.Unmarshal(m.Value, &env))
		require.Equal(t, notifications.EventNotificationCreated, env.EventType)
		require.Equal(t, "api", env.Producer)
		require.Equal(t, seeded[i].ID, env.CorrelationID)
	}
}

func TestRelayKeepsRowsWhenSendFails(t *testing.T) {
	mem := memstore.New()
	seed(t, mem, "buyer-1")
	pub := &fakePublisher{err: errors.New("broker down")}
	r := &notifications.Relay{Outbox: mem, Publisher: pub, Log: zap.NewNop()}

	_, err := r.Flush(context.Background())
	require.Error(t, err)

	pub.err = nil
	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEnvelopeIDIsStable(t *testing.T) {
	n := notifications.New("u", "t", "m", notifications.TypeSystem)
	a, err := notifications.NewEnvelope("api", n)
	require.NoError(t, err)
	b, err := notifications.NewEnvelope("notifier", n)
	require.NoError(t, err)
	require.Equal(t, a.EventID, b.EventID)

	other, err := notifications.NewEnvelope("api", notifications.New("u", "t", "m", notifications.TypeSystem))
	require.NoError(t, err)
	require.NotEqual(t, a.EventID, other.EventID)
}
