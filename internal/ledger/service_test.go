package ledger_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/ledger"
	"github.com/ariefcatur/agro-market/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func tickingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newLedger(t *testing.T) (*memstore.Store, *ledger.Service) {
	t.Helper()
	mem := memstore.New()
	mem.PutProduct(inventory.Product{
		ID: "P", VendorID: "vendor-1", Name: "Red Chili", Category: "vegetables",
		Unit: "kg", UnitPrice: decimal.NewFromInt(3), AvailableQuantity: decimal.NewFromInt(40),
	})
	svc := ledger.NewService(mem, "https://market.example/", nil).
		WithClock(tickingClock(time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)))
	return mem, svc
}

func collect(t *testing.T, svc *ledger.Service, productID string) []ledger.Step {
	t.Helper()
	var steps []ledger.Step
	for st, err := range svc.Journey(context.Background(), productID) {
		require.NoError(t, err)
		steps = append(steps, st)
	}
	return steps
}

func TestOpenRecordAndJourney(t *testing.T) {
	_, svc := newLedger(t)
	ctx := context.Background()

	opened, err := svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)
	require.Len(t, opened.LedgerID, 32)
	require.Len(t, opened.Hash, 64)
	require.Equal(t, "https://market.example/verify-supply-chain?ledger="+opened.LedgerID, opened.QRCode)

	rec, err := svc.RecordEvent(ctx, "P", "harvest_verified", map[string]any{"location": "Farm A"}, "inspector-7")
	require.NoError(t, err)
	require.Equal(t, opened.LedgerID, rec.LedgerID)
	require.NotEqual(t, opened.Hash, rec.Hash)

	steps := collect(t, svc, "P")
	require.Len(t, steps, 2)

	require.Equal(t, 1, steps[0].StepNumber)
	require.Equal(t, ledger.EventProductCreated, steps[0].EventType)
	require.Equal(t, opened.QRCode, steps[0].QRCode)
	require.Equal(t, "Red Chili", steps[0].Data["productName"])
	require.True(t, steps[0].HashVerified)

	require.Equal(t, 2, steps[1].StepNumber)
	require.Equal(t, "harvest_verified", steps[1].EventType)
	require.Equal(t, rec.Hash, steps[1].Hash)
	require.Empty(t, steps[1].QRCode)
	require.Equal(t, "inspector-7", steps[1].Data["actorId"])
	require.Equal(t, map[string]any{"location": "Farm A"}, steps[1].Data["data"])
	require.True(t, steps[1].HashVerified)
	require.True(t, steps[0].Timestamp.Before(steps[1].Timestamp))
}

func TestOpenLedgerRequiresOwnership(t *testing.T) {
	_, svc := newLedger(t)

	_, err := svc.OpenLedger(context.Background(), "P", "vendor-2")
	require.ErrorIs(t, err, ledger.ErrProductNotFound)
	_, err = svc.OpenLedger(context.Background(), "missing", "vendor-1")
	require.ErrorIs(t, err, ledger.ErrProductNotFound)
}

func TestRecordEventErrors(t *testing.T) {
	_, svc := newLedger(t)
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, "P", "harvest_verified", nil, "")
	require.ErrorIs(t, err, ledger.ErrNoLedger)

	_, err = svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)

	_, err = svc.RecordEvent(ctx, "P", " ", nil, "")
	require.ErrorIs(t, err, ledger.ErrEventTypeRequired)
	_, err = svc.RecordEvent(ctx, "", "shipped", nil, "")
	require.ErrorIs(t, err, ledger.ErrMissingProduct)
}

func TestRecordEventTargetsLatestLedger(t *testing.T) {
	_, svc := newLedger(t)
	ctx := context.Background()

	first, err := svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)
	second, err := svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)
	require.NotEqual(t, first.LedgerID, second.LedgerID)

	rec, err := svc.RecordEvent(ctx, "P", "packed", nil, "")
	require.NoError(t, err)
	require.Equal(t, second.LedgerID, rec.LedgerID)

	steps := collect(t, svc, "P")
	require.Len(t, steps, 2)
	require.Equal(t, second.LedgerID, steps[0].LedgerID)
}

func TestJourneyWithoutLedgerIsEmpty(t *testing.T) {
	_, svc := newLedger(t)
	require.Empty(t, collect(t, svc, "P"))
}

func TestJourneyStopsEarly(t *testing.T) {
	_, svc := newLedger(t)
	ctx := context.Background()
	_, err := svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)
	for _, ev := range []string{"harvested", "packed", "shipped"} {
		_, err := svc.RecordEvent(ctx, "P", ev, nil, "")
		require.NoError(t, err)
	}

	n := 0
	for range svc.Journey(ctx, "P") {
		n++
		if n == 2 {
			break
		}
	}
	require.Equal(t, 2, n)

	steps := collect(t, svc, "P")
	require.Len(t, steps, 4)
	for i, st := range steps {
		require.Equal(t, i+1, st.StepNumber)
		if i > 0 {
			require.False(t, st.Timestamp.Before(steps[i-1].Timestamp))
		}
	}
}

func TestVerifyIntegrity(t *testing.T) {
	_, svc := newLedger(t)
	ctx := context.Background()
	opened, err := svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)
	_, err = svc.RecordEvent(ctx, "P", "harvest_verified", map[string]any{"grade": "A", "weightKg": 12.5}, "")
	require.NoError(t, err)

	rep, err := svc.VerifyIntegrity(ctx, opened.LedgerID)
	require.NoError(t, err)
	require.True(t, rep.Verified)
	require.Equal(t, ledger.IntegrityPerfect, rep.IntegrityStatus)
	require.Equal(t, 2, rep.TotalEvents)
	require.Equal(t, 1, rep.Verifications[0].Step)
	require.Equal(t, "harvest_verified", rep.Verifications[1].EventType)

	again, err := svc.VerifyIntegrity(ctx, opened.LedgerID)
	require.NoError(t, err)
	require.Equal(t, rep, again)
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	cases := map[string]func(*ledger.Entry){
		"payload": func(e *ledger.Entry) {
			e.EventData = json.RawMessage(`{"data":{"grade":"C"}}`)
		},
		"event type": func(e *ledger.Entry) { e.EventType = "harvest_rejected" },
		"timestamp":  func(e *ledger.Entry) { e.CreatedAt = e.CreatedAt.Add(-time.Hour) },
		"hash":       func(e *ledger.Entry) { e.Hash = strings.Repeat("0", 64) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			mem, svc := newLedger(t)
			ctx := context.Background()
			opened, err := svc.OpenLedger(ctx, "P", "vendor-1")
			require.NoError(t, err)
			_, err = svc.RecordEvent(ctx, "P", "harvest_verified", map[string]any{"grade": "A"}, "")
			require.NoError(t, err)

			require.True(t, mem.Tamper(2, mutate))

			rep, err := svc.VerifyIntegrity(ctx, opened.LedgerID)
			require.NoError(t, err)
			require.False(t, rep.Verified)
			require.Equal(t, ledger.IntegrityTampered, rep.IntegrityStatus)

			var flags []bool
			for _, v := range rep.Verifications {
				flags = append(flags, v.HashVerified)
			}
			if name == "timestamp" {
				// the rewritten entry now sorts first
				require.Equal(t, []bool{false, true}, flags)
			} else {
				require.Equal(t, []bool{true, false}, flags)
			}

			verified := 0
			for st, err := range svc.Journey(ctx, "P") {
				require.NoError(t, err)
				if st.HashVerified {
					verified++
				}
			}
			require.Equal(t, 1, verified)
		})
	}
}

func TestVerifyIntegrityUnknownLedger(t *testing.T) {
	_, svc := newLedger(t)

	rep, err := svc.VerifyIntegrity(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, rep.Verified)
	require.Equal(t, ledger.IntegrityNotFound, rep.IntegrityStatus)
	require.Equal(t, "Ledger not found", rep.Reason)
	require.Zero(t, rep.TotalEvents)
}

func TestChainStatistics(t *testing.T) {
	mem, svc := newLedger(t)
	ctx := context.Background()
	mem.PutProduct(inventory.Product{ID: "Q", VendorID: "vendor-1", UnitPrice: decimal.NewFromInt(1), AvailableQuantity: decimal.NewFromInt(1)})

	a, err := svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)
	_, err = svc.RecordEvent(ctx, "P", "harvested", nil, "")
	require.NoError(t, err)
	_, err = svc.OpenLedger(ctx, "Q", "vendor-1")
	require.NoError(t, err)

	all, err := svc.ChainStatistics(ctx, "")
	require.NoError(t, err)
	require.Equal(t, ledger.Stats{TotalChains: 2, ProductsTracked: 2, TotalEvents: 3, EventTypes: 2}, all)

	one, err := svc.ChainStatistics(ctx, a.LedgerID)
	require.NoError(t, err)
	require.Equal(t, ledger.Stats{TotalChains: 1, ProductsTracked: 1, TotalEvents: 2, EventTypes: 2}, one)
}

func TestRecordEventRejectsNUL(t *testing.T) {
	mem, svc := newLedger(t)
	ctx := context.Background()
	_, err := svc.OpenLedger(ctx, "P", "vendor-1")
	require.NoError(t, err)

	cases := map[string]struct {
		eventType string
		payload   map[string]any
		actor     string
	}{
		"payload value": {"harvested", map[string]any{"note": "a\x00b"}, ""},
		"nested value":  {"harvested", map[string]any{"lots": []any{map[string]any{"id": "\x00"}}}, ""},
		"payload key":   {"harvested", map[string]any{"k\x00": 1}, ""},
		"event type":    {"harv\x00ested", nil, ""},
		"actor":         {"harvested", nil, "inspector\x00"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.RecordEvent(ctx, "P", tc.eventType, tc.payload, tc.actor)
			require.ErrorIs(t, err, ledger.ErrInvalidEventText)
		})
	}

	st, err := mem.Stats(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 1, st.TotalEvents)
}
