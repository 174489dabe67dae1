package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Service struct {
	store   Store
	baseURL string
	log     *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService builds the ledger. baseURL prefixes verification references.
func NewService(store Store, baseURL string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		tracer:  otel.Tracer("github.com/ariefcatur/agro-market/internal/ledger"),
		now:     time.Now,
	}
}

// WithClock overrides the clock for testing.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type productSnapshot struct {
	ProductID   string          `json:"productId"`
	VendorID    string          `json:"vendorId"`
	ProductName string          `json:"productName"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Timestamp   string          `json:"timestamp"`
}

type eventRecord struct {
	LedgerID  string         `json:"ledgerId"`
	ProductID string         `json:"productId"`
	EventType string         `json:"eventType"`
	Timestamp string         `json:"timestamp"`
	ActorID   string         `json:"actorId,omitempty"`
	Data      map[string]any `json:"data"`
}

func newLedgerID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// VerificationURL is the public reference handed out for a ledger.
func (s *Service) VerificationURL(ledgerID string) string {
	return s.baseURL + "/verify-supply-chain?ledger=" + url.QueryEscape(ledgerID)
}

// OpenLedger starts a new chain for a product owned by vendorID. The opening
// entry snapshots the product as it is now.
func (s *Service) OpenLedger(ctx context.Context, productID, vendorID string) (out Opened, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.OpenLedger", trace.WithAttributes(
		attribute.String("product.id", productID)))
	defer func() { endSpan(span, err) }()

	p, err := s.store.OwnedProduct(ctx, productID, vendorID)
	if errors.Is(err, inventory.ErrNotFound) {
		return Opened{}, ErrProductNotFound
	}
	if err != nil {
		return Opened{}, fmt.Errorf("load product: %w", err)
	}

	at := Stamp(s.now())
	data, err := json.Marshal(productSnapshot{
		ProductID:   p.ID,
		VendorID:    p.VendorID,
		ProductName: p.Name,
		Category:    p.Category,
		Quantity:    p.AvailableQuantity,
		Unit:        p.Unit,
		Timestamp:   FormatTimestamp(at),
	})
	if err != nil {
		return Opened{}, err
	}
	hash, err := ContentHash(EventProductCreated, data, at)
	if err != nil {
		return Opened{}, err
	}

	ledgerID := newLedgerID()
	qr := s.VerificationURL(ledgerID)
	if _, err := s.store.Append(ctx, Entry{
		LedgerID:  ledgerID,
		ProductID: p.ID,
		ActorID:   vendorID,
		EventType: EventProductCreated,
		EventData: data,
		Hash:      hash,
		QRCode:    qr,
		Status:    StatusActive,
		CreatedAt: at,
	}); err != nil {
		return Opened{}, fmt.Errorf("append entry: %w", err)
	}

	s.log.Info("ledger opened", zap.String("ledger_id", ledgerID), zap.String("product_id", p.ID))
	return Opened{LedgerID: ledgerID, Hash: hash, QRCode: qr}, nil
}

// RecordEvent appends an event to the product's most recently opened ledger.
func (s *Service) RecordEvent(ctx context.Context, productID, eventType string, payload map[string]any, actorID string) (out Recorded, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RecordEvent", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.String("ledger.event_type", eventType)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(productID) == "" {
		return Recorded{}, ErrMissingProduct
	}
	if strings.TrimSpace(eventType) == "" {
		return Recorded{}, ErrEventTypeRequired
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if err := checkText(productID, eventType, actorID, payload); err != nil {
		return Recorded{}, err
	}

	ledgerID, err := s.store.LatestLedgerID(ctx, productID)
	if err != nil {
		return Recorded{}, err
	}

	at := Stamp(s.now())
	data, err := json.Marshal(eventRecord{
		LedgerID:  ledgerID,
		ProductID: productID,
		EventType: eventType,
		Timestamp: FormatTimestamp(at),
		ActorID:   actorID,
		Data:      payload,
	})
	if err != nil {
		return Recorded{}, fmt.Errorf("encode event: %w", err)
	}
	hash, err := ContentHash(eventType, data, at)
	if err != nil {
		return Recorded{}, err
	}

	if _, err := s.store.Append(ctx, Entry{
		LedgerID:  ledgerID,
		ProductID: productID,
		ActorID:   actorID,
		EventType: eventType,
		EventData: data,
		Hash:      hash,
		Status:    StatusRecorded,
		CreatedAt: at,
	}); err != nil {
		return Recorded{}, fmt.Errorf("append entry: %w", err)
	}

	s.log.Info("ledger event recorded",
		zap.String("ledger_id", ledgerID), zap.String("event_type", eventType), zap.String("actor_id", actorID))
	return Recorded{LedgerID: ledgerID, Hash: hash, Timestamp: at}, nil
}

// checkText rejects NUL characters anywhere in the event, keys included.
// Postgres text and JSONB cannot store them.
func checkText(productID, eventType, actorID string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	if hasNUL(productID) || hasNUL(eventType) || hasNUL(actorID) || hasNUL(doc) {
		return ErrInvalidEventText
	}
	return nil
}

func hasNUL(v any) bool {
	switch x := v.(type) {
	case string:
		return strings.ContainsRune(x, 0)
	case map[string]any:
		for k, e := range x {
			if hasNUL(k) || hasNUL(e) {
				return true
			}
		}
	case []any:
		for _, e := range x {
			if hasNUL(e) {
				return true
			}
		}
	}
	return false
}

// Journey streams the product's current ledger in chronological order. Each
// range over the result re-reads the store. A product without a ledger
// yields nothing.
func (s *Service) Journey(ctx context.Context, productID string) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		ledgerID, err := s.store.LatestLedgerID(ctx, productID)
		if errors.Is(err, ErrNoLedger) {
			return
		}
		if err != nil {
			yield(Step{}, err)
			return
		}

		n, stopped := 0, false
		err = s.store.EachEntry(ctx, ledgerID, func(e Entry) bool {
			n++
			step := Step{
				StepNumber:   n,
				LedgerID:     e.LedgerID,
				EventType:    e.EventType,
				Timestamp:    e.CreatedAt,
				Hash:         e.Hash,
				QRCode:       e.QRCode,
				HashVerified: Matches(e),
			}
			if err := json.Unmarshal(e.EventData, &step.Data); err != nil {
				stopped = !yield(Step{}, fmt.Errorf("entry %d payload: %w", e.ID, err))
				return !stopped
			}
			stopped = !yield(step, nil)
			return !stopped
		})
		if err != nil && !stopped {
			yield(Step{}, err)
		}
	}
}

// VerifyIntegrity recomputes every entry's hash. Tampering is reported in
// the result; only storage failures return an error.
func (s *Service) VerifyIntegrity(ctx context.Context, ledgerID string) (rep Report, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.VerifyIntegrity", trace.WithAttributes(
		attribute.String("ledger.id", ledgerID)))
	defer func() { endSpan(span, err) }()

	rep = Report{LedgerID: ledgerID, Verified: true, Verifications: []Verification{}}
	err = s.store.EachEntry(ctx, ledgerID, func(e Entry) bool {
		ok := Matches(e)
		rep.Verifications = append(rep.Verifications, Verification{
			Step:         len(rep.Verifications) + 1,
			EventType:    e.EventType,
			Timestamp:    e.CreatedAt,
			HashVerified: ok,
		})
		rep.Verified = rep.Verified && ok
		return true
	})
	if err != nil {
		return Report{}, err
	}

	rep.TotalEvents = len(rep.Verifications)
	switch {
	case rep.TotalEvents == 0:
		return Report{LedgerID: ledgerID, Verifications: []Verification{},
			IntegrityStatus: IntegrityNotFound, Reason: "Ledger not found"}, nil
	case rep.Verified:
		rep.IntegrityStatus = IntegrityPerfect
	default:
		rep.IntegrityStatus = IntegrityTampered
		s.log.Warn("ledger tampering detected", zap.String("ledger_id", ledgerID))
	}
	span.SetAttributes(attribute.String("ledger.integrity", rep.IntegrityStatus))
	return rep, nil
}

// ChainStatistics aggregates over every ledger, or one when ledgerID is set.
func (s *Service) ChainStatistics(ctx context.Context, ledgerID string) (Stats, error) {
	return s.store.Stats(ctx, ledgerID)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
