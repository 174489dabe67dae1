// Package ledger is the provenance ledger: an append-only, per-product event
// history where every entry carries a SHA-256 hash of its canonical content.
package ledger

import (
	"encoding/json"
	"errors"
	"time"
)

const EventProductCreated = "product_created"

// Entry statuses. The opening entry of a chain is active, later ones recorded.
const (
	StatusActive   = "active"
	StatusRecorded = "recorded"
)

// Integrity labels reported by VerifyIntegrity.
const (
	IntegrityPerfect  = "Perfect"
	IntegrityTampered = "Tampered"
	IntegrityNotFound = "NotFound"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrNoLedger          = errors.New("no ledger found for product")
	ErrEventTypeRequired = errors.New("eventType is required")
	ErrMissingProduct    = errors.New("product id is required")
	ErrInvalidEventText  = errors.New("event fields must not contain NUL characters")
)

type Entry struct {
	ID        int64           `json:"id"`
	LedgerID  string          `json:"ledgerId"`
	ProductID string          `json:"productId"`
	ActorID   string          `json:"actorId,omitempty"`
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
	Hash      string          `json:"hash"`
	QRCode    string          `json:"qrCode,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Opened is returned by OpenLedger.
type Opened struct {
	LedgerID string `json:"ledgerId"`
	Hash     string `json:"hash"`
	QRCode   string `json:"qrCode"`
}

// Recorded is returned by RecordEvent.
type Recorded struct {
	LedgerID  string    `json:"ledgerId"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

// Step is one journey entry, numbered from 1 in chronological order.
type Step struct {
	StepNumber   int            `json:"stepNumber"`
	LedgerID     string         `json:"ledgerId"`
	EventType    string         `json:"eventType"`
	Timestamp    time.Time      `json:"timestamp"`
	Hash         string         `json:"hash"`
	Data         map[string]any `json:"data"`
	QRCode       string         `json:"qrCode,omitempty"`
	HashVerified bool           `json:"hashVerified"`
}

type Verification struct {
	Step         int       `json:"step"`
	EventType    string    `json:"eventType"`
	Timestamp    time.Time `json:"timestamp"`
	HashVerified bool      `json:"hashVerified"`
}

type Report struct {
	Verified        bool           `json:"verified"`
	LedgerID        string         `json:"ledgerId"`
	TotalEvents     int            `json:"totalEvents"`
	Verifications   []Verification `json:"verifications"`
	IntegrityStatus string         `json:"integrityStatus"`
	Reason          string         `json:"reason,omitempty"`
}

type Stats struct {
	TotalChains     int64 `json:"total_chains"`
	ProductsTracked int64 `json:"products_tracked"`
	TotalEvents     int64 `json:"total_events"`
	EventTypes      int64 `json:"event_types"`
}
