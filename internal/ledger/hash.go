package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// timestampLayout is fixed width at microsecond precision, the resolution
// Postgres keeps, so a stored timestamp formats back to the same bytes.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Stamp normalises t to what the store can round-trip.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

type hashRecord struct {
	EventData json.RawMessage `json:"eventData"`
	EventType string          `json:"eventType"`
	Timestamp string          `json:"timestamp"`
}

// ContentHash is hex(SHA-256) over the RFC 8785 canonical form of
// {eventData, eventType, timestamp}. Canonicalisation sorts keys and
// normalises numbers, so the stored JSON may be re-encoded by the database
// without changing the hash.
func ContentHash(eventType string, eventData json.RawMessage, at time.Time) (string, error) {
	if len(eventData) == 0 {
		eventData = json.RawMessage(`{}`)
	}
	raw, err := json.Marshal(hashRecord{
		EventData: eventData,
		EventType: eventType,
		Timestamp: FormatTimestamp(at),
	})
	if err != nil {
		return "", fmt.Errorf("encode hash record: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize hash record: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Matches recomputes e's hash from its own stored fields. Content that can no
// longer be canonicalised counts as a mismatch.
func Matches(e Entry) bool {
	h, err := ContentHash(e.EventType, e.EventData, e.CreatedAt)
	return err == nil && h == e.Hash
}
