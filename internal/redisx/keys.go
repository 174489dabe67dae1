package redisx

import "time"

const (
	// Place-order idempotency: idem:order:place:{buyer_id}:{idempotency_key} -> "pending" | JSON order ids
	KeyIdemPlaceOrder = "idem:order:place:%s:%s"

	// Delivery dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
