package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/agro-market/internal/ledger"
	"github.com/ariefcatur/agro-market/internal/orders"
	"go.uber.org/zap"
)

// Identity is asserted by the upstream auth gateway.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

var errUnauthenticated = errors.New("missing caller identity")

func actorFrom(r *http.Request) (orders.Actor, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	role := orders.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
	if id == "" || role == "" {
		return orders.Actor{}, errUnauthenticated
	}
	return orders.Actor{ID: id, Role: role}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case orders.IsValidation(err),
		errors.Is(err, ledger.ErrEventTypeRequired),
		errors.Is(err, ledger.ErrMissingProduct),
		errors.Is(err, ledger.ErrInvalidEventText):
		return http.StatusBadRequest
	case orders.IsNotFound(err),
		errors.Is(err, ledger.ErrProductNotFound),
		errors.Is(err, ledger.ErrNoLedger):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case orders.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusServiceUnavailable
}

// writeError maps the error taxonomy onto HTTP. Anything unclassified is a
// storage failure: the caller is told to retry and the cause stays in the log.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusServiceUnavailable {
		if errors.Is(err, context.Canceled) {
			log.Info("request cancelled", zap.Error(err))
		} else {
			log.Error("storage failure", zap.Error(err))
		}
		writeJSON(w, code, map[string]any{"error": "temporarily unavailable, please retry", "retryable": true})
		return
	}

	body := map[string]any{"error": err.Error()}
	var pe *orders.ProductError
	if errors.As(err, &pe) {
		body["product_id"] = pe.ProductID
	}
	writeJSON(w, code, body)
}
