package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/agro-market/internal/ledger"
	"github.com/ariefcatur/agro-market/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LedgerHandler exposes the provenance ledger. Journey, verify and stats are
// public so any party can check a product's history.
type LedgerHandler struct {
	Ledger *ledger.Service
	Log    *zap.Logger
}

type RecordEventReq struct {
	EventType string         `json:"eventType"`
	EventData map[string]any `json:"eventData"`
}

func (h *LedgerHandler) Register(r chi.Router) {
	r.Route("/supply-chain", func(r chi.Router) {
		r.Post("/ledgers/{productId}", h.openLedger)
		r.Post("/events/{productId}", h.recordEvent)
		r.Get("/journey/{productId}", h.journey)
		r.Get("/verify/{ledgerId}", h.verify)
		r.Get("/stats", h.stats)
	})
}

func (h *LedgerHandler) openLedger(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if actor.Role != orders.RoleVendor {
		writeError(w, h.Log, orders.ErrForbidden)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opened, err := h.Ledger.OpenLedger(ctx, chi.URLParam(r, "productId"), actor.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Supply chain ledger created",
		"ledgerId": opened.LedgerID,
		"hash":     opened.Hash,
		"qrCode":   opened.QRCode,
	})
}

func (h *LedgerHandler) recordEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	var req RecordEventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Ledger.RecordEvent(ctx, chi.URLParam(r, "productId"), req.EventType, req.EventData, actor.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Event recorded in supply chain",
		"ledgerId":  rec.LedgerID,
		"hash":      rec.Hash,
		"timestamp": rec.Timestamp,
	})
}

func (h *LedgerHandler) journey(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	steps := []ledger.Step{}
	for step, err := range h.Ledger.Journey(ctx, productID) {
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		steps = append(steps, step)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"productId":   productID,
		"journey":     steps,
		"totalEvents": len(steps),
	})
}

func (h *LedgerHandler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep, err := h.Ledger.VerifyIntegrity(ctx, chi.URLParam(r, "ledgerId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *LedgerHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Ledger.ChainStatistics(ctx, r.URL.Query().Get("ledgerId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
