package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/agro-market/internal/orders"
	"github.com/ariefcatur/agro-market/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Orders *orders.Service
	Redis  *redis.Client // optional
	Log    *zap.Logger
}

type PlaceOrderReq struct {
	Items           []orders.CartItem `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
	DeliveryDate    string            `json:"delivery_date,omitempty"` // YYYY-MM-DD
	Notes           string            `json:"notes,omitempty"`
}

type PlaceOrderResp struct {
	Message    string   `json:"message"`
	OrderIDs   []string `json:"order_ids"`
	Idempotent bool     `json:"idempotent"`
}

type UpdateStatusReq struct {
	Status orders.Status `json:"status"`
}

type statusView struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if actor.Role != orders.RoleBuyer {
		writeError(w, h.Log, orders.ErrForbidden)
		return
	}

	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	var date *time.Time
	if req.DeliveryDate != "" {
		d, err := time.Parse(time.DateOnly, req.DeliveryDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delivery_date must be YYYY-MM-DD"})
			return
		}
		date = &d
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// A key is claimed before placing so overlapping retries cannot place twice.
	idemKey := ""
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" && h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemPlaceOrder, actor.ID, k)
		claimed, stored, err := redisx.ClaimIdempotency(ctx, h.Redis, key)
		if err != nil {
			writeError(w, h.Log, fmt.Errorf("claim idempotency key: %w", err))
			return
		}
		if !claimed {
			var ids []string
			if stored != "" && json.Unmarshal([]byte(stored), &ids) == nil {
				writeJSON(w, http.StatusOK, PlaceOrderResp{Message: "Order already placed", OrderIDs: ids, Idempotent: true})
				return
			}
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":     "a request with this Idempotency-Key is in progress",
				"retryable": true,
			})
			return
		}
		idemKey = key
	}

	ids, err := h.Orders.PlaceOrder(ctx, orders.PlaceOrderRequest{
		BuyerID:         actor.ID,
		Items:           req.Items,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryDate:    date,
		Notes:           req.Notes,
	})
	if idemKey != "" {
		h.settleIdempotency(ctx, idemKey, ids, err)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, PlaceOrderResp{Message: "Order placed successfully", OrderIDs: ids})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, actor)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"), actor)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus returns the status from the order row just read.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"), actor)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView{Status: o.Status, UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, chi.URLParam(r, "id"), actor, req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order status updated successfully", "order": o})
}

// settleIdempotency records the placed ids under key, or releases the claim
// when placement failed. It runs even if the request context has ended.
func (h *OrdersHandler) settleIdempotency(ctx context.Context, key string, ids []string, placeErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if placeErr != nil {
		if err := redisx.ReleaseIdempotency(ctx, h.Redis, key); err != nil {
			h.Log.Warn("idempotency claim not released", zap.String("key", key), zap.Error(err))
		}
		return
	}
	b, _ := json.Marshal(ids)
	if err := redisx.CompleteIdempotency(ctx, h.Redis, key, b); err != nil {
		h.Log.Warn("idempotency result not stored", zap.String("key", key), zap.Error(err))
	}
}
