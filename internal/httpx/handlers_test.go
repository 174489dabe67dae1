package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ariefcatur/agro-market/internal/httpx"
	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/ledger"
	"github.com/ariefcatur/agro-market/internal/memstore"
	"github.com/ariefcatur/agro-market/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type caller struct{ id, role string }

var (
	buyer   = caller{"buyer-1", "buyer"}
	vendor1 = caller{"vendor-1", "vendor"}
	vendor2 = caller{"vendor-2", "vendor"}
	nobody  = caller{}
)

func newServer(t *testing.T) (*memstore.Store, http.Handler) {
	t.Helper()
	return newServerWithRedis(t, nil)
}

func newServerWithRedis(t *testing.T, rdb *redis.Client) (*memstore.Store, http.Handler) {
	t.Helper()
	mem := memstore.New()
	mem.PutProduct(inventory.Product{ID: "A", VendorID: "vendor-1", Name: "Tomato", UnitPrice: decimal.RequireFromString("5.00"), AvailableQuantity: decimal.NewFromInt(10)})
	mem.PutProduct(inventory.Product{ID: "B", VendorID: "vendor-2", Name: "Potato", UnitPrice: decimal.RequireFromString("10.00"), AvailableQuantity: decimal.NewFromInt(3)})

	log := zap.NewNop()
	r := httpx.NewRouter(log)
	(&httpx.OrdersHandler{Orders: orders.NewService(mem, mem, log), Redis: rdb, Log: log}).Register(r)
	(&httpx.LedgerHandler{Ledger: ledger.NewService(mem, "https://market.example", log), Log: log}).Register(r)
	return mem, r
}

func do(t *testing.T, h http.Handler, c caller, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return doWithHeaders(t, h, c, method, path, body, nil)
}

func doWithHeaders(t *testing.T, h http.Handler, c caller, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.id != "" {
		req.Header.Set(httpx.HeaderUserID, c.id)
		req.Header.Set(httpx.HeaderUserRole, c.role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

const twoVendorCart = `{"items":[{"product_id":"A","quantity":2},{"product_id":"B","quantity":"1"}],"delivery_address":"12 Market Rd","delivery_date":"2024-06-01"}`

func placeTwo(t *testing.T, h http.Handler) []string {
	t.Helper()
	rec, body := do(t, h, buyer, http.MethodPost, "/orders", twoVendorCart)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ids []string
	for _, v := range body["order_ids"].([]any) {
		ids = append(ids, v.(string))
	}
	require.Len(t, ids, 2)
	return ids
}

func TestPlaceOrderEndpoint(t *testing.T) {
	mem, h := newServer(t)
	ids := placeTwo(t, h)

	rec, body := do(t, h, buyer, http.MethodGet, "/orders/"+ids[0], "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "vendor-1", body["vendor_id"])
	require.Equal(t, "10", body["total_amount"])
	require.Equal(t, "pending", body["status"])

	p, _ := mem.Product("A")
	require.True(t, p.AvailableQuantity.Equal(decimal.NewFromInt(8)))
}

func TestPlaceOrderEndpointErrors(t *testing.T) {
	_, h := newServer(t)

	cases := []struct {
		name string
		who  caller
		body string
		code int
	}{
		{"no identity", nobody, twoVendorCart, http.StatusUnauthorized},
		{"vendor cannot buy", vendor1, twoVendorCart, http.StatusForbidden},
		{"bad json", buyer, `{"items":`, http.StatusBadRequest},
		{"empty cart", buyer, `{"items":[],"delivery_address":"x"}`, http.StatusBadRequest},
		{"bad date", buyer, `{"items":[{"product_id":"A","quantity":1}],"delivery_address":"x","delivery_date":"June"}`, http.StatusBadRequest},
		{"unknown product", buyer, `{"items":[{"product_id":"Z","quantity":1}],"delivery_address":"x"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := do(t, h, tc.who, http.MethodPost, "/orders", tc.body)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestPlaceOrderInsufficientStockNamesProduct(t *testing.T) {
	mem, h := newServer(t)

	rec, body := do(t, h, buyer, http.MethodPost, "/orders",
		`{"items":[{"product_id":"A","quantity":2},{"product_id":"B","quantity":4}],"delivery_address":"x"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "B", body["product_id"])
	require.Zero(t, mem.OrderCount())
}

func TestUpdateStatusEndpoint(t *testing.T) {
	_, h := newServer(t)
	ids := placeTwo(t, h)
	path := "/orders/" + ids[0] + "/status"

	rec, _ := do(t, h, buyer, http.MethodPut, path, `{"status":"confirmed"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, vendor2, http.MethodPut, path, `{"status":"confirmed"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, vendor1, http.MethodPut, path, `{"status":"shipped"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, vendor1, http.MethodPut, path, `{"status":"delivered"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, body := do(t, h, vendor1, http.MethodPut, path, `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "confirmed", body["order"].(map[string]any)["status"])

	rec, body = do(t, h, buyer, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "confirmed", body["status"])

	rec, _ = do(t, h, vendor1, http.MethodPut, "/orders/missing/status", `{"status":"confirmed"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	_, h := newServer(t)
	placeTwo(t, h)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(httpx.HeaderUserID, "vendor-2")
	req.Header.Set(httpx.HeaderUserRole, "vendor")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "vendor-2", list[0]["vendor_id"])
}

func TestSupplyChainEndpoints(t *testing.T) {
	_, h := newServer(t)

	rec, _ := do(t, h, vendor1, http.MethodPost, "/supply-chain/events/A", `{"eventType":"harvest_verified"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, buyer, http.MethodPost, "/supply-chain/ledgers/A", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, opened := do(t, h, vendor1, http.MethodPost, "/supply-chain/ledgers/A", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	ledgerID := opened["ledgerId"].(string)
	require.Equal(t, "https://market.example/verify-supply-chain?ledger="+ledgerID, opened["qrCode"])

	rec, _ = do(t, h, vendor1, http.MethodPost, "/supply-chain/events/A", `{"eventData":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, vendor1, http.MethodPost, "/supply-chain/events/A", `{"eventType":"harvested","eventData":{"note":"a\u0000b"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, recorded := do(t, h, vendor1, http.MethodPost, "/supply-chain/events/A",
		`{"eventType":"harvest_verified","eventData":{"location":"Farm A","weightKg":12.5}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ledgerID, recorded["ledgerId"])

	rec, journey := do(t, h, nobody, http.MethodGet, "/supply-chain/journey/A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, journey["totalEvents"])
	for _, s := range journey["journey"].([]any) {
		require.Equal(t, true, s.(map[string]any)["hashVerified"])
	}

	rec, rep := do(t, h, nobody, http.MethodGet, "/supply-chain/verify/"+ledgerID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, rep["verified"])
	require.Equal(t, ledger.IntegrityPerfect, rep["integrityStatus"])

	rec, rep = do(t, h, nobody, http.MethodGet, "/supply-chain/verify/unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ledger.IntegrityNotFound, rep["integrityStatus"])

	rec, st := do(t, h, nobody, http.MethodGet, "/supply-chain/stats?ledgerId="+ledgerID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, st["total_events"])

	rec, journey = do(t, h, nobody, http.MethodGet, "/supply-chain/journey/B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, journey["totalEvents"])
}

func TestHealthz(t *testing.T) {
	_, h := newServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
