package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/cart"
	"github.com/openshop/openshop/internal/orders"
	"github.com/openshop/openshop/internal/redisx"
)

// CartSource supplies the checkout snapshot.
type CartSource interface {
	Snapshot(ctx context.Context, userID string) (cart.Snapshot, error)
}

type OrdersHandler struct {
	Orders *orders.Service
	Cart   CartSource
	Redis  *redis.Client // optional fast-path caches
}

type CheckoutReq struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type CheckoutResp struct {
	OrderID    string `json:"order_id"`
	TotalCents int    `json:"total_cents"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeErr(w, apperr.New(apperr.InvalidArgument, "missing X-User-Id header"))
		return
	}
	var req CheckoutReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // body is optional
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := h.Cart.Snapshot(ctx, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]orders.Item, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, orders.Item{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}

	// fast path for retries; a changed cart falls through so the service
	// can report the key reuse instead of silently replaying
	if h.Redis != nil && req.IdempotencyKey != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.IdempotencyKey)
		if raw, rerr := h.Redis.Get(ctx, idemKey).Result(); rerr == nil {
			if orderID, perr := uuid.Parse(raw); perr == nil {
				o, gerr := h.Orders.Get(ctx, orderID, userID)
				if gerr == nil && (len(items) == 0 || o.TotalCents == orders.Total(items)) {
					writeJSON(w, http.StatusOK, CheckoutResp{
						OrderID:    o.ID.String(),
						TotalCents: o.TotalCents,
						Status:     string(o.Status),
						Idempotent: true,
					})
					return
				}
			}
		}
	}

	o, existed, err := h.Orders.Place(ctx, userID, items, req.IdempotencyKey)
	if err != nil {
		writeErr(w, err)
		return
	}

	// fast-path shortcut for retries; the DB stays the source of truth
	if h.Redis != nil && req.IdempotencyKey != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.IdempotencyKey)
		_ = h.Redis.Set(ctx, idemKey, o.ID.String(), redisx.TTLIdempotency).Err()
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, CheckoutResp{
		OrderID:    o.ID.String(),
		TotalCents: o.TotalCents,
		Status:     string(o.Status),
		Idempotent: existed,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid order id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, orderID, callerID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus is the hot polling path: the cached status short-circuits the
// DB, a miss falls back and re-warms the cache.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid order id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	o, err := h.Orders.Get(ctx, orderID, "")
	if err != nil {
		writeErr(w, err)
		return
	}
	body := map[string]string{"status": string(o.Status)}
	if h.Redis != nil {
		b, _ := json.Marshal(body)
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeErr(w, apperr.New(apperr.InvalidArgument, "missing X-User-Id header"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeErr(w, apperr.New(apperr.InvalidArgument, "missing X-User-Id header"))
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid order id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Cancel(ctx, orderID, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// updateStatus is the back-office path (fulfillment marking SHIPPED or
// DELIVERED). Authorization for it sits in front of this service.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid order id"))
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, orderID, orders.Status(req.Status))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
