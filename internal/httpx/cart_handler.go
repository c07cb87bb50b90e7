package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/cart"
)

type CartHandler struct {
	Cart *cart.Store
}

type addCartItemReq struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.get)
	r.Post("/cart/items", h.addItem)
	r.Delete("/cart/items/{productId}", h.removeItem)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeErr(w, apperr.New(apperr.InvalidArgument, "missing X-User-Id header"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	snap, err := h.Cart.Snapshot(ctx, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if snap.Items == nil {
		snap.Items = []cart.Item{}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeErr(w, apperr.New(apperr.InvalidArgument, "missing X-User-Id header"))
		return
	}
	var req addCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Cart.AddItem(ctx, userID, req.ProductID, req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeErr(w, apperr.New(apperr.InvalidArgument, "missing X-User-Id header"))
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid product id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.RemoveItem(ctx, userID, productID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
