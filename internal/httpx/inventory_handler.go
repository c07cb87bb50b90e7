package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/inventory"
)

type InventoryHandler struct {
	Ledger *inventory.Ledger
}

type stockReq struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Get("/inventory/{productId}", h.get)
	r.Post("/inventory/add", h.add)
	r.Post("/inventory/reduce", h.reduce)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid product id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Ledger.GetByProduct(ctx, productID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) add(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.Ledger.AddStock)
}

func (h *InventoryHandler) reduce(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.Ledger.ReduceStock)
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request,
	op func(context.Context, uuid.UUID, int) (*inventory.Item, error)) {

	var req stockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := op(ctx, req.ProductID, req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}
