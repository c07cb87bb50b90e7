package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/payments"
)

type PaymentsHandler struct {
	Payments *payments.Service
}

type initiatePaymentReq struct {
	OrderID        uuid.UUID `json:"order_id"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/initiate", h.initiate)
	r.Post("/payments/{orderId}/confirm", h.confirm)
	r.Post("/payments/{orderId}/fail", h.fail)
	r.Post("/payments/{orderId}/cancel", h.cancel)
	r.Get("/payments/{orderId}", h.get)
}

func (h *PaymentsHandler) initiate(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeErr(w, apperr.New(apperr.InvalidArgument, "missing X-User-Id header"))
		return
	}
	var req initiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Payments.Initiate(ctx, req.OrderID, userID, req.IdempotencyKey)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PaymentsHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Payments.Confirm)
}

func (h *PaymentsHandler) fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Payments.Fail)
}

func (h *PaymentsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Payments.Cancel)
}

func (h *PaymentsHandler) get(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Payments.GetByOrder)
}

func (h *PaymentsHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, uuid.UUID) (*payments.Payment, error)) {

	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "invalid order id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := op(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
