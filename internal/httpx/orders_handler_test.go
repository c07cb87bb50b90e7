package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/orders"
)

// stubOrderStore serves one canned order.
type stubOrderStore struct {
	o *orders.Order
}

func (s *stubOrderStore) Place(ctx context.Context, o *orders.Order) error { return nil }

func (s *stubOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	if s.o != nil && s.o.ID == id {
		cp := *s.o
		return &cp, nil
	}
	return nil, apperr.New(apperr.NotFound, "order not found")
}

func (s *stubOrderStore) GetByIdempotencyKey(ctx context.Context, key string) (*orders.Order, error) {
	return nil, apperr.New(apperr.NotFound, "order not found")
}

func (s *stubOrderStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]orders.Order, error) {
	return nil, nil
}

func (s *stubOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to orders.Status) (*orders.Order, error) {
	return s.GetByID(ctx, id)
}

func (s *stubOrderStore) CloseAndRelease(ctx context.Context, id uuid.UUID, from, to orders.Status) (*orders.Order, error) {
	return s.GetByID(ctx, id)
}

func TestGetOrderStatus(t *testing.T) {
	o := &orders.Order{ID: uuid.New(), UserID: "u1", Status: orders.StatusPaymentInitiated}
	h := &OrdersHandler{Orders: &orders.Service{Store: &stubOrderStore{o: o}, Log: zap.NewNop()}}
	mux := chi.NewRouter()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+o.ID.String()+"/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"PAYMENT_INITIATED"}`, rec.Body.String())
}

func TestGetOrderStatusUnknownOrder(t *testing.T) {
	h := &OrdersHandler{Orders: &orders.Service{Store: &stubOrderStore{}, Log: zap.NewNop()}}
	mux := chi.NewRouter()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString()+"/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
