// Package payments drives a payment's lifecycle per order and keeps the
// order status and stock reservations in step with it.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/orders"
	"github.com/openshop/openshop/internal/redisx"
)

// Store is the durable side of the lifecycle, implemented by *Repo.
type Store interface {
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	Initiate(ctx context.Context, p *Payment, orderFrom orders.Status) error
	Confirm(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	Fail(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	Refund(ctx context.Context, orderID uuid.UUID, from Status) (*Payment, error)
}

// OrderSource reads orders; the lifecycle never touches inventory through
// it, only the order's status and total.
type OrderSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*orders.Order, error)
}

type Service struct {
	Store  Store
	Orders OrderSource
	Redis  *redis.Client // optional status cache
	Log    *zap.Logger
}

// Initiate starts a payment attempt. A repeated idempotency key returns
// the original payment untouched, so a double-click or network retry can
// never charge twice.
func (s *Service) Initiate(ctx context.Context, orderID uuid.UUID, callerID, idemKey string) (*Payment, error) {
	if idemKey == "" {
		return nil, apperr.New(apperr.InvalidArgument, "idempotency key is required")
	}

	prior, err := s.Store.GetByIdempotencyKey(ctx, idemKey)
	if err == nil {
		if prior.OrderID != orderID {
			return nil, apperr.Newf(apperr.Conflict, "idempotency key %q reused for a different order", idemKey)
		}
		s.Log.Info("idempotent payment replay",
			zap.String("order_id", orderID.String()), zap.String("transaction_id", prior.TransactionID))
		return prior, nil
	}
	if !apperr.IsKind(err, apperr.NotFound) {
		return nil, err
	}

	o, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if callerID != "" && o.UserID != callerID {
		return nil, apperr.New(apperr.Unauthorized, "order belongs to another user")
	}
	if !orders.CanTransition(o.Status, orders.StatusPaymentInitiated) {
		return nil, apperr.Newf(apperr.Conflict, "cannot initiate payment for order in status %s", o.Status)
	}

	p := &Payment{
		ID:             uuid.New(),
		OrderID:        orderID,
		UserID:         o.UserID,
		AmountCents:    o.TotalCents, // amount comes from the order, never the request
		Status:         StatusInitiated,
		TransactionID:  uuid.NewString(),
		IdempotencyKey: idemKey,
	}
	if err := s.Store.Initiate(ctx, p, o.Status); err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			// lost the insert race on the key; the winner's payment stands
			if prior, rerr := s.Store.GetByIdempotencyKey(ctx, idemKey); rerr == nil && prior.OrderID == orderID {
				return prior, nil
			}
		}
		return nil, err
	}

	s.Log.Info("payment initiated",
		zap.String("order_id", orderID.String()),
		zap.String("transaction_id", p.TransactionID),
		zap.Int("amount_cents", p.AmountCents))
	s.cacheOrderStatus(ctx, orderID, orders.StatusPaymentInitiated)
	return p, nil
}

func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	p, err := s.Store.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, StatusSuccess) {
		return nil, apperr.Newf(apperr.Conflict, "payment for order %s is %s, cannot confirm", orderID, p.Status)
	}
	confirmed, err := s.Store.Confirm(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.Log.Info("payment confirmed",
		zap.String("order_id", orderID.String()), zap.String("transaction_id", confirmed.TransactionID))
	s.cacheOrderStatus(ctx, orderID, orders.StatusConfirmed)
	return confirmed, nil
}

func (s *Service) Fail(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	p, err := s.Store.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, StatusFailed) {
		return nil, apperr.Newf(apperr.Conflict, "payment for order %s is %s, cannot fail", orderID, p.Status)
	}
	failed, err := s.Store.Fail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.Log.Warn("payment failed",
		zap.String("order_id", orderID.String()), zap.String("transaction_id", failed.TransactionID))
	s.cacheOrderStatus(ctx, orderID, orders.StatusFailed)
	return failed, nil
}

// Cancel refunds the payment. It deliberately leaves inventory alone:
// customer cancellation releases stock through the order path.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	p, err := s.Store.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, StatusRefunded) {
		return nil, apperr.Newf(apperr.Conflict, "payment for order %s is %s, cannot refund", orderID, p.Status)
	}
	refunded, err := s.Store.Refund(ctx, orderID, p.Status)
	if err != nil {
		return nil, err
	}
	s.Log.Info("payment refunded",
		zap.String("order_id", orderID.String()), zap.String("transaction_id", refunded.TransactionID))
	return refunded, nil
}

func (s *Service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	return s.Store.GetByOrder(ctx, orderID)
}

func (s *Service) cacheOrderStatus(ctx context.Context, orderID uuid.UUID, st orders.Status) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	val := fmt.Sprintf(`{"status":%q}`, st)
	if err := s.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err(); err != nil {
		s.Log.Warn("status cache set failed", zap.String("order_id", orderID.String()), zap.Error(err))
	}
}
