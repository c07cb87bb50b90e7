// Package orders places orders: one atomic step creates the order row, its
// items and a stock reservation per item, or nothing at all.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
	kafkax "github.com/openshop/openshop/internal/kafka"
	"github.com/openshop/openshop/internal/redisx"
)

// Store is the durable side of the orchestrator, implemented by *Repo.
type Store interface {
	Place(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error)
	CloseAndRelease(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error)
}

// CartClearer empties the originating cart after a successful placement.
// Best effort: the order stands whether or not this works.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// Publisher is the async event producer; it never fails the caller.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store       Store
	Cart        CartClearer   // optional
	Placed      Publisher     // optional, bound to order.placed
	Cancelled   Publisher     // optional, bound to order.cancelled
	Redis       *redis.Client // optional status cache
	ServiceName string
	Log         *zap.Logger
}

// Place creates the order and reserves stock for every item, all or
// nothing. A repeated idempotency key returns the original order untouched;
// existed reports that replay.
func (s *Service) Place(ctx context.Context, userID string, items []Item, idemKey string) (o *Order, existed bool, err error) {
	if userID == "" {
		return nil, false, apperr.New(apperr.InvalidArgument, "user id is required")
	}

	// replay before validation: a retry after the cart was cleared arrives
	// with no items and must still get the original order back
	if idemKey != "" {
		prior, err := s.replay(ctx, idemKey, userID, items)
		if err != nil {
			return nil, false, err
		}
		if prior != nil {
			s.Log.Info("idempotent checkout replay",
				zap.String("order_id", prior.ID.String()), zap.String("idempotency_key", idemKey))
			return prior, true, nil
		}
	}

	if len(items) == 0 {
		return nil, false, apperr.New(apperr.InvalidArgument, "cart is empty, nothing to order")
	}
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, false, apperr.Newf(apperr.InvalidArgument, "invalid quantity for product %s", it.ProductID)
		}
		if it.PriceCents < 0 {
			return nil, false, apperr.Newf(apperr.InvalidArgument, "invalid price for product %s", it.ProductID)
		}
	}

	total := Total(items)

	o = &Order{
		ID:             uuid.New(),
		UserID:         userID,
		Status:         StatusPending,
		Items:          items,
		TotalCents:     total,
		IdempotencyKey: idemKey,
	}

	if err := s.Store.Place(ctx, o); err != nil {
		switch apperr.KindOf(err) {
		case apperr.InsufficientStock, apperr.InvalidArgument, apperr.NotFound, apperr.Unavailable:
			return nil, false, err
		case apperr.Conflict:
			// lost the insert race on the idempotency key; the winner's
			// order is the answer
			if idemKey != "" {
				prior, rerr := s.replay(ctx, idemKey, userID, items)
				if rerr == nil && prior != nil {
					return prior, true, nil
				}
			}
			return nil, false, err
		default:
			return nil, false, apperr.Wrap(apperr.Internal, "order placement failed", err)
		}
	}

	s.Log.Info("order placed",
		zap.String("order_id", o.ID.String()), zap.String("user_id", userID),
		zap.Int("items", len(items)), zap.Int("total_cents", total))

	s.afterPlace(ctx, o)
	return o, false, nil
}

// replay returns the prior order for the key, or nil when the key is new.
// A reused key with a different payload is a Conflict, never a silent
// overwrite. An empty item list is the post-clear retry and always matches.
func (s *Service) replay(ctx context.Context, idemKey, userID string, items []Item) (*Order, error) {
	prior, err := s.Store.GetByIdempotencyKey(ctx, idemKey)
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "idempotency lookup failed", err)
	}
	if prior.UserID != userID {
		return nil, apperr.Newf(apperr.Conflict, "idempotency key %q reused by a different user", idemKey)
	}
	if len(items) > 0 && prior.TotalCents != Total(items) {
		return nil, apperr.Newf(apperr.Conflict, "idempotency key %q reused with a different payload", idemKey)
	}
	return prior, nil
}

// afterPlace runs the best-effort side effects. The order is committed;
// nothing here may undo it, so failures are logged and swallowed.
func (s *Service) afterPlace(ctx context.Context, o *Order) {
	if s.Cart != nil {
		if err := s.Cart.Clear(ctx, o.UserID); err != nil {
			s.Log.Warn("cart clear failed, order stands",
				zap.String("order_id", o.ID.String()), zap.Error(err))
		}
	}
	s.cacheStatus(ctx, o)
	s.publish(s.Placed, o, EventOrderPlaced, OrderPlacedPayload{
		OrderID: o.ID, UserID: o.UserID, Items: o.Items, TotalCents: o.TotalCents,
	})
}

func (s *Service) publish(p Publisher, o *Order, eventType string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID.String(),
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(o.ID.String()), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) cacheStatus(ctx context.Context, o *Order) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	val := fmt.Sprintf(`{"status":%q}`, o.Status)
	if err := s.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err(); err != nil {
		s.Log.Warn("status cache set failed", zap.String("order_id", o.ID.String()), zap.Error(err))
	}
}

// Get returns the order; when callerID is set it must own the order.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID, callerID string) (*Order, error) {
	o, err := s.Store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if callerID != "" && o.UserID != callerID {
		return nil, apperr.New(apperr.Unauthorized, "order belongs to another user")
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if userID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "user id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Store.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus moves the order along its state machine. CANCELLED and
// FAILED go through the releasing path so reservations never outlive the
// order.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, apperr.Newf(apperr.InvalidArgument, "unknown order status %q", to)
	}
	o, err := s.Store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, apperr.Newf(apperr.Conflict, "cannot move order from %s to %s", o.Status, to)
	}

	var updated *Order
	switch to {
	case StatusCancelled, StatusFailed:
		updated, err = s.Store.CloseAndRelease(ctx, orderID, o.Status, to)
	default:
		updated, err = s.Store.UpdateStatus(ctx, orderID, o.Status, to)
	}
	if err != nil {
		return nil, err
	}
	s.Log.Info("order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(o.Status)), zap.String("to", string(to)))
	s.cacheStatus(ctx, updated)
	return updated, nil
}

// Cancel is the customer-initiated path: ownership enforced, reservations
// released atomically with the status flip.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, userID string) (*Order, error) {
	o, err := s.Get(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, apperr.Newf(apperr.Conflict, "cannot cancel order in status %s", o.Status)
	}
	updated, err := s.Store.CloseAndRelease(ctx, orderID, o.Status, StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.Log.Info("order cancelled", zap.String("order_id", orderID.String()), zap.String("user_id", userID))
	s.cacheStatus(ctx, updated)
	s.publish(s.Cancelled, updated, EventOrderCancelled, OrderCancelledPayload{
		OrderID: updated.ID, UserID: updated.UserID,
	})
	return updated, nil
}
