package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
	kafkax "github.com/openshop/openshop/internal/kafka"
	"github.com/openshop/openshop/internal/orders"
	"github.com/openshop/openshop/internal/redisx"
)

// Worker applies the payment gateway's verdicts. Handlers are attached to
// the consumer for the matching topic.
type Worker struct {
	Payments    *Service
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

func (w *Worker) HandleAuthorized(ctx context.Context, m kafkago.Message) error {
	return w.handle(ctx, m, orders.EventPaymentAuthorized, func(ctx context.Context, env orders.Envelope) error {
		p, err := kafkax.UnwrapPayload[orders.PaymentAuthorizedPayload](env.Payload)
		if err != nil {
			return err
		}
		_, err = w.Payments.Confirm(ctx, p.OrderID)
		return err
	})
}

func (w *Worker) HandleFailed(ctx context.Context, m kafkago.Message) error {
	return w.handle(ctx, m, orders.EventPaymentFailed, func(ctx context.Context, env orders.Envelope) error {
		p, err := kafkax.UnwrapPayload[orders.PaymentFailedPayload](env.Payload)
		if err != nil {
			return err
		}
		w.Log.Info("gateway reported failure",
			zap.String("order_id", p.OrderID.String()), zap.String("reason", p.Reason))
		_, err = w.Payments.Fail(ctx, p.OrderID)
		return err
	})
}

func (w *Worker) handle(ctx context.Context, m kafkago.Message, wantType string, fn func(context.Context, orders.Envelope) error) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		w.Log.Warn("undecodable event, dropping", zap.Error(err))
		return nil // poison message; committing is the only way forward
	}
	if env.EventType != wantType {
		return nil
	}

	// at-least-once delivery; dedup by event id
	dkey := fmt.Sprintf(redisx.KeyDedup, w.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, w.Redis, dkey); exists {
		return nil
	}

	if err := fn(ctx, env); err != nil {
		switch apperr.KindOf(err) {
		case apperr.NotFound, apperr.Conflict, apperr.InvalidArgument:
			// replaying won't change the answer; log and commit
			w.Log.Warn("event not applicable",
				zap.String("event_id", env.EventID), zap.String("event_type", env.EventType), zap.Error(err))
		default:
			return err // retryable: leave uncommitted
		}
	}

	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
