// Package cart keeps each user's cart as a Redis hash and produces the
// snapshot checkout consumes. Prices are captured from the catalog when the
// item is added and stay fixed from then on.
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
	"github.com/openshop/openshop/internal/products"
	"github.com/openshop/openshop/internal/redisx"
)

type Item struct {
	ProductID  uuid.UUID `json:"product_id"`
	Qty        int       `json:"qty"`
	PriceCents int       `json:"price_cents"`
}

type Snapshot struct {
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`
}

// ProductSource resolves the unit price at add time.
type ProductSource interface {
	Get(ctx context.Context, id uuid.UUID) (*products.Product, error)
}

type Store struct {
	Redis    *redis.Client
	Products ProductSource
	Log      *zap.Logger
}

func cartKey(userID string) string { return fmt.Sprintf(redisx.KeyCart, userID) }

func (s *Store) AddItem(ctx context.Context, userID string, productID uuid.UUID, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "quantity must be positive")
	}
	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperr.Newf(apperr.InvalidArgument, "product %s is not available", productID)
	}

	key := cartKey(userID)
	field := productID.String()

	it := Item{ProductID: productID, Qty: qty, PriceCents: p.PriceCents}
	if raw, err := s.Redis.HGet(ctx, key, field).Result(); err == nil {
		var prev Item
		if jerr := json.Unmarshal([]byte(raw), &prev); jerr == nil {
			it.Qty += prev.Qty
		}
	}

	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	if err := s.Redis.HSet(ctx, key, field, b).Err(); err != nil {
		return nil, err
	}
	_ = s.Redis.Expire(ctx, key, redisx.TTLCart).Err()

	s.Log.Debug("cart item added",
		zap.String("user_id", userID), zap.String("product_id", field), zap.Int("qty", it.Qty))
	return &it, nil
}

func (s *Store) RemoveItem(ctx context.Context, userID string, productID uuid.UUID) error {
	n, err := s.Redis.HDel(ctx, cartKey(userID), productID.String()).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Newf(apperr.NotFound, "product %s is not in the cart", productID)
	}
	return nil
}

// Snapshot returns the cart's items in a deterministic order. An empty
// cart yields an empty snapshot; rejecting it is checkout's call.
func (s *Store) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	snap := Snapshot{UserID: userID}
	fields, err := s.Redis.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return snap, err
	}
	for _, raw := range fields {
		var it Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return snap, fmt.Errorf("corrupt cart entry for user %s: %w", userID, err)
		}
		snap.Items = append(snap.Items, it)
	}
	sort.Slice(snap.Items, func(i, j int) bool {
		return bytes.Compare(snap.Items[i].ProductID[:], snap.Items[j].ProductID[:]) < 0
	})
	return snap, nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, cartKey(userID)).Err()
}
