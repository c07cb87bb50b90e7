package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
)

// fakeStore keeps orders in a map, counts Place calls, and records which
// orders went through the releasing path.
type fakeStore struct {
	orders     map[uuid.UUID]*Order
	byKey      map[string]*Order
	placeCalls int
	placeErr   error
	released   []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[uuid.UUID]*Order{}, byKey: map[string]*Order{}}
}

func (f *fakeStore) Place(ctx context.Context, o *Order) error {
	f.placeCalls++
	if f.placeErr != nil {
		return f.placeErr
	}
	cp := *o
	f.orders[o.ID] = &cp
	if o.IdempotencyKey != "" {
		f.byKey[o.IdempotencyKey] = &cp
	}
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "order not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	o, ok := f.byKey[key]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "order not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error) {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return nil, apperr.New(apperr.Conflict, "status moved")
	}
	o.Status = to
	cp := *o
	return &cp, nil
}

func (f *fakeStore) CloseAndRelease(ctx context.Context, id uuid.UUID, from, to Status) (*Order, error) {
	f.released = append(f.released, id)
	return f.UpdateStatus(ctx, id, from, to)
}

type fakeCart struct {
	cleared []string
	err     error
}

func (f *fakeCart) Clear(ctx context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, userID)
	return nil
}

type fakePublisher struct {
	messages [][]byte
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.messages = append(f.messages, value)
}

func newService(st *fakeStore) (*Service, *fakeCart, *fakePublisher, *fakePublisher) {
	cart := &fakeCart{}
	placed := &fakePublisher{}
	cancelled := &fakePublisher{}
	return &Service{
		Store:       st,
		Cart:        cart,
		Placed:      placed,
		Cancelled:   cancelled,
		ServiceName: "test",
		Log:         zap.NewNop(),
	}, cart, placed, cancelled
}

func twoItems() []Item {
	return []Item{
		{ProductID: uuid.New(), Qty: 2, PriceCents: 1000},
		{ProductID: uuid.New(), Qty: 1, PriceCents: 500},
	}
}

func TestPlace(t *testing.T) {
	st := newFakeStore()
	svc, cart, placed, _ := newService(st)

	o, existed, err := svc.Place(context.Background(), "u1", twoItems(), "k1")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, 2500, o.TotalCents)
	assert.Equal(t, "k1", o.IdempotencyKey)

	assert.Equal(t, []string{"u1"}, cart.cleared)
	assert.Len(t, placed.messages, 1)
}

func TestPlaceValidation(t *testing.T) {
	svc, _, _, _ := newService(newFakeStore())
	ctx := context.Background()

	_, _, err := svc.Place(ctx, "", twoItems(), "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	_, _, err = svc.Place(ctx, "u1", nil, "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	_, _, err = svc.Place(ctx, "u1", []Item{{ProductID: uuid.New(), Qty: 0, PriceCents: 100}}, "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	_, _, err = svc.Place(ctx, "u1", []Item{{ProductID: uuid.New(), Qty: 1, PriceCents: -1}}, "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
}

func TestPlaceIdempotentReplay(t *testing.T) {
	st := newFakeStore()
	svc, _, placed, _ := newService(st)
	ctx := context.Background()
	items := twoItems()

	first, existed, err := svc.Place(ctx, "u1", items, "k1")
	require.NoError(t, err)
	require.False(t, existed)

	second, existed, err := svc.Place(ctx, "u1", items, "k1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, second.ID)

	// replay never hits the store's placement path or republishes
	assert.Equal(t, 1, st.placeCalls)
	assert.Len(t, placed.messages, 1)
}

func TestPlaceReplayAfterCartCleared(t *testing.T) {
	// the first success cleared the cart, so the retry arrives with no items
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()

	first, _, err := svc.Place(ctx, "u1", twoItems(), "k1")
	require.NoError(t, err)

	second, existed, err := svc.Place(ctx, "u1", nil, "k1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, second.ID)
}

func TestPlaceKeyReusedByDifferentUser(t *testing.T) {
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()
	items := twoItems()

	_, _, err := svc.Place(ctx, "u1", items, "k1")
	require.NoError(t, err)

	_, _, err = svc.Place(ctx, "u2", items, "k1")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestPlaceKeyReusedWithDifferentPayload(t *testing.T) {
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()

	_, _, err := svc.Place(ctx, "u1", twoItems(), "k1")
	require.NoError(t, err)

	_, _, err = svc.Place(ctx, "u1", []Item{{ProductID: uuid.New(), Qty: 9, PriceCents: 1}}, "k1")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestPlaceStockRejectionPassesThrough(t *testing.T) {
	st := newFakeStore()
	st.placeErr = apperr.New(apperr.InsufficientStock, "no stock")
	svc, cart, placed, _ := newService(st)

	_, _, err := svc.Place(context.Background(), "u1", twoItems(), "")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.InsufficientStock))
	assert.Empty(t, cart.cleared)
	assert.Empty(t, placed.messages)
}

func TestPlaceWrapsUnknownStoreErrors(t *testing.T) {
	st := newFakeStore()
	st.placeErr = errors.New("pg down")
	svc, _, _, _ := newService(st)

	_, _, err := svc.Place(context.Background(), "u1", twoItems(), "")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Internal))
	assert.ErrorIs(t, err, st.placeErr)
}

func TestPlaceCartClearFailureDoesNotUndoOrder(t *testing.T) {
	st := newFakeStore()
	svc, cart, placed, _ := newService(st)
	cart.err = errors.New("redis down")

	o, _, err := svc.Place(context.Background(), "u1", twoItems(), "")
	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Len(t, placed.messages, 1)
}

func TestGetEnforcesOwnership(t *testing.T) {
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()

	o, _, err := svc.Place(ctx, "u1", twoItems(), "")
	require.NoError(t, err)

	got, err := svc.Get(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.Get(ctx, o.ID, "u2")
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))

	// empty caller skips the ownership check (internal callers)
	_, err = svc.Get(ctx, o.ID, "")
	assert.NoError(t, err)
}

func TestUpdateStatus(t *testing.T) {
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()

	o, _, err := svc.Place(ctx, "u1", twoItems(), "")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, o.ID, Status("NOPE"))
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	_, err = svc.UpdateStatus(ctx, o.ID, StatusShipped)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))

	got, err := svc.UpdateStatus(ctx, o.ID, StatusPaymentInitiated)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentInitiated, got.Status)
	assert.Empty(t, st.released)
}

// A FAILED order must not keep stock on hold, no matter which path parked
// it there.
func TestUpdateStatusFailedReleasesReservations(t *testing.T) {
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()

	o, _, err := svc.Place(ctx, "u1", twoItems(), "")
	require.NoError(t, err)

	got, err := svc.UpdateStatus(ctx, o.ID, StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, []uuid.UUID{o.ID}, st.released)
}

func TestUpdateStatusCancelledReleasesReservations(t *testing.T) {
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()

	o, _, err := svc.Place(ctx, "u1", twoItems(), "")
	require.NoError(t, err)

	got, err := svc.UpdateStatus(ctx, o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, []uuid.UUID{o.ID}, st.released)
}

func TestCancel(t *testing.T) {
	st := newFakeStore()
	svc, _, _, cancelled := newService(st)
	ctx := context.Background()

	o, _, err := svc.Place(ctx, "u1", twoItems(), "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, o.ID, "u2")
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))

	got, err := svc.Cancel(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Len(t, cancelled.messages, 1)

	// terminal now
	_, err = svc.Cancel(ctx, o.ID, "u1")
	assert.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestListByUserClampsLimit(t *testing.T) {
	st := newFakeStore()
	svc, _, _, _ := newService(st)
	ctx := context.Background()

	_, err := svc.ListByUser(ctx, "", 10, 0)
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	_, _, err = svc.Place(ctx, "u1", twoItems(), "")
	require.NoError(t, err)

	out, err := svc.ListByUser(ctx, "u1", -5, -1)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
