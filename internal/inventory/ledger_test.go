package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshop/openshop/internal/apperr"
)

func TestLedgerRejectsNonPositiveQuantities(t *testing.T) {
	l := &Ledger{Store: NewMemStore(), Log: zap.NewNop()}
	ctx := context.Background()
	pid := uuid.New()

	ops := map[string]func() error{
		"reserve": func() error { _, err := l.Reserve(ctx, pid, 0); return err },
		"confirm": func() error { _, err := l.ConfirmReservation(ctx, pid, -1); return err },
		"release": func() error { _, err := l.ReleaseReservation(ctx, pid, 0); return err },
		"add":     func() error { _, err := l.AddStock(ctx, pid, -5); return err },
		"reduce":  func() error { _, err := l.ReduceStock(ctx, pid, 0); return err },
	}
	for name, op := range ops {
		err := op()
		require.Errorf(t, err, "%s should reject", name)
		assert.Truef(t, apperr.IsKind(err, apperr.InvalidArgument), "%s: got %v", name, err)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	l := &Ledger{Store: NewMemStore(), Log: zap.NewNop()}
	ctx := context.Background()
	pid := uuid.New()

	_, err := l.AddStock(ctx, pid, 20)
	require.NoError(t, err)

	_, err = l.Reserve(ctx, pid, 8)
	require.NoError(t, err)

	_, err = l.ReleaseReservation(ctx, pid, 3)
	require.NoError(t, err)

	it, err := l.ConfirmReservation(ctx, pid, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, it.Quantity)
	assert.Equal(t, 0, it.Reserved)

	it, err = l.GetByProduct(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 15, it.Available())
}
