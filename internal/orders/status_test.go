package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusPaymentInitiated, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusConfirmed, false}, // must go through payment
		{StatusPaymentInitiated, StatusConfirmed, true},
		{StatusPaymentInitiated, StatusCancelled, true},
		{StatusPaymentInitiated, StatusFailed, true},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusCancelled, false}, // paid orders don't cancel
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPending, false},
		{StatusFailed, StatusPending, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCancelled, StatusFailed} {
		assert.Truef(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusPending, StatusPaymentInitiated, StatusConfirmed, StatusShipped} {
		assert.Falsef(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("ARCHIVED").Valid())
	assert.False(t, Status("").Valid())
}

func TestTotal(t *testing.T) {
	items := []Item{
		{Qty: 2, PriceCents: 1999},
		{Qty: 1, PriceCents: 500},
	}
	assert.Equal(t, 4498, Total(items))
	assert.Equal(t, 0, Total(nil))
}
