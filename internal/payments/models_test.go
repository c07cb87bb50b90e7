package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusInitiated, StatusSuccess, true},
		{StatusInitiated, StatusFailed, true},
		{StatusInitiated, StatusRefunded, false},
		{StatusSuccess, StatusRefunded, true},
		{StatusSuccess, StatusFailed, false},
		{StatusFailed, StatusRefunded, true},
		{StatusFailed, StatusSuccess, false}, // no retry on the same attempt
		{StatusRefunded, StatusInitiated, false},
		{StatusRefunded, StatusSuccess, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}
