package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{
		StatusPending, StatusConfirmed, StatusCutting, StatusPacked,
		StatusOutForDelivery, StatusDelivered, StatusCancelled,
	}

	allowed := map[Status]map[Status]bool{
		StatusPending:        {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:      {StatusCutting: true, StatusCancelled: true},
		StatusCutting:        {StatusPacked: true},
		StatusPacked:         {StatusOutForDelivery: true},
		StatusOutForDelivery: {StatusDelivered: true},
		StatusDelivered:      {},
		StatusCancelled:      {},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_NoSelfTransitions(t *testing.T) {
	for s := range transitions {
		assert.False(t, s.CanTransitionTo(s), "%s -> %s must be rejected", s, s)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())

	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCutting, StatusPacked, StatusOutForDelivery} {
		assert.False(t, s.IsTerminal(), "%s", s)
	}
}

func TestStatus_CanCancel(t *testing.T) {
	assert.True(t, StatusPending.CanCancel())
	assert.True(t, StatusConfirmed.CanCancel())

	for _, s := range []Status{StatusCutting, StatusPacked, StatusOutForDelivery, StatusDelivered, StatusCancelled} {
		assert.False(t, s.CanCancel(), "%s", s)
	}
}

func TestStatus_Valid(t *testing.T) {
	for s := range transitions {
		assert.True(t, s.Valid(), "%s", s)
	}
	assert.False(t, Status("SHIPPED").Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("pending").Valid(), "statuses are case sensitive")
}
