package order

import "fmt"

// Status is the fulfilment state of an order. Transitions are validated
// against an explicit table so that adding a new status forces a review of
// every allowed edge.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusCutting        Status = "CUTTING"
	StatusPacked         Status = "PACKED"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

// transitions maps each status to the set of statuses it may move to.
// Terminal statuses map to an empty set.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCutting, StatusCancelled},
	StatusCutting:        {StatusPacked},
	StatusPacked:         {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// InvalidTransitionError indicates a requested status is not reachable from
// the order's current status.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the move from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	allowed, ok := transitions[s]
	return ok && len(allowed) == 0
}

// CanCancel reports whether a customer may still cancel an order in this
// status. Cancellation is only possible before the butcher starts cutting.
func (s Status) CanCancel() bool {
	return s == StatusPending || s == StatusConfirmed
}
