package domain

import "fmt"

// transitions is the order lifecycle graph. Terminal states map to an empty
// set; cancellation is not reachable once printing has started.
var transitions = map[OrderStatus]map[OrderStatus]struct{}{
	StatusPending:    {StatusPaid: {}, StatusCancelled: {}},
	StatusPaid:       {StatusProcessing: {}, StatusCancelled: {}},
	StatusProcessing: {StatusPrinting: {}, StatusCancelled: {}},
	StatusPrinting:   {StatusShipped: {}},
	StatusShipped:    {StatusDelivered: {}},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

var statusOrder = []OrderStatus{
	StatusPending,
	StatusPaid,
	StatusProcessing,
	StatusPrinting,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

func AllStatuses() []OrderStatus {
	out := make([]OrderStatus, len(statusOrder))
	copy(out, statusOrder)
	return out
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// IsValidTransition reports whether an order may move from one status to another.
func IsValidTransition(from, to OrderStatus) bool {
	if from == to {
		return false
	}
	_, ok := transitions[from][to]
	return ok
}

// NextStatuses lists the statuses reachable from s, in lifecycle order.
func NextStatuses(s OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, candidate := range statusOrder {
		if IsValidTransition(s, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from '%s' to '%s'", e.From, e.To)
}
