package payments

import (
	"errors"
	"fmt"

	"github.com/tradege/marketedgepros-sub001/models"
)

var ErrInvalidTransition = errors.New("invalid payment transition")

// transitions lists the allowed status edges. Terminal states (failed,
// refunded) have no outgoing edges; completed can only move to refunded.
var transitions = map[string][]string{
	models.PaymentStatusPending:   {models.PaymentStatusCompleted, models.PaymentStatusFailed},
	models.PaymentStatusCompleted: {models.PaymentStatusRefunded},
	models.PaymentStatusFailed:    {},
	models.PaymentStatusRefunded:  {},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status move and returns the new status, or an error
// wrapping ErrInvalidTransition naming both states.
func Transition(from, to string) (string, error) {
	if !CanTransition(from, to) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// IsTerminal reports whether no further status change is possible.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}
