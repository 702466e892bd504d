// Package conversation is the per-user shopping state machine: it loads the
// stored state, runs the handler bound to it and persists the next state.
package conversation

import (
	"errors"
	"fmt"
)

// State is a step of the shopping flow.
type State uint8

const (
	// Start is the implicit state of a user without a stored session.
	Start State = iota
	// HandleMenu awaits a product selection or the cart button.
	HandleMenu
	// HandleDescription shows one product; awaits add to cart, cart or back.
	HandleDescription
	// HandleCart shows the cart; awaits remove, checkout or back.
	HandleCart
	// WaitingEmail awaits the customer email as free text.
	WaitingEmail
)

var stateNames = [...]string{
	Start:             "START",
	HandleMenu:        "HANDLE_MENU",
	HandleDescription: "HANDLE_DESCRIPTION",
	HandleCart:        "HANDLE_CART",
	WaitingEmail:      "WAITING_EMAIL",
}

// States lists every known state.
func States() []State {
	return []State{Start, HandleMenu, HandleDescription, HandleCart, WaitingEmail}
}

// String returns the persisted name of the state.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ErrStateInconsistency marks a stored value that names no known state.
var ErrStateInconsistency = errors.New("stored conversation state is inconsistent")

// ParseState converts a persisted name back to a State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return Start, fmt.Errorf("%w: %q", ErrStateInconsistency, name)
}
