package voucher

import (
	"fmt"
	"strings"

	dErrors "vouchercore/pkg/domain-errors"
)

// State is a voucher lifecycle state. Expired is terminal.
type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
	StateClaimed   State = "claimed"
	StateRedeemed  State = "redeemed"
	StateExpired   State = "expired"
)

// ParseState converts a stored string into a State, rejecting anything
// outside the five known states so loads can never smuggle in an
// unrecognized state.
func ParseState(raw string) (State, error) {
	switch State(strings.ToLower(raw)) {
	case StateDraft:
		return StateDraft, nil
	case StatePublished:
		return StatePublished, nil
	case StateClaimed:
		return StateClaimed, nil
	case StateRedeemed:
		return StateRedeemed, nil
	case StateExpired:
		return StateExpired, nil
	default:
		return "", dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown voucher state %q", raw))
	}
}

// allowedTransitions returns the legal next states from a given state. The
// switch is exhaustive over the five known states: there is no silent
// empty-set fallback for an unrecognized state.
func allowedTransitions(from State) []State {
	switch from {
	case StateDraft:
		return []State{StatePublished}
	case StatePublished:
		return []State{StateClaimed, StateExpired}
	case StateClaimed:
		return []State{StateRedeemed, StateExpired}
	case StateRedeemed:
		return []State{StateExpired}
	case StateExpired:
		return nil
	default:
		return nil
	}
}

// ValidateTransition checks that the requested lifecycle transition is legal
// given the current state. Pure and stateless: it accepts the current state
// as input and never reads persisted state itself. An illegal transition
// yields a validation error naming both states and the allowed set.
func ValidateTransition(current, requested State) error {
	if _, err := ParseState(string(current)); err != nil {
		return err
	}
	if _, err := ParseState(string(requested)); err != nil {
		return err
	}

	allowed := allowedTransitions(current)
	for _, next := range allowed {
		if next == requested {
			return nil
		}
	}

	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf(
		"illegal transition %s -> %s (allowed from %s: %s)",
		current, requested, current, formatStates(allowed)))
}

func formatStates(states []State) string {
	if len(states) == 0 {
		return "none"
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
