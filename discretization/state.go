package discretization

import "context"

// State is a stage of a single solve.
type State int

const (
	StateUnsolved State = iota
	StateAssembling
	StateSolving
	StateSolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnsolved:
		return "unsolved"
	case StateAssembling:
		return "assembling"
	case StateSolving:
		return "solving"
	case StateSolved:
		return "solved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a solve.
func (s State) Terminal() bool { return s == StateSolved || s == StateFailed }

// StateHook observes state transitions of uncached solves. It is called
// synchronously from the solving goroutine.
type StateHook func(ctx context.Context, name string, from, to State)

// validTransition encodes UNSOLVED -> ASSEMBLING -> SOLVING -> SOLVED, with
// FAILED reachable from ASSEMBLING and SOLVING.
func validTransition(from, to State) bool {
	switch from {
	case StateUnsolved:
		return to == StateAssembling
	case StateAssembling:
		return to == StateSolving || to == StateFailed
	case StateSolving:
		return to == StateSolved || to == StateFailed
	default:
		return false
	}
}

type run struct {
	ctx   context.Context
	name  string
	state State
	hook  StateHook
}

func (r *run) to(next State) {
	if !validTransition(r.state, next) {
		panic("discretization: invalid transition " + r.state.String() + " -> " + next.String())
	}
	prev := r.state
	r.state = next
	if r.hook != nil {
		r.hook(r.ctx, r.name, prev, next)
	}
}
