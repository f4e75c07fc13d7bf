package service

import (
	"time"

	"github.com/okian/zonal/internal/domain/aoi"
)

// State is a step of the zonal statistics state machine.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateAggregating State = "aggregating"
	StateNormalizing State = "normalizing"
	StateDone        State = "done"
	StateRejected    State = "rejected"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateRejected || s == StateFailed
}

// Reason explains a Rejected or Failed run.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonTooLarge                  = Reason(aoi.ReasonTooLarge)
	ReasonOutsideBoundary           = Reason(aoi.ReasonOutsideBoundary)
	ReasonBackendUnavailable Reason = "backend_unavailable"
	ReasonEmptyHistogram     Reason = "empty_histogram"
	ReasonUnknownClass       Reason = "unknown_class"
)

// transitions lists the edges a run may follow.
var transitions = map[State][]State{
	StateIdle:        {StateValidating},
	StateValidating:  {StateAggregating, StateRejected},
	StateAggregating: {StateNormalizing, StateFailed},
	StateNormalizing: {StateDone, StateFailed},
}

// Transition is one recorded edge of a run.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// run tracks one submission through the state machine. It is owned by a
// single goroutine.
type run struct {
	id      string
	state   State
	reason  Reason
	history []Transition
	now     func() time.Time
}

func newRun(id string, now func() time.Time) *run {
	return &run{id: id, state: StateIdle, now: now}
}

// to moves the run along an allowed edge. Illegal edges are programming
// errors and panic.
func (r *run) to(next State) {
	for _, allowed := range transitions[r.state] {
		if allowed == next {
			r.history = append(r.history, Transition{From: r.state, To: next, At: r.now()})
			r.state = next
			return
		}
	}
	panic("zonal run: illegal transition " + string(r.state) + " -> " + string(next))
}

func (r *run) fail(to State, reason Reason) {
	r.to(to)
	r.reason = reason
}
