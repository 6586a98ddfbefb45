// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"
)

// State is a pipeline execution phase.
type State string

const (
	StateReceived    State = "received"
	StateClassifying State = "classifying"
	StateRetrieving  State = "retrieving"
	StateGenerating  State = "generating"
	StateReviewing   State = "reviewing"
	StateAssembling  State = "assembling"
	StateDone        State = "done"
	StateErrored     State = "errored"
)

// ErrInvalidTransition is returned for a transition not in the table.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines the legal state transitions. Each key is a
// source state and the value is the set of valid targets. Every working
// state may fall to errored; done and errored are terminal.
var validTransitions = map[State]map[State]bool{
	StateReceived:    {StateClassifying: true, StateErrored: true},
	StateClassifying: {StateRetrieving: true, StateErrored: true},
	StateRetrieving:  {StateGenerating: true, StateErrored: true},
	StateGenerating:  {StateReviewing: true, StateAssembling: true, StateErrored: true},
	StateReviewing:   {StateAssembling: true, StateErrored: true},
	StateAssembling:  {StateDone: true},
}

// IsValidTransition reports whether from → to is legal.
func IsValidTransition(from, to State) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether s ends an execution.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// machine tracks one execution's state.
type machine struct {
	current State
	history []State
	observe func(from, to State)
}

func newMachine(observe func(from, to State)) *machine {
	return &machine{current: StateReceived, history: []State{StateReceived}, observe: observe}
}

func (m *machine) advance(to State) error {
	if !IsValidTransition(m.current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, to)
	}
	from := m.current
	m.current = to
	m.history = append(m.history, to)
	if m.observe != nil {
		m.observe(from, to)
	}
	return nil
}
