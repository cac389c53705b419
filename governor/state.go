// Copyright 2025 StagePass Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package governor

import (
	"fmt"

	"github.com/stagepass-io/stagepass/core"
)

// State represents a governance transaction lifecycle state
type State struct {
	Id   uint
	Name string
}

// NewState returns a new State with the specified numeric id and name
func NewState(id uint, name string) State {
	return State{
		Id:   id,
		Name: name,
	}
}

func (s State) String() string {
	return s.Name
}

var (
	// StateProposed is the initial state of a submitted transaction
	StateProposed = NewState(1, "Proposed")
	// StateConfirmed covers transactions with at least one confirmation but
	// less than quorum
	StateConfirmed = NewState(2, "Confirmed")
	// StateExecutable covers transactions at or above quorum
	StateExecutable = NewState(3, "Executable")
	// StateExecuted is the terminal state; no transitions leave it
	StateExecuted = NewState(4, "Executed")
)

// Action identifies an owner action applied to a transaction
type Action uint8

const (
	ActionConfirm Action = 1
	ActionRevoke  Action = 2
	ActionExecute Action = 3
)

func (a Action) String() string {
	switch a {
	case ActionConfirm:
		return "confirm"
	case ActionRevoke:
		return "revoke"
	case ActionExecute:
		return "execute"
	}
	return "unknown"
}

// StateTransitionMatchFunc is used to distinguish transitions for the same
// action based on the resulting confirmation count
type StateTransitionMatchFunc func(confirmations uint64, required uint64) bool

// StateTransition describes one edge of the transaction state machine
type StateTransition struct {
	Action    Action
	NewState  State
	MatchFunc StateTransitionMatchFunc
}

// StateMapEntry carries the valid transitions out of a state
type StateMapEntry struct {
	Transitions []StateTransition
}

// StateMap describes the valid state transitions for governance transactions
type StateMap map[State]StateMapEntry

// TransactionStateMap is the lifecycle of a MultiSig transaction:
// Proposed -> Confirmed(k) -> Executable -> Executed. Confirmations can be
// added or revoked in any non-terminal state; execution is only possible at
// or above quorum, and nothing transitions out of Executed.
var TransactionStateMap = StateMap{
	StateProposed: StateMapEntry{
		Transitions: []StateTransition{
			{
				Action:    ActionConfirm,
				NewState:  StateConfirmed,
				MatchFunc: belowQuorum,
			},
			{
				Action:    ActionConfirm,
				NewState:  StateExecutable,
				MatchFunc: atQuorum,
			},
		},
	},
	StateConfirmed: StateMapEntry{
		Transitions: []StateTransition{
			{
				Action:    ActionConfirm,
				NewState:  StateConfirmed,
				MatchFunc: belowQuorum,
			},
			{
				Action:    ActionConfirm,
				NewState:  StateExecutable,
				MatchFunc: atQuorum,
			},
			{
				Action:    ActionRevoke,
				NewState:  StateProposed,
				MatchFunc: noConfirmations,
			},
			{
				Action:    ActionRevoke,
				NewState:  StateConfirmed,
				MatchFunc: someConfirmations,
			},
		},
	},
	StateExecutable: StateMapEntry{
		Transitions: []StateTransition{
			{
				Action:    ActionConfirm,
				NewState:  StateExecutable,
				MatchFunc: atQuorum,
			},
			{
				Action:    ActionRevoke,
				NewState:  StateConfirmed,
				MatchFunc: belowQuorum,
			},
			{
				Action:    ActionRevoke,
				NewState:  StateExecutable,
				MatchFunc: atQuorum,
			},
			{
				Action:   ActionExecute,
				NewState: StateExecuted,
			},
		},
	},
	// Terminal
	StateExecuted: StateMapEntry{},
}

func belowQuorum(confirmations uint64, required uint64) bool {
	return confirmations > 0 && confirmations < required
}

func atQuorum(confirmations uint64, required uint64) bool {
	return confirmations >= required
}

func noConfirmations(confirmations uint64, required uint64) bool {
	return confirmations == 0
}

func someConfirmations(confirmations uint64, required uint64) bool {
	return confirmations > 0
}

// Transition resolves the next state for an action applied in the current
// state, given the confirmation count after the action takes effect
func (s StateMap) Transition(
	current State,
	action Action,
	confirmations uint64,
	required uint64,
) (State, error) {
	entry, ok := s[current]
	if !ok {
		return State{}, InvalidTransitionError{From: current, Action: action}
	}
	for _, transition := range entry.Transitions {
		if transition.Action != action {
			continue
		}
		if transition.MatchFunc != nil &&
			!transition.MatchFunc(confirmations, required) {
			continue
		}
		return transition.NewState, nil
	}
	return State{}, InvalidTransitionError{From: current, Action: action}
}

// InvalidTransitionError indicates an action that is not valid in the
// transaction's current state
type InvalidTransitionError struct {
	core.StateInvariant
	From   State
	Action Action
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf(
		"action %s is not valid in state %s",
		e.Action,
		e.From,
	)
}
