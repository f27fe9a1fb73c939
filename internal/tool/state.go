package tool

import (
	"fmt"

	"github.com/conn-castle/patchtool/internal/messages"
)

// State is the phase of a patching transaction.
type State int

const (
	// StateBuilding collects the relevant tasks.
	StateBuilding State = iota
	// StatePrepared has backed up and verified every task.
	StatePrepared
	// StateExecuted has mutated the installation; history is not yet written.
	StateExecuted
	// StateCommitted has persisted history.
	StateCommitted
	// StateAborted has given up; nothing is recorded.
	StateAborted
)

var stateNames = [...]string{
	StateBuilding:  "building",
	StatePrepared:  "prepared",
	StateExecuted:  "executed",
	StateCommitted: "committed",
	StateAborted:   "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

type event int

const (
	eventPrepare event = iota
	eventExecute
	eventCommit
	eventAbort
)

var eventNames = [...]string{
	eventPrepare: "prepare",
	eventExecute: "execute",
	eventCommit:  "commit",
	eventAbort:   "abort",
}

func (e event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

// transition is the transaction protocol. It has no side effects.
func transition(from State, ev event) (State, error) {
	switch {
	case ev == eventPrepare && from == StateBuilding:
		return StatePrepared, nil
	case ev == eventExecute && from == StatePrepared:
		return StateExecuted, nil
	case ev == eventCommit && from == StateExecuted:
		return StateCommitted, nil
	case ev == eventAbort && !from.Terminal():
		return StateAborted, nil
	}
	return from, fmt.Errorf(messages.ToolInvalidTransitionFmt, ev, from)
}
