// Package timer provides the speedrun timer backends driven by the script
// host: an in-process timer, a LiveSplit Server client, and a journal
// decorator that records every action to SQLite.
package timer

import (
	"time"

	"github.com/wippyai/lasr/errors"
)

// State is the timer phase.
type State int

const (
	NotRunning State = iota
	Running
	Paused
	Ended
)

var stateNames = [...]string{"NotRunning", "Running", "Paused", "Ended"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// ParseState parses a phase name as reported by LiveSplit.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if s == name {
			return State(i), nil
		}
	}
	return NotRunning, errors.New(errors.PhaseTimer, errors.KindInvalidData).
		Value(s).Detail("unknown timer phase %q", s).Build()
}

// Timer is the surface the host loop drives. State is queried fresh on
// every tick.
type Timer interface {
	State() (State, error)
	Start() error
	Split() error
	Reset() error
	PauseGameTime() error
	ResumeGameTime() error
	SetGameTime(d time.Duration) error
	SetVariable(key, value string) error
}

// Action names a timer operation.
type Action int

const (
	ActionStart Action = iota
	ActionSplit
	ActionReset
	ActionPauseGameTime
	ActionResumeGameTime
	ActionSetGameTime
	ActionSetVariable
)

var actionNames = [...]string{"start", "split", "reset", "pause_game_time", "resume_game_time", "set_game_time", "set_variable"}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}
