package locate

import (
	"fmt"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// State is a locator state.
type State int

const (
	// StateSearching looks for the start marker.
	StateSearching State = iota
	// StateCopyingRemoved consumes lines that belong to the removed region.
	StateCopyingRemoved
	// StateDone means the region is fully determined.
	StateDone
	// StateMarkerNotFound is terminal: the document had no start marker.
	StateMarkerNotFound
	// StateAnchorNotFound is terminal: content scan hit end of input.
	StateAnchorNotFound
	// StateEndMarkerNotFound is terminal: the fixed end marker never appeared.
	StateEndMarkerNotFound
	// StateUnbalanced is terminal: delimiter depth never returned to zero.
	StateUnbalanced
)

var stateNames = map[State]string{
	StateSearching:         "searching",
	StateCopyingRemoved:    "copying-removed",
	StateDone:              "done",
	StateMarkerNotFound:    "marker-not-found",
	StateAnchorNotFound:    "anchor-not-found",
	StateEndMarkerNotFound: "end-marker-not-found",
	StateUnbalanced:        "unbalanced",
}

// String returns the state name used in traces and verbose output.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s != StateSearching && s != StateCopyingRemoved
}

// Event is what a single input line (or end of input) means to the machine.
type Event int

const (
	// EventLine is a line that does not change state.
	EventLine Event = iota
	// EventStartMatched is the start marker line.
	EventStartMatched
	// EventEndMatched is the line that completes the region.
	EventEndMatched
	// EventEOF is end of input.
	EventEOF
)

var eventNames = map[Event]string{
	EventLine:         "line",
	EventStartMatched: "start-matched",
	EventEndMatched:   "end-matched",
	EventEOF:          "eof",
}

// String returns the event name.
func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

type transitionKey struct {
	from  State
	event Event
}

// transitions is the strategy-independent part of the machine.
// End of input while copying is strategy-specific; see exhausted.
var transitions = map[transitionKey]State{
	{StateSearching, EventLine}:            StateSearching,
	{StateSearching, EventStartMatched}:    StateCopyingRemoved,
	{StateSearching, EventEOF}:             StateMarkerNotFound,
	{StateCopyingRemoved, EventLine}:       StateCopyingRemoved,
	{StateCopyingRemoved, EventEndMatched}: StateDone,
}

// exhausted maps a strategy to the terminal state reached when input runs
// out while still copying the removed region.
var exhausted = map[model.StrategyKind]State{
	model.StrategyFixed:    StateEndMarkerNotFound,
	model.StrategyScan:     StateAnchorNotFound,
	model.StrategyBalanced: StateUnbalanced,
}

// Next returns the state reached from s on event e for the given strategy.
// It returns an error for transitions the machine does not define, which
// includes any event delivered to a terminal state.
func Next(s State, e Event, kind model.StrategyKind) (State, error) {
	if s == StateCopyingRemoved && e == EventEOF {
		next, ok := exhausted[kind]
		if !ok {
			return s, fmt.Errorf("no end-of-input transition for strategy %q", kind)
		}
		return next, nil
	}
	next, ok := transitions[transitionKey{s, e}]
	if !ok {
		return s, fmt.Errorf("undefined transition: %s on %s", s, e)
	}
	return next, nil
}

// statusFor maps a terminal state to the engine status it reports.
func statusFor(s State) model.Status {
	switch s {
	case StateDone:
		return model.StatusApplied
	case StateMarkerNotFound:
		return model.StatusMarkerNotFound
	case StateAnchorNotFound:
		return model.StatusAnchorNotFound
	case StateEndMarkerNotFound:
		return model.StatusEndMarkerNotFound
	case StateUnbalanced:
		return model.StatusUnbalanced
	default:
		return ""
	}
}
