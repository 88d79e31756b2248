package locate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// Transition records one state change of the machine.
// Line is the 0-based index of the line that caused it, or the document
// length for end of input.
type Transition struct {
	Line  int
	Event Event
	From  State
	To    State
}

// Result is the outcome of Locate.
type Result struct {
	Status  model.Status
	Region  model.Region
	Message string

	// Trace lists state changes in order. Self-loops are omitted.
	Trace []Transition
}

// TrimMarker trims trailing whitespace, which is the only normalization
// applied before comparing a line against a marker.
func TrimMarker(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// machine holds the mutable scan state for a single Locate call.
type machine struct {
	state    State
	strategy model.Strategy

	startMarker string
	endMarker   string

	regionStart int
	regionEnd   int

	// pendingClose is set by content scan once the anchor line has been
	// seen; the next line is consumed unconditionally.
	pendingClose bool

	depth  int
	opened bool

	trace []Transition
}

// Locate scans doc for the region that starts at startMarker and ends
// according to strategy.
//
// A non-nil error means the inputs were unusable (blank start marker or an
// invalid strategy). Not finding a region is not an error; it is reported
// through Result.Status.
func Locate(doc model.Document, startMarker string, strategy model.Strategy) (Result, error) {
	if TrimMarker(startMarker) == "" {
		return Result{}, fmt.Errorf("start marker must not be empty")
	}
	if err := strategy.Validate(); err != nil {
		return Result{}, err
	}

	m := &machine{
		state:       StateSearching,
		strategy:    strategy,
		startMarker: TrimMarker(startMarker),
		endMarker:   TrimMarker(strategy.EndMarker),
	}

	for i, line := range doc.Lines {
		switch m.state {
		case StateSearching:
			event := EventLine
			if TrimMarker(line.Text) == m.startMarker {
				event = EventStartMatched
				m.regionStart = i
			}
			if err := m.step(i, event); err != nil {
				return Result{}, err
			}
			// The start line itself may carry the anchor or delimiters.
			if m.state == StateCopyingRemoved {
				if event := m.classify(i, line.Text, true); event != EventLine {
					if err := m.step(i, event); err != nil {
						return Result{}, err
					}
				}
			}
		case StateCopyingRemoved:
			if err := m.step(i, m.classify(i, line.Text, false)); err != nil {
				return Result{}, err
			}
		}
		if m.state.IsTerminal() {
			break
		}
	}

	if !m.state.IsTerminal() {
		event := EventEOF
		if m.state == StateCopyingRemoved && m.pendingClose {
			// Anchor was the last line: there is no closer left to consume.
			event = EventEndMatched
			m.regionEnd = doc.Len()
		}
		if err := m.step(doc.Len(), event); err != nil {
			return Result{}, err
		}
	}

	return m.result(startMarker), nil
}

// classify turns a line inside the removed region into an event.
func (m *machine) classify(i int, text string, isStartLine bool) Event {
	switch m.strategy.Kind {
	case model.StrategyFixed:
		if !isStartLine && TrimMarker(text) == m.endMarker {
			// End marker is retained, so the region stops before it.
			m.regionEnd = i
			return EventEndMatched
		}
	case model.StrategyScan:
		if m.pendingClose {
			m.regionEnd = i + 1
			return EventEndMatched
		}
		if strings.Contains(text, m.strategy.Anchor) {
			m.pendingClose = true
		}
	case model.StrategyBalanced:
		if m.balance(text) {
			m.regionEnd = i + 1
			return EventEndMatched
		}
	}
	return EventLine
}

// balance walks the delimiters of one line in order and reports whether the
// depth fell back to zero. Closers seen before the first opener belong to
// an enclosing block and are ignored.
func (m *machine) balance(text string) bool {
	opener, closer := m.strategy.Open, m.strategy.Close
	for i := 0; i < len(text); {
		rest := text[i:]
		isOpen := strings.HasPrefix(rest, opener)
		isClose := strings.HasPrefix(rest, closer)
		// The longer delimiter wins when one is a prefix of the other.
		if isOpen && isClose {
			isOpen = len(opener) >= len(closer)
			isClose = !isOpen
		}

		switch {
		case isOpen:
			m.opened = true
			m.depth++
			i += len(opener)
		case isClose:
			i += len(closer)
			if !m.opened {
				continue
			}
			m.depth--
			if m.depth == 0 {
				return true
			}
		default:
			i++
		}
	}
	return false
}

func (m *machine) step(line int, event Event) error {
	next, err := Next(m.state, event, m.strategy.Kind)
	if err != nil {
		return fmt.Errorf("line %d: %w", line+1, err)
	}
	if next != m.state {
		m.trace = append(m.trace, Transition{Line: line, Event: event, From: m.state, To: next})
	}
	m.state = next
	return nil
}

func (m *machine) result(startMarker string) Result {
	r := Result{Status: statusFor(m.state), Trace: m.trace}
	startLine := m.regionStart + 1

	switch m.state {
	case StateDone:
		r.Region = model.Region{Start: m.regionStart, End: m.regionEnd}
		r.Message = fmt.Sprintf("located %s using %s", r.Region, m.strategy)
	case StateMarkerNotFound:
		r.Message = fmt.Sprintf("start marker %q not found", startMarker)
	case StateAnchorNotFound:
		r.Message = fmt.Sprintf("anchor %q not found after start marker on line %d", m.strategy.Anchor, startLine)
	case StateEndMarkerNotFound:
		r.Message = fmt.Sprintf("end marker %q not found after start marker on line %d", m.strategy.EndMarker, startLine)
	case StateUnbalanced:
		if !m.opened {
			r.Message = fmt.Sprintf("no %q found after start marker on line %d", m.strategy.Open, startLine)
			break
		}
		r.Message = fmt.Sprintf("%q/%q still open at end of input (depth %d) after start marker on line %d",
			m.strategy.Open, m.strategy.Close, m.depth, startLine)
	}
	return r
}
