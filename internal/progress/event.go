package progress

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guarzo/janprice/internal/model"
)

// Kind discriminates progress events.
type Kind int

const (
	KindStart Kind = iota
	KindStop
	KindReading
	KindError
	KindPercent
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindReading:
		return "reading"
	case KindError:
		return "error"
	case KindPercent:
		return "percent"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one message from the run worker to the display.
type Event struct {
	Kind     Kind
	RunID    string
	Message  string  // KindError
	Percent  float64 // KindPercent
	Position int     // KindPercent
	Total    int     // KindPercent
	// Segment and SegmentPercent locate the position inside its scan
	// segment. Set by the crawler path only.
	Segment        string
	SegmentPercent float64
	Record         *model.ReconciliationRecord
}

func Start(runID string) Event   { return Event{Kind: KindStart, RunID: runID} }
func Stop(runID string) Event    { return Event{Kind: KindStop, RunID: runID} }
func Reading(runID string) Event { return Event{Kind: KindReading, RunID: runID} }

func Error(runID, msg string) Event {
	return Event{Kind: KindError, RunID: runID, Message: msg}
}

// Percent reports position out of total, clamped to [0, 100].
func Percent(runID string, position, total int) Event {
	return Event{Kind: KindPercent, RunID: runID, Percent: ratio(position, total), Position: position, Total: total}
}

// WithSegment attaches segment-relative progress for a segment spanning
// [start, end).
func (e Event) WithSegment(name string, start, end int) Event {
	e.Segment = name
	e.SegmentPercent = ratio(e.Position-start, end-start)
	return e
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	p := 100 * float64(n) / float64(d)
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

func Record(runID string, rec model.ReconciliationRecord) Event {
	return Event{Kind: KindRecord, RunID: runID, Record: &rec}
}

// String is the wire form: start, stop, reading, the error text, a numeric
// percent string, or "record <id> <jan>".
func (e Event) String() string {
	switch e.Kind {
	case KindStart, KindStop, KindReading:
		return e.Kind.String()
	case KindError:
		return e.Message
	case KindPercent:
		return strconv.FormatFloat(e.Percent, 'f', -1, 64)
	case KindRecord:
		if e.Record == nil {
			return "record"
		}
		return fmt.Sprintf("record %d %s", e.Record.SequenceID, e.Record.StableCode)
	default:
		return e.Kind.String()
	}
}

// ParseWire classifies a wire string by content the way a display that
// only sees strings has to: keywords and records first, then numbers, else an error.
func ParseWire(s string) Event {
	switch s {
	case "start":
		return Event{Kind: KindStart}
	case "stop":
		return Event{Kind: KindStop}
	case "reading":
		return Event{Kind: KindReading}
	}
	if e, ok := parseRecord(s); ok {
		return e
	}
	if p, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return Event{Kind: KindPercent, Percent: p}
	}
	return Event{Kind: KindError, Message: s}
}

// parseRecord reads "record" or "record <id> <jan>".
func parseRecord(s string) (Event, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 || fields[0] != "record" {
		return Event{}, false
	}
	switch len(fields) {
	case 1:
		return Event{Kind: KindRecord}, true
	case 3:
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return Event{}, false
		}
		return Event{Kind: KindRecord, Record: &model.ReconciliationRecord{SequenceID: id, StableCode: fields[2]}}, true
	default:
		return Event{}, false
	}
}
