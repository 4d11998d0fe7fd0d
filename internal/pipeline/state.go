package pipeline

import "github.com/guarzo/janprice/internal/config"

// State is the scan position of a run. Position counts outer iterations and
// candidates together and only grows; PageCursor is the search page within
// the current segment and restarts at 1 whenever Position enters a new one.
type State struct {
	Position   int
	PageCursor int
	Segment    string
}

// Advance moves to position and steps the page cursor.
func (s *State) Advance(position int, segments []config.Segment) {
	s.Position = position
	name := ""
	if seg, ok := config.SegmentFor(segments, position); ok {
		name = seg.Name
	}
	if name != s.Segment {
		s.Segment = name
		s.PageCursor = 0
	}
	s.PageCursor++
}
