package config

import (
	"fmt"
	"strconv"
	"strings"
)

// PagePlaceholder is replaced by the page query fragment in a segment URL.
const PagePlaceholder = "{page}"

// Segment maps a half-open range of scan positions to a marketplace category.
type Segment struct {
	Name        string
	Start       int // inclusive
	End         int // exclusive
	URLTemplate string
}

// Contains reports whether position falls inside the segment.
func (s Segment) Contains(position int) bool {
	return position >= s.Start && position < s.End
}

// PageURL renders the search URL for the given page cursor. Page 1 carries
// no page parameter.
func (s Segment) PageURL(page int) string {
	return strings.Replace(s.URLTemplate, PagePlaceholder, PageFragment(page), 1)
}

// PageFragment is "" for the first page and "&page=N" otherwise.
func PageFragment(page int) string {
	if page <= 1 {
		return ""
	}
	return "&page=" + strconv.Itoa(page)
}

// DefaultSegments partitions the 350,000 position budget into the three
// sales-rank scans: DVD, music, software.
func DefaultSegments() []Segment {
	return []Segment{
		{
			Name:        "dvd",
			Start:       0,
			End:         150000,
			URLTemplate: "https://www.amazon.co.jp/s?i=dvd&rh=n%3A561958&s=salesrank{page}&language=en",
		},
		{
			Name:        "music",
			Start:       150000,
			End:         300000,
			URLTemplate: "https://www.amazon.co.jp/s?rh=n%3A561956&s=salesrank{page}&language=en",
		},
		{
			Name:        "software",
			Start:       300000,
			End:         350000,
			URLTemplate: "https://www.amazon.co.jp/s?i=software&rh=n%3A689132&s=salesrank{page}&language=en",
		},
	}
}

// SegmentFor returns the segment containing position. Positions past the
// last segment belong to the last one.
func SegmentFor(segments []Segment, position int) (Segment, bool) {
	if len(segments) == 0 {
		return Segment{}, false
	}
	for _, s := range segments {
		if s.Contains(position) {
			return s, true
		}
	}
	last := segments[len(segments)-1]
	if position >= last.End {
		return last, true
	}
	return Segment{}, false
}

// ValidateSegments checks that segments are contiguous, disjoint, start at
// zero and cover the budget.
func ValidateSegments(segments []Segment, budget int) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments configured")
	}
	next := 0
	for i, s := range segments {
		if s.Start != next {
			return fmt.Errorf("segment %d (%s) starts at %d, want %d", i, s.Name, s.Start, next)
		}
		if s.End <= s.Start {
			return fmt.Errorf("segment %d (%s) is empty", i, s.Name)
		}
		if !strings.Contains(s.URLTemplate, PagePlaceholder) {
			return fmt.Errorf("segment %d (%s) URL has no %s placeholder", i, s.Name, PagePlaceholder)
		}
		next = s.End
	}
	if next < budget {
		return fmt.Errorf("segments cover %d positions, budget is %d", next, budget)
	}
	return nil
}
