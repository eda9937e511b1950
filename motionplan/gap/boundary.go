// Package gap segments a range scan into free angular intervals and ranks them.
//
// Scans handled here are canonical: ordered left to right, already deflated by the obstacle
// inflation margin.
package gap

import (
	"fmt"
	"sort"
)

// Kind tags a boundary as opening or closing a free interval.
type Kind int

const (
	// Start marks the last obstacle sample before the range jumps up into free space.
	Start Kind = iota
	// End marks the first obstacle sample after the range drops out of free space.
	End
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Boundary is a discontinuity in a scan.
type Boundary struct {
	Index int
	Kind  Kind
}

// Interval is a free stretch of the scan, from the index of its start edge to its end edge.
type Interval struct {
	Start int
	End   int
}

// Boundaries walks adjacent sample pairs once. A rise of more than threshold from i to i+1 is a
// Start at i; a drop of more than threshold is an End at i+1. The result is sorted by index, with
// an End ahead of a Start sharing its index.
func Boundaries(ranges []float64, threshold float64) []Boundary {
	var events []Boundary
	for i := 0; i+1 < len(ranges); i++ {
		switch {
		case ranges[i+1] > ranges[i]+threshold:
			events = append(events, Boundary{Index: i, Kind: Start})
		case ranges[i] > ranges[i+1]+threshold:
			events = append(events, Boundary{Index: i + 1, Kind: End})
		}
	}
	return events
}

// Events flattens intervals back into boundaries.
func Events(intervals []Interval) []Boundary {
	events := make([]Boundary, 0, 2*len(intervals))
	for _, iv := range intervals {
		events = append(events, Boundary{Index: iv.Start, Kind: Start}, Boundary{Index: iv.End, Kind: End})
	}
	return events
}

func sortBoundaries(events []Boundary) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Index != events[j].Index {
			return events[i].Index < events[j].Index
		}
		// An index that is both an End and a Start is a one sample obstacle between two free
		// stretches: close the first before opening the second.
		return events[i].Kind == End && events[j].Kind == Start
	})
}

// Reconcile pairs boundaries into free intervals over a scan whose last index is lastIndex.
//
// Starts are stacked and an End closes the innermost open Start; starts buried under it are
// dropped since free intervals never nest. An End seen before any Start closes an interval
// opened at index 0, and a Start still open when the scan runs out is closed at lastIndex. Other
// unmatched boundaries are dropped. Without at least one Start and one End there are no
// intervals at all.
//
// The result is sorted and Reconcile(Events(r), lastIndex) returns r again.
func Reconcile(events []Boundary, lastIndex int) []Interval {
	sorted := make([]Boundary, 0, len(events))
	var starts, ends int
	for _, ev := range events {
		// A Start on the last sample or an End on the first bounds nothing.
		if (ev.Kind == Start && (ev.Index < 0 || ev.Index >= lastIndex)) ||
			(ev.Kind == End && (ev.Index <= 0 || ev.Index > lastIndex)) {
			continue
		}
		if ev.Kind == Start {
			starts++
		} else {
			ends++
		}
		sorted = append(sorted, ev)
	}
	if starts == 0 || ends == 0 {
		return nil
	}
	sortBoundaries(sorted)

	var (
		intervals []Interval
		open      []int
		seenStart bool
	)
	for _, ev := range sorted {
		if ev.Kind == Start {
			open = append(open, ev.Index)
			seenStart = true
			continue
		}
		if len(open) == 0 {
			if !seenStart && len(intervals) == 0 {
				intervals = append(intervals, Interval{Start: 0, End: ev.Index})
			}
			continue
		}
		intervals = append(intervals, Interval{Start: open[len(open)-1], End: ev.Index})
		open = open[:0]
	}
	if len(open) > 0 {
		intervals = append(intervals, Interval{Start: open[len(open)-1], End: lastIndex})
	}
	return intervals
}
