// Package summary turns a raw detection list into per-class counts.
package summary

import (
	"fmt"
	"strings"

	"spacedetect/internal/models"
)

const NoObjectsDetected = "No objects detected in image."

type ClassCount struct {
	Label string
	Known bool
	Count int
}

// Summary is either "no objects detected" or an ordered, non-empty list of
// counts: known classes in table order, then unknown indices in the order
// they first appeared.
type Summary struct {
	counts []ClassCount
}

func Summarize(dets []models.Detection, table models.ClassTable) Summary {
	if len(dets) == 0 {
		return Summary{}
	}

	known := make([]int, table.Len())
	unknownCount := make(map[int]int)
	var unknownOrder []int

	for _, d := range dets {
		if _, ok := table.Name(d.Class); ok {
			known[d.Class]++
			continue
		}
		if unknownCount[d.Class] == 0 {
			unknownOrder = append(unknownOrder, d.Class)
		}
		unknownCount[d.Class]++
	}

	var counts []ClassCount
	for i, n := range known {
		if n == 0 {
			continue
		}
		counts = append(counts, ClassCount{Label: table.Label(i), Known: true, Count: n})
	}
	for _, idx := range unknownOrder {
		counts = append(counts, ClassCount{Label: models.UnknownLabel(idx), Count: unknownCount[idx]})
	}

	return Summary{counts: counts}
}

// None reports whether the summary is the "no objects detected" result.
func (s Summary) None() bool { return len(s.counts) == 0 }

func (s Summary) Counts() []ClassCount {
	return append([]ClassCount(nil), s.counts...)
}

// Unknown returns the entries whose class index fell outside the table.
func (s Summary) Unknown() []ClassCount {
	var out []ClassCount
	for _, c := range s.counts {
		if !c.Known {
			out = append(out, c)
		}
	}
	return out
}

func (s Summary) String() string {
	if s.None() {
		return NoObjectsDetected
	}

	var b strings.Builder
	for _, c := range s.counts {
		fmt.Fprintf(&b, "• %s: %d\n", c.Label, c.Count)
	}
	return b.String()
}
