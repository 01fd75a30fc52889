package schedule

import (
	"fmt"
	"sort"
	"time"
)

// GroupConsecutive merges slot picks into contiguous ranges. Picks are
// sorted and de-duplicated first; a pick exactly SlotLength after the
// previous one extends the running range, anything else closes it. Each
// range ends SlotLength after its last pick.
func GroupConsecutive(picks []time.Time) []Range {
	if len(picks) == 0 {
		return nil
	}

	sorted := make([]time.Time, len(picks))
	copy(sorted, picks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var out []Range
	start, last := sorted[0], sorted[0]
	for _, t := range sorted[1:] {
		switch gap := t.Sub(last); {
		case gap == 0:
			continue
		case gap == SlotLength:
			last = t
		default:
			out = append(out, Range{Start: start, End: last.Add(SlotLength)})
			start, last = t, t
		}
	}
	return append(out, Range{Start: start, End: last.Add(SlotLength)})
}

// ParseDaySlots turns "HH:MM" labels into date-times on the given day.
func ParseDaySlots(day time.Time, labels []string, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	y, m, d := day.In(loc).Date()
	out := make([]time.Time, 0, len(labels))
	for _, label := range labels {
		t, err := time.Parse(LabelLayout, label)
		if err != nil {
			return nil, fmt.Errorf("parse slot %q: %w", label, err)
		}
		out = append(out, time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc))
	}
	return out, nil
}

// IsAligned reports whether t sits on a slot boundary of its own day.
func IsAligned(t time.Time) bool {
	return t.Second() == 0 && t.Nanosecond() == 0 && t.Minute()%30 == 0
}
