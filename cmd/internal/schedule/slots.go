// Package schedule turns doctor availability windows into bookable
// 30-minute slots and back.
package schedule

import (
	"sort"
	"time"
)

// SlotLength is the booking granularity used everywhere.
const SlotLength = 30 * time.Minute

// LabelLayout is the fixed format of slot labels.
const LabelLayout = "15:04"

// Window is an availability as seen by the scheduling code.
type Window struct {
	ID       int
	DoctorID int
	Start    time.Time
	End      time.Time
}

type Range struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the half-open ranges [r.Start, r.End) and
// [o.Start, o.End) intersect.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

type Slot struct {
	Start          time.Time
	Label          string
	Booked         bool
	AvailabilityID int
}

// GenerateSlots returns the slot start times inside [start, end). A slot is
// only emitted when it fits entirely, so the result has
// floor((end-start)/SlotLength) entries.
func GenerateSlots(start, end time.Time) []time.Time {
	if !start.Before(end) {
		return nil
	}

	n := int(end.Sub(start) / SlotLength)
	out := make([]time.Time, 0, n)
	for cur := start; !cur.Add(SlotLength).After(end); cur = cur.Add(SlotLength) {
		out = append(out, cur)
	}
	return out
}

func FormatSlot(t time.Time) string {
	return t.Format(LabelLayout)
}

// BuildSlots splits a window into slots, flagging each one booked when any
// of the booked ranges overlaps it. Times are rendered in loc.
func BuildSlots(w Window, booked []Range, loc *time.Location) []Slot {
	if loc == nil {
		loc = time.Local
	}

	starts := GenerateSlots(w.Start, w.End)
	slots := make([]Slot, len(starts))
	for i, s := range starts {
		slot := Range{Start: s, End: s.Add(SlotLength)}
		isBooked := false
		for _, b := range booked {
			if slot.Overlaps(b) {
				isBooked = true
				break
			}
		}
		slots[i] = Slot{
			Start:          s.In(loc),
			Label:          FormatSlot(s.In(loc)),
			Booked:         isBooked,
			AvailabilityID: w.ID,
		}
	}
	return slots
}

// Labels returns the sorted, de-duplicated labels of every slot of every
// window.
func Labels(windows []Window, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}

	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, w := range windows {
		for _, s := range GenerateSlots(w.Start, w.End) {
			label := FormatSlot(s.In(loc))
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}
