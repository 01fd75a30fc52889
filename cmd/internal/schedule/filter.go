package schedule

import "time"

// DayBounds returns 00:00:00 and 23:59:59 of day in loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}

	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, loc)
	return start, end
}

// FilterByDay keeps the windows whose start falls inside the day's bounds,
// both ends inclusive, then narrows to one doctor when doctorID is set.
func FilterByDay(windows []Window, day time.Time, loc *time.Location, doctorID *int) []Window {
	from, to := DayBounds(day, loc)

	out := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Start.Before(from) || w.Start.After(to) {
			continue
		}
		if doctorID != nil && w.DoctorID != *doctorID {
			continue
		}
		out = append(out, w)
	}
	return out
}
