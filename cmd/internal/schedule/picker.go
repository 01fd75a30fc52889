package schedule

import (
	"context"
	"sync"
	"time"
)

// AvailabilitySource loads the windows starting inside [from, to].
type AvailabilitySource interface {
	AvailabilitiesBetween(ctx context.Context, from, to time.Time) ([]Window, error)
}

// Picker holds the state behind a "pick a date, pick a doctor, pick a slot"
// flow. Changing the date or the doctor reloads the visible windows.
type Picker struct {
	source AvailabilitySource
	loc    *time.Location

	mu       sync.RWMutex
	date     *time.Time
	doctorID *int
	windows  []Window
	err      error
}

func NewPicker(source AvailabilitySource, loc *time.Location) *Picker {
	if loc == nil {
		loc = time.Local
	}
	return &Picker{source: source, loc: loc}
}

func (p *Picker) SetSelectedDate(ctx context.Context, day time.Time) error {
	p.mu.Lock()
	p.date = &day
	p.mu.Unlock()
	return p.load(ctx, day)
}

func (p *Picker) SetSelectedDoctor(ctx context.Context, doctorID int) error {
	p.mu.Lock()
	p.doctorID = &doctorID
	date := p.date
	p.mu.Unlock()

	if date == nil {
		return nil
	}
	return p.load(ctx, *date)
}

func (p *Picker) SelectedDate() (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.date == nil {
		return time.Time{}, false
	}
	return *p.date, true
}

func (p *Picker) SelectedDoctor() (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.doctorID == nil {
		return 0, false
	}
	return *p.doctorID, true
}

func (p *Picker) Availabilities() []Window {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Window, len(p.windows))
	copy(out, p.windows)
	return out
}

// Err returns the error of the last load, if any.
func (p *Picker) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// AvailableTimeSlots returns the sorted labels of every slot of the loaded
// windows.
func (p *Picker) AvailableTimeSlots() []string {
	return Labels(p.Availabilities(), p.loc)
}

// IsTimeSlotAvailable reports whether the "HH:MM" label falls inside one of
// the loaded windows, comparing hours and minutes only. Both window ends
// are inclusive.
func (p *Picker) IsTimeSlotAvailable(label string) bool {
	t, err := time.Parse(LabelLayout, label)
	if err != nil {
		return false
	}
	slot := t.Hour()*60 + t.Minute()

	for _, w := range p.Availabilities() {
		start := w.Start.In(p.loc)
		end := w.End.In(p.loc)
		if slot >= start.Hour()*60+start.Minute() && slot <= end.Hour()*60+end.Minute() {
			return true
		}
	}
	return false
}

func (p *Picker) load(ctx context.Context, day time.Time) error {
	from, to := DayBounds(day, p.loc)
	windows, err := p.source.AvailabilitiesBetween(ctx, from, to)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.err = err
		return err
	}
	p.err = nil
	p.windows = FilterByDay(windows, day, p.loc, p.doctorID)
	return nil
}
