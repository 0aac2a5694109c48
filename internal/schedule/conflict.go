package schedule

import (
	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/models"
)

// Interval is a closed span on the cyclic week. An End before Start wraps
// past the week boundary.
type Interval struct {
	Start clock.WeekMinute `json:"start"`
	End   clock.WeekMinute `json:"end"`
}

// Contains reports whether w falls inside the interval, ends included.
func (iv Interval) Contains(w clock.WeekMinute) bool {
	return w.Between(iv.Start, iv.End)
}

// Overlaps reports whether two intervals share at least one minute.
// Touching intervals overlap.
func Overlaps(a, b Interval) bool {
	return a.Contains(b.Start) || a.Contains(b.End) ||
		b.Contains(a.Start) || b.Contains(a.End)
}

// CanAssignSchedule reports whether candidate is free of every existing
// interval.
func CanAssignSchedule(existing []Interval, candidate Interval) bool {
	for _, iv := range existing {
		if Overlaps(iv, candidate) {
			return false
		}
	}
	return true
}

// IntervalOf places a schedule on the week cycle. A schedule that wraps
// midnight keeps occupying the start of the next day.
func IntervalOf(s models.Schedule) Interval {
	return Interval{Start: s.StartMinute(), End: s.EndMinute()}
}

// DraftSchedule centres the rotation on the contract's departure: half of
// the turnaround is spent before the departure time, the rest after.
func DraftSchedule(c models.Contract, opt models.ContractOption) models.Schedule {
	total := opt.Turnaround.TotalMin
	dep := clock.NewWeekMinute(c.Day, c.Departure)
	start := dep.Add(-total / 2)
	end := start.Add(total)
	return models.Schedule{
		Registration: opt.Registration,
		Day:          start.Day(),
		Start:        start.TimeOfDay(),
		End:          end.TimeOfDay(),
		Contract:     c,
		Option:       opt,
	}
}
