package schedule

import (
	"slices"

	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/geo"
	"airline_scheduler/internal/models"
)

type FlightStatus string

const (
	StatusScheduled FlightStatus = "scheduled"
	StatusOutbound  FlightStatus = "in-flight-outbound"
	StatusReturn    FlightStatus = "in-flight-return"
	StatusCompleted FlightStatus = "completed"
)

func span(s models.Schedule) int {
	return s.EndMinute().Since(s.StartMinute())
}

// Halfway is the turning point of the rotation.
func Halfway(s models.Schedule) clock.WeekMinute {
	return s.StartMinute().Add(span(s) / 2)
}

// Status derives where a schedule is in its weekly rotation at now. Once the
// rotation ends it stays completed for the rest of that calendar day.
func Status(s models.Schedule, now clock.Playtime) FlightStatus {
	w := now.WeekMinute()
	start, end := s.StartMinute(), s.EndMinute()
	total := span(s)
	if elapsed := w.Since(start); elapsed <= total {
		if elapsed < total/2 {
			return StatusOutbound
		}
		return StatusReturn
	}
	restOfDay := clock.MinutesPerDay - 1 - int(end.TimeOfDay())
	if w.Since(end) <= restOfDay {
		return StatusCompleted
	}
	return StatusScheduled
}

// Position is where an airborne asset currently is.
type Position struct {
	Registration string       `json:"registration"`
	ContractID   string       `json:"contract_id"`
	Point        geo.Point    `json:"point"`
	Heading      float64      `json:"heading"`
	Progress     float64      `json:"progress"`
	Status       FlightStatus `json:"status"`
}

// Tracker places in-flight schedules on their great-circle path.
type Tracker struct {
	paths      *geo.PathCache
	resolution int
}

// NewTracker samples paths with resolution points (9, 17, 33 or 65).
func NewTracker(paths *geo.PathCache, resolution int) *Tracker {
	if paths == nil {
		paths = geo.NewPathCache(0)
	}
	return &Tracker{paths: paths, resolution: resolution}
}

// CurrentPoint interpolates the asset's position at now. The first half of
// the rotation flies origin to destination, the second half flies back. ok
// is false when the schedule is not airborne.
func (t *Tracker) CurrentPoint(s models.Schedule, origin, dest geo.Point, now clock.Playtime) (Position, bool) {
	total := span(s)
	if total <= 0 {
		return Position{}, false
	}
	elapsed := now.WeekMinute().Since(s.StartMinute())
	if elapsed > total {
		return Position{}, false
	}
	path, err := t.paths.PathPoints(origin, dest, t.resolution)
	if err != nil {
		return Position{}, false
	}

	progress := float64(elapsed) / float64(total)
	pos := Position{
		Registration: s.Registration,
		ContractID:   s.Contract.ID,
		Progress:     progress,
	}
	if elapsed < total/2 {
		pos.Status = StatusOutbound
		pos.Point, pos.Heading = geo.Interpolate(path, progress*2)
	} else {
		pos.Status = StatusReturn
		slices.Reverse(path)
		pos.Point, pos.Heading = geo.Interpolate(path, (progress-0.5)*2)
	}
	pos.Point.Lon = geo.NormalizeLon(pos.Point.Lon)
	return pos, true
}
