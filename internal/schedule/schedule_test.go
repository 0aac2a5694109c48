package schedule

import (
	"errors"
	"testing"

	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/geo"
	"airline_scheduler/internal/models"
)

func iv(start, end int) Interval {
	return Interval{Start: clock.WeekMinute(start), End: clock.WeekMinute(end)}
}

func TestCanAssignSchedule(t *testing.T) {
	cases := []struct {
		name      string
		existing  []Interval
		candidate Interval
		want      bool
	}{
		{"mid overlap", []Interval{iv(3000, 4000)}, iv(3500, 4500), false},
		{"disjoint", []Interval{iv(3000, 3500)}, iv(4000, 4500), true},
		{"wrapping existing", []Interval{iv(9000, 100)}, iv(200, 500), true},
		{"boundary touch", []Interval{iv(3000, 4000)}, iv(4000, 4500), false},
		{"candidate inside", []Interval{iv(3000, 4000)}, iv(3100, 3200), false},
		{"candidate covers", []Interval{iv(3100, 3200)}, iv(3000, 4000), false},
		{"wrap tail hits", []Interval{iv(9000, 100)}, iv(50, 500), false},
		{"empty", nil, iv(0, 10), true},
	}
	for _, c := range cases {
		if got := CanAssignSchedule(c.existing, c.candidate); got != c.want {
			t.Fatalf("%s: CanAssignSchedule = %v, want %v", c.name, got, c.want)
		}
	}
}

func contractAt(id string, day clock.Day, dep string) models.Contract {
	return models.Contract{
		ID:            id,
		Origin:        "AAA",
		Destination:   "BBB",
		Day:           day,
		Departure:     clock.MustParseTimeOfDay(dep),
		DurationWeeks: 2,
	}
}

func optionFor(reg, contractID string, total int) models.ContractOption {
	return models.ContractOption{
		ContractID:   contractID,
		Registration: reg,
		Turnaround:   models.Turnaround{TotalMin: total},
	}
}

func TestDraftScheduleCentresOnDeparture(t *testing.T) {
	s := DraftSchedule(contractAt("c1", clock.Wednesday, "10:00"), optionFor("N1", "c1", 240))
	if s.Day != clock.Wednesday || s.Start.String() != "08:00" || s.End.String() != "12:00" {
		t.Fatalf("draft = %v %v-%v, want Wednesday 08:00-12:00", s.Day, s.Start, s.End)
	}
}

func TestDraftScheduleCanStartOnPreviousDay(t *testing.T) {
	s := DraftSchedule(contractAt("c1", clock.Monday, "00:30"), optionFor("N1", "c1", 300))
	if s.Day != clock.Sunday || s.Start.String() != "22:00" || s.End.String() != "03:00" {
		t.Fatalf("draft = %v %v-%v, want Sunday 22:00-03:00", s.Day, s.Start, s.End)
	}
	got := IntervalOf(s)
	if got.End.Day() != clock.Monday || got.Start.Day() != clock.Sunday {
		t.Fatalf("interval = %v..%v", got.Start, got.End)
	}
}

func TestCheckAvailabilityCatchesMidnightSpillover(t *testing.T) {
	e := NewEngine()
	asset := models.Asset{Registration: "N1"}

	late := DraftSchedule(contractAt("late", clock.Tuesday, "23:00"), optionFor("N1", "late", 240))
	if err := e.Commit(late); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Wednesday 01:30 departure with 60 minutes total starts at 01:00,
	// inside Tuesday's rotation which ends at 01:00.
	early := contractAt("early", clock.Wednesday, "01:30")
	if e.CheckAvailability(early, asset, optionFor("N1", "early", 60)) {
		t.Fatalf("expected conflict with previous day's wrapping rotation")
	}
	later := contractAt("later", clock.Wednesday, "03:00")
	if !e.CheckAvailability(later, asset, optionFor("N1", "later", 60)) {
		t.Fatalf("expected Wednesday 02:30-03:30 to be free")
	}
}

func TestCheckAvailabilityRespectsHub(t *testing.T) {
	e := NewEngine()
	c := contractAt("c1", clock.Friday, "12:00")
	if e.CheckAvailability(c, models.Asset{Registration: "N1", Hub: "ZZZ"}, optionFor("N1", "c1", 100)) {
		t.Fatalf("asset based at another hub should be unavailable")
	}
	if !e.CheckAvailability(c, models.Asset{Registration: "N1", Hub: "aaa"}, optionFor("N1", "c1", 100)) {
		t.Fatalf("asset at the contract hub should be available")
	}
	if !e.CheckAvailability(c, models.Asset{Registration: "N1"}, optionFor("N1", "c1", 100)) {
		t.Fatalf("asset without a hub should be available")
	}
}

func TestCommitRejectsConflictsAndDuplicates(t *testing.T) {
	e := NewEngine()
	first := DraftSchedule(contractAt("c1", clock.Monday, "10:00"), optionFor("N1", "c1", 200))
	if err := e.Commit(first); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := e.Commit(first); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate commit err = %v, want ErrDuplicate", err)
	}
	clash := DraftSchedule(contractAt("c2", clock.Monday, "11:00"), optionFor("N1", "c2", 200))
	if err := e.Commit(clash); !errors.Is(err, ErrConflict) {
		t.Fatalf("overlapping commit err = %v, want ErrConflict", err)
	}
	other := DraftSchedule(contractAt("c2", clock.Monday, "11:00"), optionFor("N2", "c2", 200))
	if err := e.Commit(other); err != nil {
		t.Fatalf("other asset commit: %v", err)
	}
	if e.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", e.Count())
	}
}

func TestCommitRequiresKnownAsset(t *testing.T) {
	e := NewEngine()
	fleet := map[string]bool{"N1": true}
	e.RequireAsset(func(reg string) bool { return fleet[reg] })

	s := DraftSchedule(contractAt("c1", clock.Monday, "10:00"), optionFor("N1", "c1", 200))
	delete(fleet, "N1")
	if err := e.Commit(s); !errors.Is(err, ErrNoAsset) {
		t.Fatalf("commit for removed asset err = %v, want ErrNoAsset", err)
	}
	if e.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", e.Count())
	}

	fleet["N1"] = true
	if err := e.Commit(s); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	e := NewEngine()
	s := DraftSchedule(contractAt("c1", clock.Monday, "10:00"), optionFor("N1", "c1", 200))
	if err := e.Commit(s); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	snap := e.Schedules("N1")
	snap[0].Contract.ID = "mutated"
	if got := e.Schedules("N1")[0].Contract.ID; got != "c1" {
		t.Fatalf("store mutated through snapshot: %s", got)
	}
}

func TestRemoveAndExpire(t *testing.T) {
	e := NewEngine()
	a := DraftSchedule(contractAt("c1", clock.Monday, "10:00"), optionFor("N1", "c1", 200))
	a.ExpiresAt = 500
	b := DraftSchedule(contractAt("c2", clock.Tuesday, "10:00"), optionFor("N1", "c2", 200))
	b.ExpiresAt = 5000
	c := DraftSchedule(contractAt("c3", clock.Tuesday, "10:00"), optionFor("N2", "c3", 200))
	for _, s := range []models.Schedule{a, b, c} {
		if err := e.Commit(s); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	expired := e.ExpireSchedules(600)
	if len(expired) != 1 || expired[0].Contract.ID != "c1" {
		t.Fatalf("expired = %+v", expired)
	}
	if n := e.RemoveActiveSchedulesForAsset("N1"); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if len(e.Schedules("N1")) != 0 || len(e.Schedules("N2")) != 1 {
		t.Fatalf("unexpected schedules after removal: %+v", e.All())
	}
}

func TestStatus(t *testing.T) {
	s := DraftSchedule(contractAt("c1", clock.Monday, "10:00"), optionFor("N1", "c1", 240))
	at := func(day clock.Day, tod string) clock.Playtime {
		return clock.Playtime(clock.NewWeekMinute(day, clock.MustParseTimeOfDay(tod))) + 3*clock.MinutesPerWeek
	}
	cases := []struct {
		now  clock.Playtime
		want FlightStatus
	}{
		{at(clock.Monday, "07:00"), StatusScheduled},
		{at(clock.Monday, "08:00"), StatusOutbound},
		{at(clock.Monday, "09:59"), StatusOutbound},
		{at(clock.Monday, "10:00"), StatusReturn},
		{at(clock.Monday, "12:00"), StatusReturn},
		{at(clock.Monday, "12:01"), StatusCompleted},
		{at(clock.Monday, "23:59"), StatusCompleted},
		{at(clock.Tuesday, "00:00"), StatusScheduled},
	}
	for _, c := range cases {
		if got := Status(s, c.now); got != c.want {
			t.Fatalf("Status at %v = %s, want %s", c.now.WeekMinute(), got, c.want)
		}
	}
	if got := Halfway(s).TimeOfDay().String(); got != "10:00" {
		t.Fatalf("Halfway = %s, want 10:00", got)
	}
}

func TestCurrentPointProgressIsMonotonic(t *testing.T) {
	tr := NewTracker(geo.NewPathCache(8), 33)
	s := DraftSchedule(contractAt("c1", clock.Sunday, "23:00"), optionFor("N1", "c1", 300))
	origin := geo.Point{Lat: 40.6413, Lon: -73.7781}
	dest := geo.Point{Lat: 51.47, Lon: -0.4543}

	start := clock.Playtime(s.StartMinute())
	last := -1.0
	for m := 0; m <= 300; m += 5 {
		pos, ok := tr.CurrentPoint(s, origin, dest, start+clock.Playtime(m))
		if !ok {
			t.Fatalf("expected airborne at +%d", m)
		}
		if pos.Progress < last {
			t.Fatalf("progress went backwards at +%d: %v < %v", m, pos.Progress, last)
		}
		last = pos.Progress
	}
	if _, ok := tr.CurrentPoint(s, origin, dest, start+301); ok {
		t.Fatalf("expected not airborne after the rotation")
	}

	mid, _ := tr.CurrentPoint(s, origin, dest, start+75)
	if mid.Status != StatusOutbound || mid.Heading > 90 {
		t.Fatalf("outbound position = %+v, want north-east heading", mid)
	}
	back, _ := tr.CurrentPoint(s, origin, dest, start+225)
	if back.Status != StatusReturn || back.Heading < 180 {
		t.Fatalf("return position = %+v, want westbound heading", back)
	}
	turn, _ := tr.CurrentPoint(s, origin, dest, start+150)
	if geo.Distance(turn.Point, dest) > 1 {
		t.Fatalf("turnaround point %+v should be at destination", turn.Point)
	}
}
