package clock

import (
	"context"
	"testing"
	"time"
)

func TestAddToTime(t *testing.T) {
	cases := []struct {
		in    string
		delta int
		want  string
	}{
		{"06:20", 10, "06:30"},
		{"18:20", 470, "02:10"},
		{"03:20", -365, "21:15"},
		{"00:00", -1, "23:59"},
		{"23:59", 1, "00:00"},
		{"12:00", 3 * MinutesPerDay, "12:00"},
		{"12:00", -2*MinutesPerDay - 30, "11:30"},
	}
	for _, c := range cases {
		got, err := AddToTimeString(c.in, c.delta)
		if err != nil {
			t.Fatalf("AddToTimeString(%q, %d): %v", c.in, c.delta, err)
		}
		if got != c.want {
			t.Fatalf("AddToTimeString(%q, %d) = %q, want %q", c.in, c.delta, got, c.want)
		}
	}
}

func TestAddToTimeInverse(t *testing.T) {
	for tod := 0; tod < MinutesPerDay; tod += 7 {
		for _, d := range []int{-20000, -1441, -365, -1, 0, 1, 59, 470, 1440, 9999} {
			start := TimeOfDay(tod)
			if got := AddToTime(AddToTime(start, d), -d); got != start {
				t.Fatalf("AddToTime(AddToTime(%v, %d), %d) = %v", start, d, -d, got)
			}
		}
	}
}

func TestIsTimeBetween(t *testing.T) {
	cases := []struct {
		t, start, end string
		want          bool
	}{
		{"23:35", "23:00", "01:00", true},
		{"00:15", "23:00", "01:00", true},
		{"03:15", "23:00", "01:00", false},
		{"03:15", "23:55", "02:00", false},
		{"10:00", "09:00", "11:00", true},
		{"11:00", "09:00", "11:00", true},
		{"08:59", "09:00", "11:00", false},
	}
	for _, c := range cases {
		got, err := IsTimeBetweenString(c.t, c.start, c.end)
		if err != nil {
			t.Fatalf("IsTimeBetweenString: %v", err)
		}
		if got != c.want {
			t.Fatalf("IsTimeBetween(%s, %s, %s) = %v, want %v", c.t, c.start, c.end, got, c.want)
		}
	}
}

func TestParseTimeOfDayRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "7", "24:00", "12:60", "ab:cd"} {
		if _, err := ParseTimeOfDay(s); err == nil {
			t.Fatalf("ParseTimeOfDay(%q) expected error", s)
		}
	}
}

func TestPlaytimeDerivations(t *testing.T) {
	p := Playtime(8*MinutesPerDay + 5*MinutesPerHour + 7)
	if got := DayOfWeek(p); got != Tuesday {
		t.Fatalf("DayOfWeek = %v, want Tuesday", got)
	}
	if got := PreviousDayOfWeek(p); got != Monday {
		t.Fatalf("PreviousDayOfWeek = %v, want Monday", got)
	}
	if got := MinuteOfDay(p).String(); got != "05:07" {
		t.Fatalf("MinuteOfDay = %s, want 05:07", got)
	}
	if got := DayStart(p); got != 8*MinutesPerDay {
		t.Fatalf("DayStart = %d", got)
	}
	if got := WeekStart(p); got != MinutesPerWeek {
		t.Fatalf("WeekStart = %d", got)
	}
	if got := PreviousDayOfWeek(0); got != Sunday {
		t.Fatalf("PreviousDayOfWeek(0) = %v, want Sunday", got)
	}
}

func TestWeekMinuteWraps(t *testing.T) {
	w := NewWeekMinute(Sunday, MustParseTimeOfDay("23:00"))
	next := w.Add(120)
	if next.Day() != Monday || next.TimeOfDay().String() != "01:00" {
		t.Fatalf("Add across week = %v", next)
	}
	if got := next.Since(w); got != 120 {
		t.Fatalf("Since = %d, want 120", got)
	}
	if !WeekMinute(30).Between(w, next) {
		t.Fatalf("expected Monday 00:30 inside wrapping range")
	}
}

func TestFormatRemaining(t *testing.T) {
	if got := FormatRemaining(195); got != "03h 15m" {
		t.Fatalf("FormatRemaining(195) = %q", got)
	}
	if got := FormatRemaining(2*MinutesPerDay + 195); got != "2d 03h 15m" {
		t.Fatalf("FormatRemaining = %q", got)
	}
}

func TestTickNotifiesInRegistrationOrder(t *testing.T) {
	c := New(Options{})
	var order []string
	c.Subscribe(func(Playtime) { order = append(order, "a") })
	sub := c.Subscribe(func(Playtime) { order = append(order, "b") })
	c.Subscribe(func(Playtime) { order = append(order, "c") })

	if got := c.Tick(); got != 1 {
		t.Fatalf("Tick() = %d, want 1", got)
	}
	c.Unsubscribe(sub)
	c.Tick()

	want := []string{"a", "b", "c", "a", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestOfflineCatchUpIsCapped(t *testing.T) {
	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	c := New(Options{
		Playtime:         100,
		LastSave:         now.Add(-10 * time.Minute),
		OfflineAllowance: 5 * time.Minute,
		TickInterval:     time.Second,
		Now:              func() time.Time { return now },
	})
	if got := c.Playtime(); got != 400 {
		t.Fatalf("Playtime() = %d, want 400", got)
	}
	if got := c.CaughtUp(); got != 300 {
		t.Fatalf("CaughtUp() = %d, want 300", got)
	}

	fresh := New(Options{Playtime: 100, Now: func() time.Time { return now }})
	if got := fresh.Playtime(); got != 100 {
		t.Fatalf("Playtime() without last save = %d, want 100", got)
	}
}

func TestPauseResumePreservesPlaytime(t *testing.T) {
	c := New(Options{TickInterval: 2 * time.Millisecond})
	ticks := make(chan Playtime, 1024)
	c.Subscribe(func(p Playtime) { ticks <- p })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	deadline := time.After(2 * time.Second)
	for c.Playtime() < 3 {
		select {
		case <-deadline:
			t.Fatalf("clock did not tick")
		case <-ticks:
		}
	}
	c.Pause()
	if c.Running() {
		t.Fatalf("Running() after Pause = true")
	}
	paused := c.Playtime()
	// a tick that won the lock before Pause may still be delivering
	time.Sleep(10 * time.Millisecond)
	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(20 * time.Millisecond)
	if got := c.Playtime(); got != paused {
		t.Fatalf("playtime drifted while paused: %d -> %d", paused, got)
	}
	if len(ticks) != 0 {
		t.Fatalf("received %d notifications while paused", len(ticks))
	}

	c.Resume(ctx)
	for c.Playtime() <= paused {
		select {
		case <-deadline:
			t.Fatalf("clock did not resume")
		case <-ticks:
		}
	}
	c.Pause()
}
