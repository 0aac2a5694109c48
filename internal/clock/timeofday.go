package clock

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour
	DaysPerWeek    = 7
	MinutesPerWeek = DaysPerWeek * MinutesPerDay
)

// Playtime is the number of game minutes elapsed since the game started.
type Playtime int64

// Day is a day of the cyclic week, Monday == 0.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Day) String() string {
	return dayNames[mod(int(d), DaysPerWeek)]
}

// Next returns the following day, wrapping Sunday to Monday.
func (d Day) Next() Day { return Day(mod(int(d)+1, DaysPerWeek)) }

// Prev returns the previous day, wrapping Monday to Sunday.
func (d Day) Prev() Day { return Day(mod(int(d)-1, DaysPerWeek)) }

// TimeOfDay is a minute of the day in [0, 1440).
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(mod(hour*MinutesPerHour+minute, MinutesPerDay))
}

// ParseTimeOfDay parses a 24h "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(h*MinutesPerHour + m), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / MinutesPerHour }
func (t TimeOfDay) Minute() int { return int(t) % MinutesPerHour }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AddToTime shifts t by delta minutes, wrapping across hours and days in
// either direction.
func AddToTime(t TimeOfDay, delta int) TimeOfDay {
	return TimeOfDay(mod(int(t)+delta, MinutesPerDay))
}

// AddToTimeString is AddToTime over "HH:MM" strings.
func AddToTimeString(s string, delta int) (string, error) {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		return "", err
	}
	return AddToTime(t, delta).String(), nil
}

// IsTimeBetween reports whether t lies in the closed range [start, end].
// A range whose end is before its start wraps past midnight.
func IsTimeBetween(t, start, end TimeOfDay) bool {
	return between(int(t), int(start), int(end))
}

// IsTimeBetweenString is IsTimeBetween over "HH:MM" strings.
func IsTimeBetweenString(t, start, end string) (bool, error) {
	tt, err := ParseTimeOfDay(t)
	if err != nil {
		return false, err
	}
	ts, err := ParseTimeOfDay(start)
	if err != nil {
		return false, err
	}
	te, err := ParseTimeOfDay(end)
	if err != nil {
		return false, err
	}
	return IsTimeBetween(tt, ts, te), nil
}

// WeekMinute is a minute of the cyclic week in [0, 10080), Monday 00:00 == 0.
type WeekMinute int

func NewWeekMinute(d Day, t TimeOfDay) WeekMinute {
	return WeekMinute(mod(int(d)*MinutesPerDay+int(t), MinutesPerWeek))
}

func (w WeekMinute) Day() Day             { return Day(int(w) / MinutesPerDay) }
func (w WeekMinute) TimeOfDay() TimeOfDay { return TimeOfDay(int(w) % MinutesPerDay) }

// Add shifts w by delta minutes around the week.
func (w WeekMinute) Add(delta int) WeekMinute {
	return WeekMinute(mod(int(w)+delta, MinutesPerWeek))
}

// Since returns the minutes from earlier to w going forward around the week.
func (w WeekMinute) Since(earlier WeekMinute) int {
	return mod(int(w)-int(earlier), MinutesPerWeek)
}

// Between is the week-cycle counterpart of IsTimeBetween.
func (w WeekMinute) Between(start, end WeekMinute) bool {
	return between(int(w), int(start), int(end))
}

func (w WeekMinute) String() string {
	return w.Day().String() + " " + w.TimeOfDay().String()
}

func (p Playtime) Day() Day               { return DayOfWeek(p) }
func (p Playtime) TimeOfDay() TimeOfDay   { return MinuteOfDay(p) }
func (p Playtime) WeekMinute() WeekMinute { return WeekMinute(mod64(int64(p), MinutesPerWeek)) }

// DayOfWeek is floor(playtime / 1440) mod 7.
func DayOfWeek(p Playtime) Day {
	return Day(mod64(int64(p)/MinutesPerDay, DaysPerWeek))
}

func PreviousDayOfWeek(p Playtime) Day { return DayOfWeek(p).Prev() }

func MinuteOfDay(p Playtime) TimeOfDay {
	return TimeOfDay(mod64(int64(p), MinutesPerDay))
}

// DayStart is the playtime of the most recent midnight.
func DayStart(p Playtime) Playtime {
	return p - Playtime(mod64(int64(p), MinutesPerDay))
}

// WeekStart is the playtime of the most recent Monday 00:00.
func WeekStart(p Playtime) Playtime {
	return p - Playtime(mod64(int64(p), MinutesPerWeek))
}

// DayIndex counts whole days since the game started.
func DayIndex(p Playtime) int64 {
	return (int64(p) - mod64(int64(p), MinutesPerDay)) / MinutesPerDay
}

// FormatRemaining renders a minute count as "2d 03h 15m", dropping the day
// part when it is zero.
func FormatRemaining(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	d := minutes / MinutesPerDay
	h := (minutes % MinutesPerDay) / MinutesPerHour
	m := minutes % MinutesPerHour
	if d > 0 {
		return fmt.Sprintf("%dd %02dh %02dm", d, h, m)
	}
	return fmt.Sprintf("%02dh %02dm", h, m)
}

func between(x, start, end int) bool {
	if start <= end {
		return start <= x && x <= end
	}
	return x >= start || x <= end
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func mod64(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
