package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is a day of the week starting on Monday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Weekdays lists all days in order, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf converts Go's weekday (0=Sunday) to our Monday-first enum.
func WeekdayOf(t time.Time) Weekday {
	wd := int(t.Weekday())
	if wd == 0 {
		return Sunday
	}
	return Weekday(wd - 1)
}

// WeekdayFromISO converts an ISO day number (1=Mon, 7=Sun).
func WeekdayFromISO(day int) (Weekday, error) {
	if day < 1 || day > 7 {
		return 0, fmt.Errorf("invalid day %d, must be 1-7 (1=Mon, 7=Sun)", day)
	}
	return Weekday(day - 1), nil
}

// ParseWeekday accepts full english day names, case-insensitive.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if name == s || name[:3] == s {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ISO returns 1 for Monday through 7 for Sunday.
func (d Weekday) ISO() int { return int(d) + 1 }

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// DayRule describes the recurring hours of one weekday.
type DayRule struct {
	Open    bool      `json:"open"`
	OpenAt  Clock     `json:"open_at"`
	CloseAt Clock     `json:"close_at"`
	Lunch   *Interval `json:"lunch,omitempty"`
}

// ClosedDay is the rule of a day without working hours.
var ClosedDay = DayRule{}

// OpenDay builds an open rule without lunch break.
func OpenDay(openAt, closeAt Clock) DayRule {
	return DayRule{Open: true, OpenAt: openAt, CloseAt: closeAt}
}

// WithLunch returns a copy of r with the given lunch break.
func (r DayRule) WithLunch(start, end Clock) DayRule {
	r.Lunch = &Interval{Start: start, End: end}
	return r
}

// Validate checks the ordering of an open rule.
func (r DayRule) Validate() error {
	if !r.Open {
		return nil
	}
	hours := Interval{Start: r.OpenAt, End: r.CloseAt}
	if !hours.Valid() {
		return fmt.Errorf("%w: open %s must be before close %s", ErrInvalidSchedule, r.OpenAt, r.CloseAt)
	}
	if r.Lunch != nil {
		if r.Lunch.Start >= r.Lunch.End {
			return fmt.Errorf("%w: lunch start %s must be before lunch end %s", ErrInvalidSchedule, r.Lunch.Start, r.Lunch.End)
		}
		if r.Lunch.Start < r.OpenAt || r.Lunch.End > r.CloseAt {
			return fmt.Errorf("%w: lunch %s must be within working hours %s", ErrInvalidSchedule, r.Lunch, hours)
		}
	}
	return nil
}

// WeeklySchedule holds one validated rule per weekday.
// The zero value is closed every day.
type WeeklySchedule struct {
	days [7]DayRule
}

// NewWeeklySchedule validates rules and builds a schedule.
// Days missing from rules are closed.
func NewWeeklySchedule(rules map[Weekday]DayRule) (*WeeklySchedule, error) {
	var ws WeeklySchedule
	for day, rule := range rules {
		if !day.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSchedule, day)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", day, err)
		}
		ws.days[day] = rule
	}
	return &ws, nil
}

// MustWeeklySchedule panics on invalid rules; intended for fixtures.
func MustWeeklySchedule(rules map[Weekday]DayRule) *WeeklySchedule {
	ws, err := NewWeeklySchedule(rules)
	if err != nil {
		panic(err)
	}
	return ws
}

// Day returns the rule for a weekday.
func (ws *WeeklySchedule) Day(d Weekday) DayRule {
	if ws == nil || !d.Valid() {
		return ClosedDay
	}
	return ws.days[d]
}

// Rules returns the schedule as a map containing open days only.
func (ws *WeeklySchedule) Rules() map[Weekday]DayRule {
	out := make(map[Weekday]DayRule)
	if ws == nil {
		return out
	}
	for _, d := range Weekdays {
		if ws.days[d].Open {
			out[d] = ws.days[d]
		}
	}
	return out
}

// MarshalJSON encodes open days keyed by weekday name.
func (ws *WeeklySchedule) MarshalJSON() ([]byte, error) {
	out := make(map[string]DayRule)
	for d, rule := range ws.Rules() {
		out[d.String()] = rule
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates the form produced by MarshalJSON.
func (ws *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var raw map[string]DayRule
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rules := make(map[Weekday]DayRule, len(raw))
	for name, rule := range raw {
		d, err := ParseWeekday(name)
		if err != nil {
			return err
		}
		rules[d] = rule
	}
	parsed, err := NewWeeklySchedule(rules)
	if err != nil {
		return err
	}
	*ws = *parsed
	return nil
}
