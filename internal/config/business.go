package config

import (
	"fmt"
	"os"
	"time"

	"slotbook/internal/model"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DayConfig is the working hours of one weekday.
type DayConfig struct {
	StartTime  string `yaml:"start_time"`            // "09:00"
	EndTime    string `yaml:"end_time"`              // "17:00"
	LunchStart string `yaml:"lunch_start,omitempty"` // "12:00"
	LunchEnd   string `yaml:"lunch_end,omitempty"`   // "13:00"
}

// ScheduleConfig describes a weekly schedule: Default applies to every
// weekday not listed in Days or DaysOff. A weekday listed in Days with an
// empty value is closed.
type ScheduleConfig struct {
	Default *DayConfig            `yaml:"default,omitempty"`
	Days    map[string]*DayConfig `yaml:"days,omitempty"`
	DaysOff []int                 `yaml:"days_off,omitempty" validate:"dive,min=1,max=7"` // 1=Mon, 7=Sun
}

// ExceptionConfig is a date-specific override of a schedule.
type ExceptionConfig struct {
	Date      string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Kind      string `yaml:"kind" validate:"required,oneof=unavailable holiday modified_hours"`
	StartTime string `yaml:"start_time,omitempty"`
	EndTime   string `yaml:"end_time,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
}

// HolidayConfig closes the business on a date.
type HolidayConfig struct {
	Date string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Name string `yaml:"name"`
}

type ServiceConfig struct {
	ID                  string `yaml:"id" validate:"required"`
	Name                string `yaml:"name" validate:"required"`
	DurationMinutes     int    `yaml:"duration_minutes" validate:"gt=0,lte=1440"`
	BufferBeforeMinutes int    `yaml:"buffer_before_minutes" validate:"gte=0"`
	BufferAfterMinutes  int    `yaml:"buffer_after_minutes" validate:"gte=0"`
}

type EmployeeConfig struct {
	ID         string            `yaml:"id" validate:"required"`
	Name       string            `yaml:"name" validate:"required"`
	Services   []string          `yaml:"services" validate:"required,min=1"`
	Schedule   *ScheduleConfig   `yaml:"schedule,omitempty"`
	Exceptions []ExceptionConfig `yaml:"exceptions,omitempty" validate:"dive"`
}

type BusinessConfig struct {
	ID         string            `yaml:"id" validate:"required"`
	Name       string            `yaml:"name" validate:"required"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
	Holidays   []HolidayConfig   `yaml:"holidays,omitempty" validate:"dive"`
	Exceptions []ExceptionConfig `yaml:"exceptions,omitempty" validate:"dive"`
	Services   []ServiceConfig   `yaml:"services" validate:"dive"`
	Employees  []EmployeeConfig  `yaml:"employees" validate:"dive"`
}

// BusinessFile is the root of business.yaml.
type BusinessFile struct {
	Businesses []BusinessConfig `yaml:"businesses" validate:"required,min=1,dive"`
}

// LoadBusinessConfig loads and validates the business seed file.
func LoadBusinessConfig(path string) (*BusinessFile, error) {
	if path == "" {
		path = DefaultBusinessPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read business config: %w", err)
	}

	var cfg BusinessFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse business config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate business config: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints, cross references and that every
// schedule and exception converts to its domain form.
func (f *BusinessFile) Validate() error {
	if err := validator.New().Struct(f); err != nil {
		return err
	}

	ids := make(map[string]string)
	claim := func(id, what string) error {
		if prev, ok := ids[id]; ok {
			return fmt.Errorf("%s: id %q already used by %s", what, id, prev)
		}
		ids[id] = what
		return nil
	}

	for i := range f.Businesses {
		b := &f.Businesses[i]
		prefix := fmt.Sprintf("businesses[%d]", i)
		if err := claim(b.ID, prefix); err != nil {
			return err
		}
		if _, err := b.Schedule.Weekly(); err != nil {
			return fmt.Errorf("%s.schedule: %w", prefix, err)
		}
		if _, err := b.ExceptionRecords(time.UTC); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}

		services := make(map[string]bool)
		for j, s := range b.Services {
			if err := claim(s.ID, fmt.Sprintf("%s.services[%d]", prefix, j)); err != nil {
				return err
			}
			services[s.ID] = true
		}

		for j := range b.Employees {
			e := &b.Employees[j]
			ePrefix := fmt.Sprintf("%s.employees[%d]", prefix, j)
			if err := claim(e.ID, ePrefix); err != nil {
				return err
			}
			for _, sid := range e.Services {
				if !services[sid] {
					return fmt.Errorf("%s: unknown service %q", ePrefix, sid)
				}
			}
			if e.Schedule != nil {
				if _, err := e.Schedule.Weekly(); err != nil {
					return fmt.Errorf("%s.schedule: %w", ePrefix, err)
				}
			}
			if _, err := e.ExceptionRecords(time.UTC); err != nil {
				return fmt.Errorf("%s: %w", ePrefix, err)
			}
		}
	}
	return nil
}

// Weekly converts the schedule into a validated model.WeeklySchedule.
func (s *ScheduleConfig) Weekly() (*model.WeeklySchedule, error) {
	off := make(map[int]bool, len(s.DaysOff))
	for _, d := range s.DaysOff {
		off[d] = true
	}

	byDay := make(map[model.Weekday]*DayConfig, len(s.Days))
	for name, day := range s.Days {
		wd, err := model.ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		byDay[wd] = day
	}

	rules := make(map[model.Weekday]model.DayRule, 7)
	for _, wd := range model.Weekdays {
		if off[wd.ISO()] {
			continue
		}
		day, listed := byDay[wd]
		if !listed {
			day = s.Default
		}
		if day == nil || day.StartTime == "" {
			continue
		}
		rule, err := day.rule()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", wd, err)
		}
		rules[wd] = rule
	}
	return model.NewWeeklySchedule(rules)
}

func (d *DayConfig) rule() (model.DayRule, error) {
	openAt, err := model.ParseClock(d.StartTime)
	if err != nil {
		return model.DayRule{}, fmt.Errorf("start_time: %w", err)
	}
	closeAt, err := model.ParseClock(d.EndTime)
	if err != nil {
		return model.DayRule{}, fmt.Errorf("end_time: %w", err)
	}
	rule := model.OpenDay(openAt, closeAt)

	if d.LunchStart != "" || d.LunchEnd != "" {
		lunchStart, err := model.ParseClock(d.LunchStart)
		if err != nil {
			return model.DayRule{}, fmt.Errorf("lunch_start: %w", err)
		}
		lunchEnd, err := model.ParseClock(d.LunchEnd)
		if err != nil {
			return model.DayRule{}, fmt.Errorf("lunch_end: %w", err)
		}
		rule = rule.WithLunch(lunchStart, lunchEnd)
	}
	return rule, nil
}

// Record converts the exception into its stored form for ownerID.
func (e ExceptionConfig) Record(ownerID string, loc *time.Location) (model.ExceptionRecord, error) {
	date, err := time.ParseInLocation(model.DateFormat, e.Date, loc)
	if err != nil {
		return model.ExceptionRecord{}, fmt.Errorf("%w: date %q", model.ErrInvalidException, e.Date)
	}
	rec := model.ExceptionRecord{
		OwnerID: ownerID,
		Date:    date,
		Kind:    model.ExceptionKind(e.Kind),
		Reason:  e.Reason,
	}
	if e.StartTime != "" {
		start := e.StartTime
		rec.Start = &start
	}
	if e.EndTime != "" {
		end := e.EndTime
		rec.End = &end
	}
	if _, err := rec.Decode(); err != nil {
		return model.ExceptionRecord{}, err
	}
	return rec, nil
}

// ExceptionRecords returns the holidays and exceptions of the business.
// Explicit exceptions follow holidays so they win on a shared date.
func (b *BusinessConfig) ExceptionRecords(loc *time.Location) ([]model.ExceptionRecord, error) {
	out := make([]model.ExceptionRecord, 0, len(b.Holidays)+len(b.Exceptions))
	for i, h := range b.Holidays {
		rec, err := ExceptionConfig{Date: h.Date, Kind: string(model.KindHoliday), Reason: h.Name}.Record(b.ID, loc)
		if err != nil {
			return nil, fmt.Errorf("holidays[%d]: %w", i, err)
		}
		out = append(out, rec)
	}
	for i, e := range b.Exceptions {
		rec, err := e.Record(b.ID, loc)
		if err != nil {
			return nil, fmt.Errorf("exceptions[%d]: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *EmployeeConfig) ExceptionRecords(loc *time.Location) ([]model.ExceptionRecord, error) {
	out := make([]model.ExceptionRecord, 0, len(e.Exceptions))
	for i, ex := range e.Exceptions {
		rec, err := ex.Record(e.ID, loc)
		if err != nil {
			return nil, fmt.Errorf("exceptions[%d]: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Service converts the config into the domain service of businessID.
func (s ServiceConfig) Service(businessID string) model.Service {
	return model.Service{
		ID:           s.ID,
		BusinessID:   businessID,
		Name:         s.Name,
		Duration:     s.DurationMinutes,
		BufferBefore: s.BufferBeforeMinutes,
		BufferAfter:  s.BufferAfterMinutes,
	}
}

// Employee converts the config into the domain employee of businessID.
// The schedule must have passed Validate.
func (e *EmployeeConfig) Employee(businessID string) (model.Employee, error) {
	emp := model.Employee{
		ID:         e.ID,
		BusinessID: businessID,
		Name:       e.Name,
		ServiceIDs: append([]string(nil), e.Services...),
	}
	if e.Schedule != nil {
		weekly, err := e.Schedule.Weekly()
		if err != nil {
			return model.Employee{}, err
		}
		emp.WorkingHours = weekly
	}
	return emp, nil
}

func (f *BusinessFile) String() string {
	services, employees := 0, 0
	for _, b := range f.Businesses {
		services += len(b.Services)
		employees += len(b.Employees)
	}
	return fmt.Sprintf("BusinessFile: %d businesses, %d services, %d employees",
		len(f.Businesses), services, employees)
}
