// Package schedule resolves the effective working window of a business or
// employee on a civil date.
package schedule

import (
	"fmt"
	"time"

	"slotbook/internal/model"
)

// Owner is everything the resolver needs to know about one schedule owner.
// Exceptions are listed from the broadest scope to the narrowest: business
// exceptions first, employee exceptions last. A later exception on the same
// date wins.
type Owner struct {
	Weekly     *model.WeeklySchedule
	Exceptions []model.Exception
}

// ResolveWindow returns the working intervals of owner on date.
// An empty window means closed.
func ResolveWindow(owner Owner, date time.Time) (model.Window, error) {
	if exc := exceptionOn(owner.Exceptions, date); exc != nil {
		switch e := exc.(type) {
		case model.Unavailable, model.Holiday:
			return nil, nil
		case model.ModifiedHours:
			if !e.Hours.Valid() {
				return nil, fmt.Errorf("%w: modified hours %s on %s",
					model.ErrInvalidSchedule, e.Hours, date.Format(model.DateFormat))
			}
			// Modified hours never inherit the recurring lunch break.
			return model.Window{e.Hours}, nil
		default:
			return nil, fmt.Errorf("%w: unsupported exception %T", model.ErrInvalidException, exc)
		}
	}

	rule := owner.Weekly.Day(model.WeekdayOf(date))
	if !rule.Open {
		return nil, nil
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", model.WeekdayOf(date), err)
	}

	return splitByLunch(rule), nil
}

// ResolveRecords decodes stored exceptions and resolves the window.
// Decoding errors are reported as model.ErrInvalidException.
func ResolveRecords(weekly *model.WeeklySchedule, records []model.ExceptionRecord, date time.Time) (model.Window, error) {
	exceptions, err := Decode(records)
	if err != nil {
		return nil, err
	}
	return ResolveWindow(Owner{Weekly: weekly, Exceptions: exceptions}, date)
}

// Decode converts stored records into typed exceptions, keeping order.
func Decode(records []model.ExceptionRecord) ([]model.Exception, error) {
	out := make([]model.Exception, 0, len(records))
	for i := range records {
		exc, err := records[i].Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, nil
}

func exceptionOn(exceptions []model.Exception, date time.Time) model.Exception {
	var found model.Exception
	for _, exc := range exceptions {
		if model.SameDate(exc.On(), date) {
			found = exc
		}
	}
	return found
}

func splitByLunch(rule model.DayRule) model.Window {
	day := model.Interval{Start: rule.OpenAt, End: rule.CloseAt}
	if rule.Lunch == nil {
		return model.Window{day}
	}

	var window model.Window
	if rule.Lunch.Start > day.Start {
		window = append(window, model.Interval{Start: day.Start, End: rule.Lunch.Start})
	}
	if rule.Lunch.End < day.End {
		window = append(window, model.Interval{Start: rule.Lunch.End, End: day.End})
	}
	return window
}
