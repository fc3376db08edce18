package api

import (
	"errors"
	"fmt"
	"time"

	"slotbook/internal/model"
)

var (
	ErrPastDate   = errors.New("cannot book in the past")
	ErrDateTooFar = errors.New("date is too far in the future")
)

func (s *Server) parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	d, err := time.ParseInLocation(model.DateFormat, value, s.opts.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format; expected YYYY-MM-DD", name)
	}
	return d, nil
}

// checkBookingWindow rejects dates before today or after today + MaxAdvance
// in the business timezone.
func (s *Server) checkBookingWindow(date, now time.Time) error {
	today := model.StartOfDay(now.In(s.opts.Location))
	if date.Before(today) {
		return ErrPastDate
	}
	if s.opts.MaxAdvance > 0 {
		last := model.StartOfDay(now.In(s.opts.Location).Add(s.opts.MaxAdvance))
		if date.After(last) {
			return ErrDateTooFar
		}
	}
	return nil
}

// leadCutoff is the earliest bookable instant.
func (s *Server) leadCutoff(now time.Time) time.Time {
	return now.Add(s.opts.MinAdvance)
}

// applyLeadTime marks slots on date that start before cutoff unavailable.
func applyLeadTime(list []model.TimeSlot, date, cutoff time.Time) []model.TimeSlot {
	for i := range list {
		if !list[i].Time.On(date).Before(cutoff) {
			continue
		}
		list[i].Available = false
		list[i].AvailableEmployeeCount = 0
		list[i].AvailableEmployees = nil
	}
	return list
}
