package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/model"
)

// MaxDaysRange is the maximum number of days To may lie after From.
const MaxDaysRange = 90

var ErrRangeTooLarge = errors.New("date range too large")

// DaysRequest asks for a per-date summary over an inclusive date range.
type DaysRequest struct {
	BusinessID string
	ServiceID  string
	From       time.Time
	To         time.Time
	EmployeeID string
}

// DaySummary is the availability of one date.
type DaySummary struct {
	Date           string `json:"date"`
	AvailableSlots int    `json:"available_slots"`
}

// Available reports whether at least one slot can be booked.
func (d DaySummary) Available() bool {
	return d.AvailableSlots > 0
}

// GetAvailableDays counts available slots for every date in [From, To].
func (e *Engine) GetAvailableDays(ctx context.Context, req DaysRequest) ([]DaySummary, error) {
	from, to := model.StartOfDay(req.From), model.StartOfDay(req.To)
	if from.After(to) {
		return nil, fmt.Errorf("from %s must be before or equal to to %s",
			from.Format(model.DateFormat), to.Format(model.DateFormat))
	}
	days := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days++
	}
	if days > MaxDaysRange {
		return nil, fmt.Errorf("%w: date range exceeds maximum of %d days", ErrRangeTooLarge, MaxDaysRange)
	}

	out := make([]DaySummary, 0, days+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		list, err := e.GetAvailableSlots(ctx, Request{
			BusinessID: req.BusinessID,
			ServiceID:  req.ServiceID,
			Date:       d,
			EmployeeID: req.EmployeeID,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Format(model.DateFormat), err)
		}

		count := 0
		for _, s := range list {
			if s.Available {
				count++
			}
		}
		out = append(out, DaySummary{Date: d.Format(model.DateFormat), AvailableSlots: count})
	}
	return out, nil
}
