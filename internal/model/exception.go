package model

import (
	"fmt"
	"time"
)

// ExceptionKind is the stored discriminator of a schedule exception.
type ExceptionKind string

const (
	KindUnavailable   ExceptionKind = "unavailable"
	KindModifiedHours ExceptionKind = "modified_hours"
	KindHoliday       ExceptionKind = "holiday"
)

// Exception overrides the weekly schedule of its owner on one date.
// Variants: Unavailable, Holiday, ModifiedHours.
type Exception interface {
	Kind() ExceptionKind
	On() time.Time
	exception()
}

// Unavailable marks an absence (sick leave, vacation day).
type Unavailable struct {
	Date   time.Time
	Reason string
}

// Holiday closes the owner for a public or company holiday.
type Holiday struct {
	Date   time.Time
	Reason string
}

// ModifiedHours replaces the working hours of the date with a single interval.
type ModifiedHours struct {
	Date   time.Time
	Hours  Interval
	Reason string
}

func (Unavailable) Kind() ExceptionKind   { return KindUnavailable }
func (Holiday) Kind() ExceptionKind       { return KindHoliday }
func (ModifiedHours) Kind() ExceptionKind { return KindModifiedHours }

func (e Unavailable) On() time.Time   { return e.Date }
func (e Holiday) On() time.Time       { return e.Date }
func (e ModifiedHours) On() time.Time { return e.Date }

func (Unavailable) exception()   {}
func (Holiday) exception()       {}
func (ModifiedHours) exception() {}

// ExceptionRecord is the stored form of an exception. At most one record
// exists per (OwnerID, Date).
type ExceptionRecord struct {
	ID      string        `json:"id"`
	OwnerID string        `json:"owner_id"`
	Date    time.Time     `json:"date"`
	Kind    ExceptionKind `json:"kind"`
	Start   *string       `json:"start_time,omitempty"`
	End     *string       `json:"end_time,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// Decode converts the record into its typed variant. Time fields on
// unavailable and holiday records are ignored.
func (r ExceptionRecord) Decode() (Exception, error) {
	switch r.Kind {
	case KindUnavailable:
		return Unavailable{Date: r.Date, Reason: r.Reason}, nil
	case KindHoliday:
		return Holiday{Date: r.Date, Reason: r.Reason}, nil
	case KindModifiedHours:
		if r.Start == nil || r.End == nil || *r.Start == "" || *r.End == "" {
			return nil, fmt.Errorf("%w: modified_hours on %s requires start and end time",
				ErrInvalidException, r.Date.Format(DateFormat))
		}
		start, err := ParseClock(*r.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: start: %v", ErrInvalidException, err)
		}
		end, err := ParseClock(*r.End)
		if err != nil {
			return nil, fmt.Errorf("%w: end: %v", ErrInvalidException, err)
		}
		return ModifiedHours{Date: r.Date, Hours: Interval{Start: start, End: end}, Reason: r.Reason}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidException, r.Kind)
	}
}

// RecordOf converts a typed exception back to its stored form.
func RecordOf(ownerID string, e Exception) ExceptionRecord {
	rec := ExceptionRecord{OwnerID: ownerID, Date: e.On(), Kind: e.Kind()}
	switch v := e.(type) {
	case Unavailable:
		rec.Reason = v.Reason
	case Holiday:
		rec.Reason = v.Reason
	case ModifiedHours:
		start, end := v.Hours.Start.String(), v.Hours.End.String()
		rec.Start, rec.End = &start, &end
		rec.Reason = v.Reason
	}
	return rec
}

// SameDate reports whether a and b fall on the same civil date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to local midnight of its civil date.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
