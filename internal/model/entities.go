package model

import (
	"fmt"
	"time"
)

// Service is a bookable offering of a business.
type Service struct {
	ID           string `json:"id"`
	BusinessID   string `json:"business_id"`
	Name         string `json:"name"`
	Duration     int    `json:"duration"`      // minutes
	BufferBefore int    `json:"buffer_before"` // minutes
	BufferAfter  int    `json:"buffer_after"`  // minutes
}

// Validate checks duration and buffer bounds.
func (s *Service) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("%w %s: duration must be positive, got %d", ErrInvalidService, s.ID, s.Duration)
	}
	if s.BufferBefore < 0 || s.BufferAfter < 0 {
		return fmt.Errorf("%w %s: buffers cannot be negative", ErrInvalidService, s.ID)
	}
	return nil
}

// Span is the total time a booking of the service occupies.
func (s *Service) Span() int {
	return s.BufferBefore + s.Duration + s.BufferAfter
}

// Employee is a staff member able to perform a set of services.
type Employee struct {
	ID         string   `json:"id"`
	BusinessID string   `json:"business_id"`
	Name       string   `json:"name"`
	ServiceIDs []string `json:"service_ids"`

	// WorkingHours overrides the business schedule when set.
	WorkingHours *WeeklySchedule `json:"working_hours,omitempty"`
	// InvalidHours holds the reason the stored working hours could not be
	// loaded. Such an employee cannot be scheduled.
	InvalidHours string `json:"invalid_hours,omitempty"`
}

// HoursErr reports stored working hours that failed validation; the error
// matches ErrInvalidSchedule.
func (e *Employee) HoursErr() error {
	if e.InvalidHours == "" {
		return nil
	}
	return invalidHoursError(e.InvalidHours)
}

type invalidHoursError string

func (e invalidHoursError) Error() string { return string(e) }

func (e invalidHoursError) Is(target error) bool { return target == ErrInvalidSchedule }

// CanPerform reports whether serviceID is in the employee's capability set.
func (e *Employee) CanPerform(serviceID string) bool {
	for _, id := range e.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// Ref returns the public identity of the employee.
func (e *Employee) Ref() EmployeeRef {
	return EmployeeRef{ID: e.ID, Name: e.Name}
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Appointment is an existing booking. Buffers are copied from the service
// at booking time so later service edits do not move historical bookings.
type Appointment struct {
	ID           string            `json:"id"`
	EmployeeID   string            `json:"employee_id"`
	ServiceID    string            `json:"service_id"`
	Start        time.Time         `json:"start_time"`
	End          time.Time         `json:"end_time"`
	BufferBefore int               `json:"buffer_before"`
	BufferAfter  int               `json:"buffer_after"`
	Status       AppointmentStatus `json:"status"`
}

// Active reports whether the appointment blocks time.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Occupied returns the padded busy range of the appointment.
func (a *Appointment) Occupied() (start, end time.Time) {
	return a.Start.Add(-time.Duration(a.BufferBefore) * time.Minute),
		a.End.Add(time.Duration(a.BufferAfter) * time.Minute)
}

// EmployeeRef identifies an employee in slot responses.
type EmployeeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeSlot is one candidate start time in an availability response.
type TimeSlot struct {
	Time                   Clock         `json:"time"`
	Available              bool          `json:"available"`
	EmployeeID             string        `json:"employee_id,omitempty"`
	EmployeeName           string        `json:"employee_name,omitempty"`
	AvailableEmployeeCount int           `json:"available_employee_count"`
	AvailableEmployees     []EmployeeRef `json:"available_employees,omitempty"`
}
