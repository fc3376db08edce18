package availability

import (
	"context"
	"time"

	"slotbook/internal/model"
)

// Store is the read side of the storage collaborator.
type Store interface {
	// GetWeeklySchedule returns the recurring hours of a business or employee.
	// It returns nil and no error when the owner has no schedule.
	GetWeeklySchedule(ctx context.Context, ownerID string) (*model.WeeklySchedule, error)

	// GetExceptions returns the owner's exceptions dated within [from, to].
	GetExceptions(ctx context.Context, ownerID string, from, to time.Time) ([]model.ExceptionRecord, error)

	// GetService returns model.ErrServiceNotFound for unknown ids.
	GetService(ctx context.Context, serviceID string) (*model.Service, error)

	// GetEmployee returns model.ErrEmployeeNotFound for unknown ids.
	GetEmployee(ctx context.Context, employeeID string) (*model.Employee, error)

	// GetEmployeesForService lists the employees of a business able to perform a service.
	GetEmployeesForService(ctx context.Context, businessID, serviceID string) ([]model.Employee, error)

	// GetAppointments returns non-cancelled appointments of an employee
	// overlapping [from, to).
	GetAppointments(ctx context.Context, employeeID string, from, to time.Time) ([]model.Appointment, error)
}
