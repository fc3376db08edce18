package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/model"
)

// appointmentMargin widens appointment queries so bookings whose buffers
// reach into the requested range are returned.
const appointmentMargin = 24 * time.Hour

// GetWeeklySchedule returns nil without error when the owner has no rows.
func (db *DB) GetWeeklySchedule(ctx context.Context, ownerID string) (*model.WeeklySchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, is_open, start_time, end_time, lunch_start, lunch_end
		FROM weekly_schedules
		WHERE owner_id = ?
		ORDER BY day_of_week`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := false
	rules := make(map[model.Weekday]model.DayRule, 7)
	for rows.Next() {
		found = true
		var (
			day                                      int
			isOpen                                   bool
			startTime, endTime, lunchStart, lunchEnd sql.NullString
		)
		if err := rows.Scan(&day, &isOpen, &startTime, &endTime, &lunchStart, &lunchEnd); err != nil {
			return nil, err
		}
		if !isOpen {
			continue
		}

		wd, err := model.WeekdayFromISO(day)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidSchedule, err)
		}
		rule, err := dayRule(startTime.String, endTime.String, lunchStart, lunchEnd)
		if err != nil {
			return nil, fmt.Errorf("owner %s %s: %w", ownerID, wd, err)
		}
		rules[wd] = rule
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return model.NewWeeklySchedule(rules)
}

func dayRule(start, end string, lunchStart, lunchEnd sql.NullString) (model.DayRule, error) {
	openAt, err := model.ParseClock(start)
	if err != nil {
		return model.DayRule{}, fmt.Errorf("%w: %v", model.ErrInvalidSchedule, err)
	}
	closeAt, err := model.ParseClock(end)
	if err != nil {
		return model.DayRule{}, fmt.Errorf("%w: %v", model.ErrInvalidSchedule, err)
	}
	rule := model.OpenDay(openAt, closeAt)
	if lunchStart.Valid && lunchEnd.Valid {
		ls, err := model.ParseClock(lunchStart.String)
		if err != nil {
			return model.DayRule{}, fmt.Errorf("%w: %v", model.ErrInvalidSchedule, err)
		}
		le, err := model.ParseClock(lunchEnd.String)
		if err != nil {
			return model.DayRule{}, fmt.Errorf("%w: %v", model.ErrInvalidSchedule, err)
		}
		rule = rule.WithLunch(ls, le)
	}
	return rule, nil
}

// GetExceptions returns the owner's exceptions dated within [from, to],
// in the location of from.
func (db *DB) GetExceptions(ctx context.Context, ownerID string, from, to time.Time) ([]model.ExceptionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, date, kind, start_time, end_time, reason
		FROM schedule_exceptions
		WHERE owner_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		ownerID, from.Format(model.DateFormat), to.Format(model.DateFormat),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExceptionRecord
	for rows.Next() {
		var (
			rec                        model.ExceptionRecord
			date, kind                 string
			startTime, endTime, reason sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &date, &kind, &startTime, &endTime, &reason); err != nil {
			return nil, err
		}
		rec.Date, err = time.ParseInLocation(model.DateFormat, date, from.Location())
		if err != nil {
			return nil, fmt.Errorf("%w: exception %s date %q", model.ErrInvalidException, rec.ID, date)
		}
		rec.Kind = model.ExceptionKind(kind)
		rec.Start = stringPtr(startTime)
		rec.End = stringPtr(endTime)
		rec.Reason = reason.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetService returns an active service or model.ErrServiceNotFound.
func (db *DB) GetService(ctx context.Context, serviceID string) (*model.Service, error) {
	var s model.Service
	err := db.QueryRowContext(ctx, `
		SELECT id, business_id, name, duration_minutes, buffer_before, buffer_after
		FROM services
		WHERE id = ? AND is_active = 1`,
		serviceID,
	).Scan(&s.ID, &s.BusinessID, &s.Name, &s.Duration, &s.BufferBefore, &s.BufferAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrServiceNotFound, serviceID)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetEmployee returns an active employee with capabilities and working
// hours, or model.ErrEmployeeNotFound.
func (db *DB) GetEmployee(ctx context.Context, employeeID string) (*model.Employee, error) {
	var e model.Employee
	err := db.QueryRowContext(ctx, `
		SELECT id, business_id, name
		FROM employees
		WHERE id = ? AND is_active = 1`,
		employeeID,
	).Scan(&e.ID, &e.BusinessID, &e.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrEmployeeNotFound, employeeID)
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadEmployeeDetails(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEmployeesForService returns the active employees of a business able
// to perform the service, ordered by id.
func (db *DB) GetEmployeesForService(ctx context.Context, businessID, serviceID string) ([]model.Employee, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.id, e.business_id, e.name
		FROM employees e
		JOIN employee_services es ON es.employee_id = e.id
		WHERE e.business_id = ? AND es.service_id = ? AND e.is_active = 1
		ORDER BY e.id`,
		businessID, serviceID,
	)
	if err != nil {
		return nil, err
	}

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.Name); err != nil {
			rows.Close()
			return nil, err
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range employees {
		if err := db.loadEmployeeDetails(ctx, &employees[i]); err != nil {
			return nil, err
		}
	}
	return employees, nil
}

func (db *DB) loadEmployeeDetails(ctx context.Context, e *model.Employee) error {
	rows, err := db.QueryContext(ctx, `
		SELECT es.service_id
		FROM employee_services es
		JOIN services s ON s.id = es.service_id
		WHERE es.employee_id = ? AND s.is_active = 1
		ORDER BY es.service_id`,
		e.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	e.ServiceIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		e.ServiceIDs = append(e.ServiceIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	e.WorkingHours, e.InvalidHours = nil, ""
	ws, err := db.GetWeeklySchedule(ctx, e.ID)
	switch {
	case errors.Is(err, model.ErrInvalidSchedule):
		// Keep the employee so open mode can leave it out on its own.
		e.InvalidHours = err.Error()
		return nil
	case err != nil:
		return err
	}
	e.WorkingHours = ws
	return nil
}

// GetAppointments returns the non-cancelled appointments of an employee
// whose buffered interval overlaps [from, to). Times are returned in the
// location of from.
func (db *DB) GetAppointments(ctx context.Context, employeeID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.id, a.employee_id, a.service_id, a.start_time, a.end_time,
		       COALESCE(a.buffer_before, s.buffer_before, 0),
		       COALESCE(a.buffer_after, s.buffer_after, 0),
		       a.status
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.employee_id = ?
		AND a.start_time < ? AND a.end_time > ?
		AND a.status != ?
		ORDER BY a.start_time`,
		employeeID,
		to.Add(appointmentMargin).UTC(), from.Add(-appointmentMargin).UTC(),
		string(model.StatusCancelled),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var (
			a      model.Appointment
			status string
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.ServiceID, &a.Start, &a.End,
			&a.BufferBefore, &a.BufferAfter, &status); err != nil {
			return nil, err
		}
		a.Status = model.AppointmentStatus(status)
		a.Start = a.Start.In(from.Location())
		a.End = a.End.In(from.Location())

		start, end := a.Occupied()
		if start.Before(to) && from.Before(end) {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}
