package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/model"

	"github.com/google/uuid"
)

// UpsertBusiness creates or renames a business and marks it active.
func (db *DB) UpsertBusiness(ctx context.Context, id, name string) error {
	if err := upsertBusiness(ctx, db, id, name); err != nil {
		return err
	}
	db.publish(ctx, events.BusinessChanged, id)
	return nil
}

func upsertBusiness(ctx context.Context, q execer, id, name string) error {
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO businesses (id, name, is_active, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_active = 1,
			updated_at = excluded.updated_at`,
		id, name, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert business %s: %w", id, err)
	}
	return nil
}

// UpsertService creates or updates a service and marks it active.
func (db *DB) UpsertService(ctx context.Context, svc *model.Service) error {
	if err := upsertService(ctx, db, svc); err != nil {
		return err
	}
	db.publish(ctx, events.ServiceChanged, svc.ID)
	return nil
}

func upsertService(ctx context.Context, q execer, svc *model.Service) error {
	if svc == nil {
		return fmt.Errorf("%w: service is nil", ErrInvalidRecord)
	}
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, buffer_before, buffer_after, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_id = excluded.business_id,
			name = excluded.name,
			duration_minutes = excluded.duration_minutes,
			buffer_before = excluded.buffer_before,
			buffer_after = excluded.buffer_after,
			is_active = 1,
			updated_at = excluded.updated_at`,
		svc.ID, svc.BusinessID, svc.Name, svc.Duration, svc.BufferBefore, svc.BufferAfter, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert service %s: %w", svc.ID, err)
	}
	return nil
}

// UpsertEmployee stores the employee, replaces its capability set and
// stores or clears its own working hours.
func (db *DB) UpsertEmployee(ctx context.Context, emp *model.Employee) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		return upsertEmployee(ctx, tx, emp)
	})
	if err != nil {
		return err
	}
	db.publish(ctx, events.EmployeeChanged, emp.ID)
	return nil
}

func upsertEmployee(ctx context.Context, q execer, emp *model.Employee) error {
	if emp == nil {
		return fmt.Errorf("%w: employee is nil", ErrInvalidRecord)
	}

	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO employees (id, business_id, name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_id = excluded.business_id,
			name = excluded.name,
			is_active = 1,
			updated_at = excluded.updated_at`,
		emp.ID, emp.BusinessID, emp.Name, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert employee %s: %w", emp.ID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM employee_services WHERE employee_id = ?`, emp.ID); err != nil {
		return fmt.Errorf("clear services of %s: %w", emp.ID, err)
	}
	for _, sid := range emp.ServiceIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO employee_services (employee_id, service_id) VALUES (?, ?)`,
			emp.ID, sid,
		); err != nil {
			return fmt.Errorf("link %s to service %s: %w", emp.ID, sid, err)
		}
	}

	if emp.WorkingHours == nil {
		return clearWeeklySchedule(ctx, q, emp.ID)
	}
	return setWeeklySchedule(ctx, q, emp.ID, emp.WorkingHours)
}

// SetWeeklySchedule replaces the weekly hours of a business or employee.
func (db *DB) SetWeeklySchedule(ctx context.Context, ownerID string, ws *model.WeeklySchedule) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		return setWeeklySchedule(ctx, tx, ownerID, ws)
	})
	if err != nil {
		return err
	}
	db.publish(ctx, events.ScheduleChanged, ownerID)
	return nil
}

// ClearWeeklySchedule removes the owner's weekly hours. An employee without
// hours falls back to the business schedule.
func (db *DB) ClearWeeklySchedule(ctx context.Context, ownerID string) error {
	if err := clearWeeklySchedule(ctx, db, ownerID); err != nil {
		return err
	}
	db.publish(ctx, events.ScheduleChanged, ownerID)
	return nil
}

func clearWeeklySchedule(ctx context.Context, q execer, ownerID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM weekly_schedules WHERE owner_id = ?`, ownerID)
	return err
}

func setWeeklySchedule(ctx context.Context, q execer, ownerID string, ws *model.WeeklySchedule) error {
	now := time.Now()
	for _, wd := range model.Weekdays {
		rule := ws.Day(wd)
		var start, end, lunchStart, lunchEnd sql.NullString
		if rule.Open {
			start = sql.NullString{String: rule.OpenAt.String(), Valid: true}
			end = sql.NullString{String: rule.CloseAt.String(), Valid: true}
			if rule.Lunch != nil {
				lunchStart = sql.NullString{String: rule.Lunch.Start.String(), Valid: true}
				lunchEnd = sql.NullString{String: rule.Lunch.End.String(), Valid: true}
			}
		}

		_, err := q.ExecContext(ctx, `
			INSERT INTO weekly_schedules (owner_id, day_of_week, is_open, start_time, end_time, lunch_start, lunch_end, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(owner_id, day_of_week) DO UPDATE SET
				is_open = excluded.is_open,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				lunch_start = excluded.lunch_start,
				lunch_end = excluded.lunch_end,
				updated_at = excluded.updated_at`,
			ownerID, wd.ISO(), boolToInt(rule.Open), start, end, lunchStart, lunchEnd, now,
		)
		if err != nil {
			return fmt.Errorf("set %s schedule of %s: %w", wd, ownerID, err)
		}
	}
	return nil
}

// SetException creates or replaces the exception of rec.OwnerID on
// rec.Date and returns its id.
func (db *DB) SetException(ctx context.Context, rec model.ExceptionRecord) (string, error) {
	id, err := setException(ctx, db, rec, "admin")
	if err != nil {
		return "", err
	}
	db.publish(ctx, events.ExceptionChanged, rec.OwnerID)
	return id, nil
}

func setException(ctx context.Context, q execer, rec model.ExceptionRecord, source string) (string, error) {
	exc, err := rec.Decode()
	if err != nil {
		return "", err
	}
	if mh, ok := exc.(model.ModifiedHours); ok && !mh.Hours.Valid() {
		return "", fmt.Errorf("%w: modified hours %s", model.ErrInvalidSchedule, mh.Hours)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	now := time.Now()
	date := rec.Date.Format(model.DateFormat)
	_, err = q.ExecContext(ctx, `
		INSERT INTO schedule_exceptions (id, owner_id, date, kind, start_time, end_time, reason, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, date) DO UPDATE SET
			kind = excluded.kind,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			reason = excluded.reason,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		rec.ID, rec.OwnerID, date, string(rec.Kind), nullString(rec.Start), nullString(rec.End),
		rec.Reason, source, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("set exception %s %s: %w", rec.OwnerID, date, err)
	}

	var id string
	err = q.QueryRowContext(ctx,
		`SELECT id FROM schedule_exceptions WHERE owner_id = ? AND date = ?`,
		rec.OwnerID, date,
	).Scan(&id)
	return id, err
}

// DeleteException removes the owner's exception on date.
func (db *DB) DeleteException(ctx context.Context, ownerID string, date time.Time) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM schedule_exceptions WHERE owner_id = ? AND date = ?`,
		ownerID, date.Format(model.DateFormat),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	db.publish(ctx, events.ExceptionChanged, ownerID)
	return nil
}

// CreateAppointment stores a new appointment. A missing id is generated.
// When both buffers are zero they are left unset and taken from the
// service on read.
func (db *DB) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a == nil {
		return fmt.Errorf("%w: appointment is nil", ErrInvalidRecord)
	}
	if !a.End.After(a.Start) {
		return fmt.Errorf("%w: appointment must end after it starts", ErrInvalidRecord)
	}
	if a.BufferBefore < 0 || a.BufferAfter < 0 {
		return fmt.Errorf("%w: buffers cannot be negative", ErrInvalidRecord)
	}
	if a.Status == "" {
		a.Status = model.StatusPending
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidRecord, a.Status)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	var before, after sql.NullInt64
	if a.BufferBefore != 0 || a.BufferAfter != 0 {
		before = sql.NullInt64{Int64: int64(a.BufferBefore), Valid: true}
		after = sql.NullInt64{Int64: int64(a.BufferAfter), Valid: true}
	}

	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO appointments (id, employee_id, service_id, start_time, end_time, buffer_before, buffer_after, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EmployeeID, a.ServiceID, a.Start.UTC(), a.End.UTC(), before, after, string(a.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// CancelAppointment marks an appointment cancelled.
func (db *DB) CancelAppointment(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusCancelled), time.Now(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return nil
}
