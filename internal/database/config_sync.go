package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/events"
)

// SyncFromConfig applies business.yaml to the database in one transaction.
// It upserts businesses, services and employees, rewrites their weekly
// schedules, replaces exceptions that came from a previous sync and marks
// entities missing from the file inactive. Exception dates are interpreted
// in loc.
func (db *DB) SyncFromConfig(ctx context.Context, cfg *config.BusinessFile, loc *time.Location) error {
	if cfg == nil {
		return fmt.Errorf("business config is nil")
	}
	if loc == nil {
		loc = time.Local
	}

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		seen := map[string]map[string]struct{}{
			"businesses": {},
			"services":   {},
			"employees":  {},
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_exceptions WHERE source = 'config'`); err != nil {
			return fmt.Errorf("clear synced exceptions: %w", err)
		}

		for i := range cfg.Businesses {
			b := &cfg.Businesses[i]
			if err := upsertBusiness(ctx, tx, b.ID, b.Name); err != nil {
				return err
			}
			seen["businesses"][b.ID] = struct{}{}

			weekly, err := b.Schedule.Weekly()
			if err != nil {
				return fmt.Errorf("business %s schedule: %w", b.ID, err)
			}
			if err := setWeeklySchedule(ctx, tx, b.ID, weekly); err != nil {
				return err
			}

			records, err := b.ExceptionRecords(loc)
			if err != nil {
				return fmt.Errorf("business %s: %w", b.ID, err)
			}
			for _, rec := range records {
				if _, err := setException(ctx, tx, rec, "config"); err != nil {
					return err
				}
			}

			for _, s := range b.Services {
				svc := s.Service(b.ID)
				if err := upsertService(ctx, tx, &svc); err != nil {
					return err
				}
				seen["services"][svc.ID] = struct{}{}
			}

			for j := range b.Employees {
				ec := &b.Employees[j]
				emp, err := ec.Employee(b.ID)
				if err != nil {
					return fmt.Errorf("employee %s: %w", ec.ID, err)
				}
				if err := upsertEmployee(ctx, tx, &emp); err != nil {
					return err
				}
				seen["employees"][emp.ID] = struct{}{}

				records, err := ec.ExceptionRecords(loc)
				if err != nil {
					return fmt.Errorf("employee %s: %w", ec.ID, err)
				}
				for _, rec := range records {
					if _, err := setException(ctx, tx, rec, "config"); err != nil {
						return err
					}
				}
			}
		}

		for _, table := range []string{"employees", "services", "businesses"} {
			if err := deactivateMissing(ctx, tx, table, seen[table]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Info().Str("config", cfg.String()).Msg("business config applied")
	db.publish(ctx, events.ConfigApplied, "")
	return nil
}

// deactivateMissing marks rows of table whose id is not in seen inactive.
// table is one of the fixed entity tables.
func deactivateMissing(ctx context.Context, tx *sql.Tx, table string, seen map[string]struct{}) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE is_active = 1`, table))
	if err != nil {
		return err
	}
	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	now := time.Now()
	for _, id := range missing {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET is_active = 0, updated_at = ? WHERE id = ?`, table),
			now, id,
		); err != nil {
			return fmt.Errorf("deactivate %s %s: %w", table, id, err)
		}
	}
	return nil
}
