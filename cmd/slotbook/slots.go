package main

import (
	"encoding/json"
	"fmt"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/database"
	"slotbook/internal/model"

	"github.com/spf13/cobra"
)

type slotsOptions struct {
	business string
	service  string
	employee string
	date     string
	days     int
}

func newSlotsCmd(flags *globalFlags) *cobra.Command {
	o := &slotsOptions{}
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print availability for a service as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			loc := cfg.Location()

			date := model.StartOfDay(time.Now().In(loc))
			if o.date != "" {
				if date, err = time.ParseInLocation(model.DateFormat, o.date, loc); err != nil {
					return fmt.Errorf("invalid --date %q; expected YYYY-MM-DD", o.date)
				}
			}

			db, err := database.NewDB(cfg.Database.Path, &logger)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			engine := availability.NewEngine(db, availability.Options{
				Granularity:    cfg.Granularity(),
				MaxConcurrency: cfg.Engine.MaxConcurrency,
			}, &logger)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if o.days > 1 {
				days, err := engine.GetAvailableDays(cmd.Context(), availability.DaysRequest{
					BusinessID: o.business,
					ServiceID:  o.service,
					From:       date,
					To:         date.AddDate(0, 0, o.days-1),
					EmployeeID: o.employee,
				})
				if err != nil {
					return err
				}
				return enc.Encode(days)
			}

			res, err := engine.GetAvailability(cmd.Context(), availability.Request{
				BusinessID: o.business,
				ServiceID:  o.service,
				Date:       date,
				EmployeeID: o.employee,
			})
			if err != nil {
				return err
			}
			for _, ex := range res.Excluded {
				logger.Warn().Err(ex.Err).Str("employee_id", ex.EmployeeID).Msg("employee excluded")
			}
			return enc.Encode(res.Slots)
		},
	}

	cmd.Flags().StringVar(&o.business, "business", "", "business id")
	cmd.Flags().StringVar(&o.service, "service", "", "service id")
	cmd.Flags().StringVar(&o.employee, "employee", "", "employee id; empty checks every capable employee")
	cmd.Flags().StringVar(&o.date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&o.days, "days", 1, "print per-day counts for this many days starting at --date")
	_ = cmd.MarkFlagRequired("business")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}
