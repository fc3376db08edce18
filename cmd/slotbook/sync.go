package main

import (
	"fmt"

	"slotbook/internal/database"

	"github.com/spf13/cobra"
)

func newSyncCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Apply business.yaml to the database and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			bf, err := cfg.LoadBusiness()
			if err != nil {
				return fmt.Errorf("load business config: %w", err)
			}

			db, err := database.NewDB(cfg.Database.Path, &logger)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			if err := db.SyncFromConfig(cmd.Context(), bf, cfg.Location()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), bf.String())
			return nil
		},
	}
}
