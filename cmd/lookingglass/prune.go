package main

import (
	"fmt"

	"github.com/jbweber/homelab/lookingglass/internal/repository"
	"github.com/jbweber/homelab/lookingglass/internal/service"
	"github.com/spf13/cobra"
)

func newPruneCmd(flags *globalFlags) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete leases that are both stale and expired",
		Long: `Delete leases not observed for --days days whose own lifetime
(cltt + valid-lft) has also run out. Defaults to PRUNE_AFTER_DAYS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Database.PruneAfterDays
			}

			ctx := cmd.Context()
			db, err := cfg.InitializeDatabase(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			repo := repository.NewLeaseRepository(db)
			defer repo.Close()

			removed, err := service.NewLeaseService(cfg.Segments, nil, repo).Prune(ctx, days)
			if err != nil {
				return err
			}
			remaining, err := repo.Count(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d leases, %d remaining\n", removed, remaining)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "prune leases not seen for this many days")
	return cmd
}
