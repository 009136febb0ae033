package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jbweber/homelab/lookingglass/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags override the environment for every subcommand
type globalFlags struct {
	dbPath string
	port   int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "lookingglass",
		Short: "Kea DHCP lease history and DNS zone viewer",
		Long: `Looking Glass polls Kea control agents for DHCP leases, keeps a history of
every lease it has seen in SQLite, and transfers DNS zones on demand.

Configuration comes from the environment (PORT, DB_PATH, ENDPOINTS,
ZONE_ENDPOINTS, ...); --db and --port override it.`,
		SilenceUsage: true,
		// serve is the default action
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	root.PersistentFlags().IntVar(&flags.port, "port", 0, "listen port (overrides PORT)")

	root.AddCommand(
		newServeCmd(flags),
		newPruneCmd(flags),
		newBackupCmd(flags),
	)
	return root
}

// loadConfig reads the environment, applies flag overrides and validates the result
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}
	if flags.port != 0 {
		cfg.Server.Port = flags.port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func logConfig(cfg *config.Config) {
	log.Printf("Port: %d", cfg.Server.Port)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Configured endpoints:")
	for _, s := range cfg.Segments {
		log.Printf("  - %s: %s", s.Name, s.URL)
	}
	if len(cfg.ZoneEndpoints) > 0 {
		log.Printf("Configured zones (%s transfer):", cfg.Sources.ZoneTransferMode)
		for _, z := range cfg.ZoneEndpoints {
			log.Printf("  - %s: %s", z.Name, z.Endpoint)
		}
	}
}
