package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jbweber/homelab/lookingglass/internal/api"
	"github.com/jbweber/homelab/lookingglass/internal/kea"
	"github.com/jbweber/homelab/lookingglass/internal/repository"
	"github.com/jbweber/homelab/lookingglass/internal/service"
	"github.com/jbweber/homelab/lookingglass/internal/zone"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	log.Printf("Looking Glass starting...")
	logConfig(cfg)

	db, err := cfg.InitializeDatabase(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := repository.NewLeaseRepository(db)
	defer repo.Close()

	leases := service.NewLeaseService(cfg.Segments, kea.NewClient(cfg.Sources.LeaseFetchTimeout), repo)
	zones := service.NewZoneService(cfg.ZoneEndpoints, zone.NewClient(cfg.ZoneTransferer()))

	// a failed prune is not worth refusing to start over
	if _, err := leases.Prune(ctx, cfg.Database.PruneAfterDays); err != nil {
		log.Printf("failed to prune expired leases: %v", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewAPI(leases, zones, cfg.Server.StaticDir).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Sources.LeaseFetchTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server running on http://%s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
