package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/jbweber/homelab/lookingglass/internal/backup"
	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/kea"
	"github.com/jbweber/homelab/lookingglass/internal/zone"
	"github.com/spf13/cobra"
)

func newBackupCmd(flags *globalFlags) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up live leases or zones with restore scripts",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "./backups", "backup directory")

	cmd.AddCommand(newBackupLeasesCmd(flags, &dir), newBackupZonesCmd(flags, &dir))
	return cmd
}

func newBackupLeasesCmd(flags *globalFlags, dir *string) *cobra.Command {
	var segmentName string

	cmd := &cobra.Command{
		Use:   "leases",
		Short: "Fetch leases from Kea and write leases.json plus a lease4-add restore script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			segments, err := selectSegments(cfg.Segments, segmentName)
			if err != nil {
				return err
			}

			client := kea.NewClient(cfg.Sources.LeaseFetchTimeout)
			writer := backup.NewWriter(*dir)

			var failed []error
			for _, segment := range segments {
				result := client.GetLeases(cmd.Context(), segment.URL)
				if !result.Success {
					log.Printf("failed to fetch leases from segment %s: %s", segment.Name, result.Error)
					failed = append(failed, fmt.Errorf("segment %s: %s", segment.Name, result.Error))
					continue
				}

				path, err := writer.WriteLeases(segment.Name, result.Leases)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d leases from %s to %s\n", len(result.Leases), segment.Name, path)
			}

			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVar(&segmentName, "segment", "", "only back up this segment")
	return cmd
}

func newBackupZonesCmd(flags *globalFlags, dir *string) *cobra.Command {
	var zoneName string

	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Transfer zones and write zone files plus knotc restore scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			endpoints, err := selectZones(cfg.ZoneEndpoints, zoneName)
			if err != nil {
				return err
			}

			client := zone.NewClient(cfg.ZoneTransferer())
			writer := backup.NewWriter(*dir)

			var failed []error
			for _, endpoint := range endpoints {
				data := client.FetchZone(cmd.Context(), endpoint)
				if data.Error != "" {
					failed = append(failed, fmt.Errorf("zone %s: %s", endpoint.Name, data.Error))
					continue
				}

				path, err := writer.WriteZone(endpoint.Name, data.Records)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d records from %s to %s\n", len(data.Records), endpoint.Name, path)
			}

			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVar(&zoneName, "zone", "", "only back up this zone")
	return cmd
}

func selectSegments(segments []domain.Segment, name string) ([]domain.Segment, error) {
	if name == "" {
		return segments, nil
	}
	for _, s := range segments {
		if s.Name == name {
			return []domain.Segment{s}, nil
		}
	}
	return nil, fmt.Errorf("segment %q is not configured", name)
}

func selectZones(zones []domain.ZoneEndpoint, name string) ([]domain.ZoneEndpoint, error) {
	if name == "" {
		if len(zones) == 0 {
			return nil, errors.New("no zone endpoints configured")
		}
		return zones, nil
	}
	for _, z := range zones {
		if z.Name == name {
			return []domain.ZoneEndpoint{z}, nil
		}
	}
	return nil, fmt.Errorf("zone %q is not configured", name)
}
