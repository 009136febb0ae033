// Package backup writes point-in-time copies of Kea leases and DNS zones
// together with shell scripts that load them back.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/kea"
)

const (
	// DefaultKeaURL is the control agent the lease restore script posts to
	// when KEA_URL is unset
	DefaultKeaURL = "http://127.0.0.1:8000/"

	stampLayout      = "2006-01-02-15-04-05"
	progressInterval = 10
)

// Writer writes backups under Dir. Every backup from one Writer shares the
// timestamp taken when it was created.
type Writer struct {
	Dir   string
	stamp string
	now   time.Time
}

// NewWriter creates a writer for dir stamped with the current time
func NewWriter(dir string) *Writer {
	return newWriterAt(dir, time.Now())
}

func newWriterAt(dir string, now time.Time) *Writer {
	now = now.UTC()
	return &Writer{Dir: dir, stamp: now.Format(stampLayout), now: now}
}

// WriteLeases writes leases.json and restore-leases.sh for one segment into
// <dir>/kea-leases-<segment>-<stamp>/ and returns that directory.
func (w *Writer) WriteLeases(segment string, leases []domain.KeaLease) (string, error) {
	dir := filepath.Join(w.Dir, fmt.Sprintf("kea-leases-%s-%s", safeName(segment), w.stamp))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	if leases == nil {
		leases = []domain.KeaLease{}
	}
	raw, err := json.MarshalIndent(leases, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode leases: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leases.json"), append(raw, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write leases.json: %w", err)
	}

	script, err := w.leaseRestoreScript(segment, leases)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "restore-leases.sh"), []byte(script), 0755); err != nil {
		return "", fmt.Errorf("failed to write restore-leases.sh: %w", err)
	}

	return dir, nil
}

func (w *Writer) leaseRestoreScript(segment string, leases []domain.KeaLease) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/sh\n# Restore script for Kea DHCP leases of segment %s\n", segment)
	fmt.Fprintf(&b, "# Generated: %s\n\n", w.now.Format(time.RFC3339))
	b.WriteString("set -e\n\n")
	fmt.Fprintf(&b, "KEA_URL=\"${KEA_URL:-%s}\"\n\n", DefaultKeaURL)
	b.WriteString("echo \"=== Restoring Kea DHCP Leases ===\"\n")
	fmt.Fprintf(&b, "echo \"Total leases to restore: %d\"\n\n", len(leases))

	for i, lease := range leases {
		cmd, err := json.Marshal(kea.LeaseAdd(lease))
		if err != nil {
			return "", fmt.Errorf("failed to encode lease %s: %w", lease.IPAddress, err)
		}
		fmt.Fprintf(&b, "wget -q -O /dev/null --post-data=%s --header='Content-Type: application/json' \"$KEA_URL\" 2>/dev/null || echo \"  Warning: Failed to add lease %s\"\n",
			shellQuote(string(cmd)), lease.IPAddress)

		if (i+1)%progressInterval == 0 {
			fmt.Fprintf(&b, "echo \"  Restored %d/%d leases...\"\n", i+1, len(leases))
		}
	}

	fmt.Fprintf(&b, "\necho \"Restored %d leases\"\n", len(leases))
	return b.String(), nil
}

// WriteZone writes <zone>.zone and a knotc restore script for one zone into
// <dir>/zones-<stamp>/ and returns the zone file path. SOA and NS records
// never reach the writer, so the file is for inspection and re-population of
// an existing zone rather than a standalone master file.
func (w *Writer) WriteZone(zone string, records []domain.ZoneRecord) (string, error) {
	zone = strings.TrimSuffix(zone, ".")
	dir := filepath.Join(w.Dir, "zones-"+w.stamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	zoneFile := filepath.Join(dir, safeName(zone)+".zone")
	if err := os.WriteFile(zoneFile, []byte(w.zoneFile(zone, records)), 0644); err != nil {
		return "", fmt.Errorf("failed to write zone file: %w", err)
	}

	script := filepath.Join(dir, "restore-"+strings.ReplaceAll(safeName(zone), ".", "_")+".sh")
	if err := os.WriteFile(script, []byte(w.zoneRestoreScript(zone, records)), 0755); err != nil {
		return "", fmt.Errorf("failed to write zone restore script: %w", err)
	}

	return zoneFile, nil
}

func (w *Writer) zoneFile(zone string, records []domain.ZoneRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; Backup of %s\n; Generated: %s\n", zone, w.now.Format(time.RFC3339))
	fmt.Fprintf(&b, "$ORIGIN %s.\n", zone)
	for _, r := range records {
		if r.TTL != nil {
			fmt.Fprintf(&b, "%s\t%d\tIN\t%s\t%s\n", r.Name, *r.TTL, r.Type, r.Value)
		} else {
			fmt.Fprintf(&b, "%s\tIN\t%s\t%s\n", r.Name, r.Type, r.Value)
		}
	}
	return b.String()
}

func (w *Writer) zoneRestoreScript(zone string, records []domain.ZoneRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/sh\n# Restore script for zone: %s\n# Generated: %s\n\n", zone, w.now.Format(time.RFC3339))
	fmt.Fprintf(&b, "set -e\n\necho \"Restoring zone: %s\"\n", zone)
	fmt.Fprintf(&b, "knotc zone-begin %s 2>/dev/null || true\n\n", shellQuote(zone))

	for _, r := range records {
		args := []string{shellQuote(zone), shellQuote(r.Name)}
		if r.TTL != nil {
			args = append(args, fmt.Sprintf("%d", *r.TTL))
		}
		args = append(args, "IN", shellQuote(r.Type), shellQuote(r.Value))
		fmt.Fprintf(&b, "knotc zone-set %s 2>/dev/null || true\n", strings.Join(args, " "))
	}

	fmt.Fprintf(&b, "\nknotc zone-commit %s 2>/dev/null || true\n", shellQuote(zone))
	fmt.Fprintf(&b, "echo \"Restored %d records to %s\"\n", len(records), zone)
	return b.String()
}

// shellQuote wraps s in single quotes for /bin/sh
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// safeName keeps user supplied names from escaping the backup directory
func safeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
}
