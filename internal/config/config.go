package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/migrations"
	"github.com/jbweber/homelab/lookingglass/internal/zone"
	_ "modernc.org/sqlite"
)

// Zone transfer modes
const (
	TransferModeDig    = "dig"
	TransferModeNative = "native"
)

// DefaultSegment is polled when ENDPOINTS is unset, empty or unparseable
var DefaultSegment = domain.Segment{Name: "default", URL: "http://127.0.0.1:8000"}

// Config holds all configuration for the looking glass service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sources  SourcesConfig

	// Segments and ZoneEndpoints are decoded from Sources
	Segments      []domain.Segment
	ZoneEndpoints []domain.ZoneEndpoint
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host      string `env:"HOST" envDefault:"0.0.0.0"`
	Port      int    `env:"PORT" envDefault:"3000"`
	StaticDir string `env:"STATIC_DIR" envDefault:"../frontend/dist"`
}

// DatabaseConfig holds lease store configuration
type DatabaseConfig struct {
	Path           string `env:"DB_PATH" envDefault:"./leases.db"`
	PruneAfterDays int    `env:"PRUNE_AFTER_DAYS" envDefault:"30"`
}

// SourcesConfig describes the Kea segments and DNS zones to query
type SourcesConfig struct {
	Endpoints         string        `env:"ENDPOINTS"`      // JSON [{"name","url"}]
	ZoneEndpoints     string        `env:"ZONE_ENDPOINTS"` // JSON [{"name","endpoint"}]
	LeaseFetchTimeout time.Duration `env:"LEASE_FETCH_TIMEOUT" envDefault:"30s"`
	ZoneTransferMode  string        `env:"ZONE_TRANSFER_MODE" envDefault:"dig"`
	DigPath           string        `env:"DIG_PATH" envDefault:"dig"`
}

// Load loads configuration from the process environment
func Load() (*Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom loads configuration from the given environment
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Environment: environ}

	if err := env.ParseWithOptions(&cfg.Server, opts); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Database, opts); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Sources, opts); err != nil {
		return nil, fmt.Errorf("parsing sources config: %w", err)
	}

	cfg.Segments = parseSegments(cfg.Sources.Endpoints)
	cfg.ZoneEndpoints = parseZoneEndpoints(cfg.Sources.ZoneEndpoints)

	return cfg, nil
}

// Addr returns the server address in host:port format
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Database.PruneAfterDays < 0 {
		return fmt.Errorf("PRUNE_AFTER_DAYS must not be negative")
	}
	if c.Sources.LeaseFetchTimeout < 0 {
		return fmt.Errorf("LEASE_FETCH_TIMEOUT must not be negative")
	}
	switch c.Sources.ZoneTransferMode {
	case TransferModeDig, TransferModeNative:
	default:
		return fmt.Errorf("ZONE_TRANSFER_MODE must be %q or %q, got %q", TransferModeDig, TransferModeNative, c.Sources.ZoneTransferMode)
	}
	for _, z := range c.ZoneEndpoints {
		if _, _, err := zone.ParseEndpoint(z.Endpoint); err != nil {
			return fmt.Errorf("zone %s: %w", z.Name, err)
		}
	}
	return nil
}

// ZoneTransferer returns the transferer selected by ZONE_TRANSFER_MODE
func (c *Config) ZoneTransferer() zone.Transferer {
	if c.Sources.ZoneTransferMode == TransferModeNative {
		return zone.NativeTransferer{}
	}
	return zone.DigTransferer{Path: c.Sources.DigPath}
}

// InitializeDatabase opens the lease store, tunes the connection and
// brings the schema up to date
func (c *Config) InitializeDatabase(ctx context.Context) (*sql.DB, error) {
	dbPath := c.expandPath(c.Database.Path)

	// Ensure database directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	OptimizeDatabaseConnection(db)

	if err := ApplyPragmaOptimizations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// expandPath resolves a leading "~/" in DB_PATH against the user's home
// directory; the path is used as given when there is no home directory.
func (c *Config) expandPath(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, rest)
	}
	return path
}

func parseSegments(raw string) []domain.Segment {
	var segments []domain.Segment
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &segments); err != nil {
			log.Printf("failed to parse ENDPOINTS, using default segment: %v", err)
			segments = nil
		}
	}

	valid := segments[:0]
	for _, s := range segments {
		if s.Name == "" || s.URL == "" {
			log.Printf("ignoring segment with missing name or url: %+v", s)
			continue
		}
		valid = append(valid, s)
	}

	if len(valid) == 0 {
		return []domain.Segment{DefaultSegment}
	}
	return valid
}

func parseZoneEndpoints(raw string) []domain.ZoneEndpoint {
	if strings.TrimSpace(raw) == "" {
		return []domain.ZoneEndpoint{}
	}

	var zones []domain.ZoneEndpoint
	if err := json.Unmarshal([]byte(raw), &zones); err != nil {
		log.Printf("failed to parse ZONE_ENDPOINTS, no zones configured: %v", err)
		return []domain.ZoneEndpoint{}
	}

	valid := []domain.ZoneEndpoint{}
	for _, z := range zones {
		if z.Name == "" || z.Endpoint == "" {
			log.Printf("ignoring zone with missing name or endpoint: %+v", z)
			continue
		}
		valid = append(valid, z)
	}
	return valid
}
