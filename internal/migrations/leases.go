package migrations

import (
	"database/sql"
)

// GetLeaseMigrations returns the schema for the lease history
func GetLeaseMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_leases_table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS leases (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						segment TEXT NOT NULL,
						ip_address TEXT NOT NULL,
						hw_address TEXT NOT NULL,
						hostname TEXT,
						subnet_id INTEGER NOT NULL,
						valid_lft INTEGER NOT NULL,
						cltt INTEGER NOT NULL,
						state INTEGER NOT NULL,
						fqdn_fwd INTEGER NOT NULL DEFAULT 0,
						fqdn_rev INTEGER NOT NULL DEFAULT 0,
						client_id TEXT,
						created_at INTEGER NOT NULL,
						updated_at INTEGER NOT NULL,
						UNIQUE(segment, ip_address, hw_address)
					)
				`)
				if err != nil {
					return err
				}

				indices := []string{
					"CREATE INDEX IF NOT EXISTS idx_leases_created ON leases(created_at DESC)",
					"CREATE INDEX IF NOT EXISTS idx_leases_segment ON leases(segment)",
					"CREATE INDEX IF NOT EXISTS idx_leases_ip ON leases(ip_address)",
				}
				for _, indexSQL := range indices {
					if _, err := tx.Exec(indexSQL); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec(`DROP TABLE IF EXISTS leases`)
				return err
			},
		},
		{
			Version: 2,
			Name:    "add_lease_expiry_index",
			Up: func(tx *sql.Tx) error {
				// Pruning filters on updated_at first
				_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_leases_updated ON leases(updated_at)`)
				return err
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec(`DROP INDEX IF EXISTS idx_leases_updated`)
				return err
			},
		},
	}
}
