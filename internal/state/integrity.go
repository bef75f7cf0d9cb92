package state

import (
	"fmt"
	"strings"
)

// CheckIntegrity runs SQLite's integrity check on the database
func (db *DB) CheckIntegrity() error {
	if db == nil || db.SQL == nil {
		return fmt.Errorf("database not open")
	}

	var result string
	if err := db.SQL.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed to run: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}
	return nil
}

// Backup copies the database to destPath with VACUUM INTO.
func (db *DB) Backup(destPath string) error {
	if db == nil || db.SQL == nil {
		return fmt.Errorf("database not open")
	}
	if strings.ContainsRune(destPath, '\'') {
		return fmt.Errorf("backup path may not contain quotes: %s", destPath)
	}
	if _, err := db.SQL.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return nil
}

type DBStats struct {
	SizeBytes int64
	Instances int
}

func (db *DB) GetStats() (*DBStats, error) {
	if db == nil || db.SQL == nil {
		return nil, fmt.Errorf("database not open")
	}
	stats := &DBStats{}
	var pageCount, pageSize int64
	if err := db.SQL.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := db.SQL.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.SizeBytes = pageCount * pageSize
		}
	}
	if err := db.SQL.QueryRow("SELECT COUNT(*) FROM instances").Scan(&stats.Instances); err != nil {
		return nil, fmt.Errorf("count instances: %w", err)
	}
	return stats, nil
}
