// Package state stores the descriptors of local game instances. modbrowse only reads them
// as seeds for a browse session; the instance itself is owned by the launcher.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/glebarez/sqlite"

	"github.com/jxwalker/modbrowse/internal/config"
)

type DB struct {
	SQL  *sql.DB
	Path string
}

// Open opens (creating if needed) <data_root>/instances.db.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if cfg.General.DataRoot == "" {
		return nil, errors.New("general.data_root required")
	}
	if err := config.EnsureDir(cfg.General.DataRoot, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.General.DataRoot, "instances.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout=5000&_pragma=journal_mode(WAL)", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db := &DB{SQL: sqldb, Path: path}
	if err := db.InitInstancesTable(); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}
