package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
)

// ErrNotFound is returned when no instance has the requested id or name.
var ErrNotFound = errors.New("instance not found")

// Instance describes a game instance whose version and loaders seed the browse filters.
type Instance struct {
	ID          int64
	Name        string
	GameVersion string
	ModLoaders  []modplatform.ModLoader
	Path        string
	CreatedAt   time.Time
}

// Seed returns the browse seed derived from the instance.
func (i Instance) Seed() *query.Seed {
	return &query.Seed{InstanceID: i.ID, GameVersion: i.GameVersion, ModLoaders: i.ModLoaders}
}

func (db *DB) InitInstancesTable() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instances (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			game_version TEXT NOT NULL DEFAULT '',
			mod_loaders TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_name ON instances(name);`,
	}
	for _, s := range stmts {
		if _, err := db.SQL.Exec(s); err != nil {
			return fmt.Errorf("init instances table: %w", err)
		}
	}
	return nil
}

// AddInstance inserts inst and returns it with ID and CreatedAt set.
func (db *DB) AddInstance(inst Instance) (Instance, error) {
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.Name == "" {
		return Instance{}, errors.New("instance name is required")
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now()
	}
	res, err := db.SQL.Exec(`INSERT INTO instances(name, game_version, mod_loaders, path, created_at) VALUES(?,?,?,?,?)`,
		inst.Name, strings.TrimSpace(inst.GameVersion), joinLoaders(inst.ModLoaders), inst.Path, inst.CreatedAt.Unix())
	if err != nil {
		return Instance{}, fmt.Errorf("add instance %q: %w", inst.Name, err)
	}
	if inst.ID, err = res.LastInsertId(); err != nil {
		return Instance{}, err
	}
	return inst, nil
}

func (db *DB) GetInstance(id int64) (Instance, error) {
	row := db.SQL.QueryRow(`SELECT id, name, game_version, mod_loaders, path, created_at FROM instances WHERE id = ?`, id)
	return scanInstance(row)
}

func (db *DB) GetInstanceByName(name string) (Instance, error) {
	row := db.SQL.QueryRow(`SELECT id, name, game_version, mod_loaders, path, created_at FROM instances WHERE name = ?`, strings.TrimSpace(name))
	return scanInstance(row)
}

// ListInstances returns all instances ordered by name.
func (db *DB) ListInstances() ([]Instance, error) {
	rows, err := db.SQL.Query(`SELECT id, name, game_version, mod_loaders, path, created_at FROM instances ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (db *DB) RemoveInstance(id int64) error {
	res, err := db.SQL.Exec(`DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(s scanner) (Instance, error) {
	var (
		inst    Instance
		loaders string
		created int64
	)
	if err := s.Scan(&inst.ID, &inst.Name, &inst.GameVersion, &loaders, &inst.Path, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Instance{}, ErrNotFound
		}
		return Instance{}, err
	}
	inst.ModLoaders = splitLoaders(loaders)
	inst.CreatedAt = time.Unix(created, 0)
	return inst, nil
}

func joinLoaders(ls []modplatform.ModLoader) string {
	parts := make([]string, 0, len(ls))
	for _, l := range ls {
		if s := strings.TrimSpace(string(l)); s != "" {
			parts = append(parts, strings.ToLower(s))
		}
	}
	return strings.Join(parts, ",")
}

func splitLoaders(s string) []modplatform.ModLoader {
	if s == "" {
		return nil
	}
	var out []modplatform.ModLoader
	for _, p := range strings.Split(s, ",") {
		out = append(out, modplatform.ModLoader(p))
	}
	return out
}
