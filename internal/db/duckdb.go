// Package db holds the DuckDB connection used for station search.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir    string
	DBName     string
	Extensions []string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}
		instance, initErr = Open(filepath.Join(duckdbDir, cfg.DBName+".duckdb"), cfg.Extensions...)
	})
	return instance, initErr
}

// Open opens a DuckDB database at path, or an in-memory one for "", and
// loads the named extensions. Extension failures are ignored; they are only
// needed for optional features.
func Open(path string, extensions ...string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb %s: %w", path, err)
	}
	for _, ext := range extensions {
		_, _ = conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext))
	}
	if err := ensureSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
