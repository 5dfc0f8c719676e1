package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ghrcdaac/granuledb/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes shape. Databases created
// with another version refuse to open.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Limits for query bounds
const (
	MaxLimit     = 1000
	DefaultLimit = 100
)

// DefaultBusyTimeout is how long SQLite waits on a locked database before
// returning SQLITE_BUSY.
const DefaultBusyTimeout = 5 * time.Second

// Config describes how to bind a store.
type Config struct {
	// Path is the SQLite file location. Parent directories are created.
	Path string
	// BusyTimeout defaults to DefaultBusyTimeout when zero.
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

// SQLiteStore is the dedup store handle. The zero value is unbound: Location
// reports "" and every operation fails with ErrNotInitialized until
// Initialize succeeds.
type SQLiteStore struct {
	mu          sync.RWMutex
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	logger      *slog.Logger
}

// NewSQLiteStore returns an unbound handle carrying cfg's settings. cfg.Path
// is ignored; call Initialize to bind.
func NewSQLiteStore(cfg Config) *SQLiteStore {
	return &SQLiteStore{
		busyTimeout: cfg.BusyTimeout,
		logger:      logging.NewComponentLogger(cfg.Logger, "store"),
	}
}

// Open constructs a handle and binds it to cfg.Path.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	s := NewSQLiteStore(cfg)
	if err := s.Initialize(ctx, cfg.Path); err != nil {
		return nil, err
	}
	return s, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func (s *SQLiteStore) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger
}

// Initialize binds the handle to location, creating the database file and
// schema when absent. Calling it again rebinds to the new location and closes
// the previous connection.
func (s *SQLiteStore) Initialize(ctx context.Context, location string) error {
	ctx = ensureContext(ctx)
	location = strings.TrimSpace(location)
	if location == "" {
		return errors.New("database location is required")
	}

	if dir := filepath.Dir(location); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", location)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps per-connection pragmas in force and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := s.busyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.mu.Lock()
	previous := s.db
	s.db = db
	s.path = location
	s.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}

	s.log().Debug("granule store bound",
		logging.String(logging.FieldEventType, "store_initialized"),
		logging.String("path", location))
	return nil
}

// Location returns the bound database path, or "" when unbound.
func (s *SQLiteStore) Location() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Close releases the binding. The handle may be initialized again afterwards.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.path = ""
	return err
}

func initSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, expected %d (run 'granuledb reset' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction on the bound database. The read lock
// keeps a concurrent Initialize from swapping the connection mid-operation.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RemoveFiles deletes a database file together with its WAL side files.
// Missing files are not an error.
func RemoveFiles(path string) error {
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
