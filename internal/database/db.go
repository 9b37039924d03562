// Package database opens the SQLite files creditrisk keeps its training run registry in.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemas embed.FS

// SchemaVersion is stored in PRAGMA user_version once a schema has been applied
const SchemaVersion = 1

// Durability selects the synchronous mode and connection policy
type Durability string

const (
	// DurabilityFull fsyncs every commit and serializes writers. Used for the run registry,
	// where a recorded run must never be lost after the artifact was published.
	DurabilityFull Durability = "full"
	// DurabilityNormal fsyncs at checkpoints only
	DurabilityNormal Durability = "normal"
)

// Checkpoint modes accepted by Checkpoint
const (
	CheckpointPassive  = "PASSIVE"
	CheckpointTruncate = "TRUNCATE"
)

// Config holds database configuration
type Config struct {
	Path       string // file path, or a file: URI for in-memory databases
	Name       string // also selects schemas/<name>_schema.sql
	Durability Durability
}

// DB is an open SQLite database
type DB struct {
	conn       *sql.DB
	path       string
	name       string
	durability Durability
}

// New opens the database, creating its directory if needed
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}
	if cfg.Durability == "" {
		cfg.Durability = DurabilityNormal
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, cfg.Durability))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
	if cfg.Durability == DurabilityFull {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, name: cfg.Name, durability: cfg.Durability}, nil
}

func dsn(path string, durability Durability) string {
	pragmas := []string{"journal_mode(WAL)"}
	if durability == DurabilityFull {
		pragmas = append(pragmas, "synchronous(FULL)")
	} else {
		pragmas = append(pragmas, "synchronous(NORMAL)", "temp_store(MEMORY)")
	}
	pragmas = append(pragmas, "foreign_keys(1)", "busy_timeout(5000)", "wal_autocheckpoint(1000)")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=" + strings.Join(pragmas, "&_pragma=")
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying pool for repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Name() string {
	return db.name
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Durability() Durability {
	return db.durability
}

// Migrate applies the embedded schema named after the database and stamps its version.
// Schemas use IF NOT EXISTS, so running Migrate on every start is safe. Databases
// without a schema file are left alone.
func (db *DB) Migrate() error {
	file := "schemas/" + db.name + "_schema.sql"
	content, err := schemas.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", file, err)
	}

	current, err := db.SchemaVersion(context.Background())
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("database %s has schema version %d, this build understands up to %d", db.name, current, SchemaVersion)
	}

	return db.InTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute schema %s for %s: %w", file, db.name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("failed to stamp schema version: %w", err)
		}
		return nil
	})
}

// SchemaVersion reads PRAGMA user_version; 0 means no schema was applied yet
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version of %s: %w", db.name, err)
	}
	return v, nil
}

// InTx runs fn in a transaction. The transaction is rolled back when fn returns an
// error or panics, and committed otherwise.
func (db *DB) InTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
				return
			}
			err = fmt.Errorf("transaction failed: %w", err)
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

// Ping is the cheap liveness probe used by /health
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// IntegrityCheck runs PRAGMA integrity_check. It reads every page, so it runs at startup only.
func (db *DB) IntegrityCheck(ctx context.Context) error {
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, result)
	}
	return nil
}

// CheckpointResult is the row returned by PRAGMA wal_checkpoint
type CheckpointResult struct {
	Busy         bool `json:"busy"`
	LogFrames    int  `json:"log_frames"`
	Checkpointed int  `json:"checkpointed"`
}

// Checkpoint runs a WAL checkpoint in the given mode
func (db *DB) Checkpoint(ctx context.Context, mode string) (CheckpointResult, error) {
	var res CheckpointResult
	if mode != CheckpointPassive && mode != CheckpointTruncate {
		return res, fmt.Errorf("unsupported checkpoint mode %q", mode)
	}

	var busy int
	query := "PRAGMA wal_checkpoint(" + mode + ")"
	if err := db.conn.QueryRowContext(ctx, query).Scan(&busy, &res.LogFrames, &res.Checkpointed); err != nil {
		return res, fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	res.Busy = busy != 0
	return res, nil
}

// Stats describes the database files
type Stats struct {
	SizeBytes     int64 `json:"size_bytes"`
	WALSizeBytes  int64 `json:"wal_size_bytes"`
	PageCount     int64 `json:"page_count"`
	PageSize      int64 `json:"page_size"`
	FreePages     int64 `json:"free_pages"`
	SchemaVersion int   `json:"schema_version"`
}

// Stats reads file sizes and page statistics
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	if info, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = info.Size()
	}

	for pragma, dst := range map[string]*int64{
		"page_count":     &stats.PageCount,
		"page_size":      &stats.PageSize,
		"freelist_count": &stats.FreePages,
	} {
		if err := db.conn.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", pragma, err)
		}
	}

	v, err := db.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = v
	return stats, nil
}
