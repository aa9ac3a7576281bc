// Package builddb is the build database the fan-out schedulers enqueue
// into: sourcestamps, buildsets, buildset properties and per-builder
// build requests, persisted in sqlite.
//
// All writes happen inside RunInteraction, which wraps one sql.Tx. That
// transaction is the "interaction scope" enqueue callers run in: either
// every enqueue of one triggering event commits, or the whole interaction
// rolls back.
package builddb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "l10nsched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type DB struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("builddb: path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	d := &DB{db: db, log: log}
	if err := d.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, string(b))
	return err
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// RunInteraction runs fn inside one transaction. A nil return commits;
// an error (or panic) rolls the whole interaction back and the error is
// returned to the caller.
func (d *DB) RunInteraction(ctx context.Context, fn func(tx Interaction) error) error {
	if d == nil || d.db == nil {
		return ErrClosed
	}
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("builddb: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&txInteraction{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("builddb: commit: %w", err)
	}
	committed = true
	return nil
}

// ---- Read side (diagnostics / CLI) ----

// RecentBuildSets returns the newest buildsets, newest first.
func (d *DB) RecentBuildSets(ctx context.Context, limit int) ([]BuildSetInfo, error) {
	if d == nil || d.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT b.id, s.branch, s.revision, b.reason, b.submitted_at,
		        (SELECT COUNT(*) FROM build_requests r WHERE r.buildset_id = b.id)
		 FROM buildsets b JOIN sourcestamps s ON s.id = b.sourcestamp_id
		 ORDER BY b.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuildSetInfo
	for rows.Next() {
		var bs BuildSetInfo
		var at string
		if err := rows.Scan(&bs.ID, &bs.Branch, &bs.Revision, &bs.Reason, &at, &bs.Requests); err != nil {
			return nil, err
		}
		bs.SubmittedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, bs)
	}
	return out, rows.Err()
}

// BuildSetProperties returns the persisted properties of one buildset.
func (d *DB) BuildSetProperties(ctx context.Context, buildsetID int64) ([]PropertyRow, error) {
	if d == nil || d.db == nil {
		return nil, ErrClosed
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT name, value_json, source FROM buildset_properties
		 WHERE buildset_id = ? ORDER BY name`, buildsetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PropertyRow
	for rows.Next() {
		var p PropertyRow
		if err := rows.Scan(&p.Name, &p.ValueJSON, &p.Source); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
