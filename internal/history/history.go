// Package history keeps a SQLite journal of the wishes warpq handed off to
// the launcher, so past dispatches can be listed after they left the queue.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/warpdl/warpq/pkg/logger"
	"github.com/warpdl/warpq/pkg/wishlib"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("history: journal closed")

// Entry is a single recorded dispatch.
type Entry struct {
	ID           int64     `json:"id"`
	URI          string    `json:"uri"`
	Title        string    `json:"title,omitempty"`
	Mime         string    `json:"mime,omitempty"`
	Handler      string    `json:"handler,omitempty"`
	FileName     string    `json:"fileName,omitempty"`
	QueuedAt     time.Time `json:"queuedAt"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

// Journal is the dispatch history backed by a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path and brings
// its schema up to date.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: empty database path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single connection keeps pragmas and the in-memory case consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Record stores w as dispatched at the given time.
func (j *Journal) Record(ctx context.Context, w *wishlib.Wish, at time.Time) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}
	if w == nil {
		return errors.New("history: nil wish")
	}
	if at.IsZero() {
		at = time.Now()
	}
	var queued string
	if !w.Timestamp.IsZero() {
		queued = w.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	_, err := j.db.ExecContext(
		ctx,
		`INSERT INTO dispatches (uri, title, mime, handler, file_name, queued_at, dispatched_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.URI,
		w.Title,
		w.Mime,
		w.Handler.String(),
		w.FileName,
		queued,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := j.db.QueryContext(
		ctx,
		`SELECT id, uri, title, mime, handler, file_name, queued_at, dispatched_at
        FROM dispatches ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                    Entry
			queued, dispatchedAt string
		)
		if err := rows.Scan(&e.ID, &e.URI, &e.Title, &e.Mime, &e.Handler, &e.FileName, &queued, &dispatchedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		e.QueuedAt = parseTime(queued)
		e.DispatchedAt = parseTime(dispatchedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return entries, nil
}

// Prune deletes all but the newest keep entries and returns how many rows
// were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if j == nil || j.db == nil {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(
		ctx,
		`DELETE FROM dispatches WHERE id NOT IN (
            SELECT id FROM dispatches ORDER BY id DESC LIMIT ?
        )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune dispatches: %w", err)
	}
	return res.RowsAffected()
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Wrap decorates next so that every wish it accepts is recorded in j.
// Recording failures are logged and never fail the hand-off.
func Wrap(next wishlib.Consumer, j *Journal, l logger.Logger) wishlib.Consumer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return wishlib.ConsumerFunc(func(w *wishlib.Wish) error {
		if err := next.Start(w); err != nil {
			return err
		}
		if j == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.Record(ctx, w, time.Now()); err != nil {
			l.Warning("history: %v", err)
		}
		return nil
	})
}
