// Package history keeps a SQLite journal of render passes.
//
// Every pass of the render pipeline, successful or not, can be recorded with
// the template it rendered, the engine used, how long it took and the error
// code it failed with. The journal is queried by the history command.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/agilira/go-errors"

	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// Status values for Entry.Status.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// SetupSchema initializes the render_history table in the provided database.
// It is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaHistory = `
CREATE TABLE IF NOT EXISTS render_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at INTEGER NOT NULL,
    template TEXT NOT NULL,
    engine TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    status TEXT NOT NULL,
    error_code TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT ''
);
`
		indexStarted = `CREATE INDEX IF NOT EXISTS idx_render_history_started ON render_history (started_at);`
	)

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, errcodes.ErrCodeHistory, "could not begin transaction: "+err.Error())
	}

	// A committed transaction makes this rollback a no-op.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaHistory); err != nil {
		return errors.Wrap(err, errcodes.ErrCodeHistory, "could not create history schema: "+err.Error())
	}

	if _, err = tx.Exec(indexStarted); err != nil {
		return errors.Wrap(err, errcodes.ErrCodeHistory, "could not create history index: "+err.Error())
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, errcodes.ErrCodeHistory, "could not commit transaction: "+err.Error())
	}

	return nil
}

// Entry is one recorded render pass.
type Entry struct {
	ID        int64
	StartedAt time.Time
	Template  string
	Engine    string
	Duration  time.Duration
	Status    string
	ErrorCode string
	Message   string
}

// Failed reports whether the pass failed.
func (e Entry) Failed() bool {
	return e.Status == StatusFailed
}

// Store records and queries render passes through prepared statements.
type Store struct {
	db               *sql.DB
	stmtInsert       *sql.Stmt
	stmtRecent       *sql.Stmt
	stmtRecentFailed *sql.Stmt
	stmtPrune        *sql.Stmt
	stmtCount        *sql.Stmt
	logger           *slog.Logger
}

// preparer is the part of *sql.DB NewStore needs.
type preparer interface {
	Prepare(query string) (*sql.Stmt, error)
}

// NewStore creates a Store on a database whose schema is already set up.
func NewStore(db *sql.DB) (*Store, error) {
	return newStore(db, db)
}

func newStore(db *sql.DB, p preparer) (*Store, error) {
	const columns = `id, started_at, template, engine, duration_ms, status, error_code, message`

	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	statements := []struct {
		dst   **sql.Stmt
		query string
		what  string
	}{
		{&s.stmtInsert, `INSERT INTO render_history (started_at, template, engine, duration_ms, status, error_code, message) VALUES (?, ?, ?, ?, ?, ?, ?);`, "insert"},
		{&s.stmtRecent, `SELECT ` + columns + ` FROM render_history ORDER BY id DESC LIMIT ?;`, "recent query"},
		{&s.stmtRecentFailed, `SELECT ` + columns + ` FROM render_history WHERE status = '` + StatusFailed + `' ORDER BY id DESC LIMIT ?;`, "failed query"},
		{&s.stmtPrune, `DELETE FROM render_history WHERE id NOT IN (SELECT id FROM render_history ORDER BY id DESC LIMIT ?);`, "prune"},
		{&s.stmtCount, `SELECT status, COUNT(*) FROM render_history GROUP BY status;`, "count"},
	}
	for _, st := range statements {
		stmt, err := p.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, errcodes.ErrCodeHistory, "could not prepare "+st.what+": "+err.Error())
		}
		*st.dst = stmt
	}
	return s, nil
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close releases the prepared statements. The database itself stays open.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{s.stmtInsert, s.stmtRecent, s.stmtRecentFailed, s.stmtPrune, s.stmtCount} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// Record appends e to the journal. A zero StartedAt is recorded as now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.Status == "" {
		e.Status = StatusOK
	}
	_, err := s.stmtInsert.ExecContext(ctx,
		e.StartedAt.UnixMilli(), e.Template, e.Engine, e.Duration.Milliseconds(),
		e.Status, e.ErrorCode, e.Message)
	if err != nil {
		return errors.Wrap(err, errcodes.ErrCodeHistory, "could not record render pass: "+err.Error()).
			WithContext("template", e.Template)
	}
	return nil
}

// Recent returns up to limit entries, newest first. With failedOnly set
// only failed passes are returned.
func (s *Store) Recent(ctx context.Context, limit int, failedOnly bool) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}
	stmt := s.stmtRecent
	if failedOnly {
		stmt = s.stmtRecentFailed
	}
	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, errcodes.ErrCodeHistory, "could not query history: "+err.Error())
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			startedAt  int64
			durationMs int64
		)
		if err = rows.Scan(&e.ID, &startedAt, &e.Template, &e.Engine, &durationMs, &e.Status, &e.ErrorCode, &e.Message); err != nil {
			return nil, errors.Wrap(err, errcodes.ErrCodeHistory, "could not scan history row: "+err.Error())
		}
		e.StartedAt = time.UnixMilli(startedAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, errcodes.ErrCodeHistory, "could not read history: "+err.Error())
	}
	return entries, nil
}

// Prune deletes all but the newest keep entries and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, errors.New(errcodes.ErrCodeInvalidConfig, fmt.Sprintf("keep must not be negative, got %d", keep))
	}
	res, err := s.stmtPrune.ExecContext(ctx, keep)
	if err != nil {
		return 0, errors.Wrap(err, errcodes.ErrCodeHistory, "could not prune history: "+err.Error())
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errcodes.ErrCodeHistory, "could not count pruned rows: "+err.Error())
	}
	s.logger.InfoContext(ctx, "History pruned", slog.Int64("removed", removed), slog.Int("kept", keep))
	return removed, nil
}

// Counts returns the number of recorded passes per status.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.stmtCount.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errcodes.ErrCodeHistory, "could not count history: "+err.Error())
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	counts := map[string]int{StatusOK: 0, StatusFailed: 0}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err = rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, errcodes.ErrCodeHistory, "could not scan count row: "+err.Error())
		}
		counts[status] = n
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, errcodes.ErrCodeHistory, "could not read counts: "+err.Error())
	}
	return counts, nil
}
