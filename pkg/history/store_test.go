package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	_ "github.com/mattn/go-sqlite3"

	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// setupTestStore creates a fresh SQLite database and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	// Idempotent.
	if err := SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema failed: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	entries := []Entry{
		{StartedAt: start, Template: "/a.html", Engine: "handlebars", Duration: 12 * time.Millisecond, Status: StatusOK},
		{StartedAt: start.Add(time.Second), Template: "/a.html", Engine: "unrecognized", Status: StatusFailed,
			ErrorCode: errcodes.ErrCodeEngineUnknown, Message: `unrecognized template engine "mustache"`},
		{StartedAt: start.Add(2 * time.Second), Template: "<stdin>", Engine: "tera", Duration: 3 * time.Millisecond},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := s.Recent(ctx, 10, false)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	want := []Entry{entries[2], entries[1], entries[0]}
	want[0].Status = StatusOK
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Entry{}, "ID"), cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("Recent mismatch (-want +got):\n%s", diff)
	}

	failed, err := s.Recent(ctx, 10, true)
	if err != nil {
		t.Fatalf("Recent(failed) failed: %v", err)
	}
	if len(failed) != 1 || !failed[0].Failed() || failed[0].ErrorCode != errcodes.ErrCodeEngineUnknown {
		t.Errorf("expected the single failed entry, got %+v", failed)
	}

	limited, err := s.Recent(ctx, 2, false)
	if err != nil {
		t.Fatalf("Recent(2) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Template != "<stdin>" {
		t.Errorf("expected the two newest entries, got %+v", limited)
	}

	none, err := s.Recent(ctx, 0, false)
	if err != nil || len(none) != 0 {
		t.Errorf("expected no entries for limit 0, got %d (%v)", len(none), err)
	}
}

func TestStore_Prune(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Record(ctx, Entry{Template: fmt.Sprintf("/t%d.html", i), Engine: "none"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	removed, err := s.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed rows, got %d", removed)
	}
	got, err := s.Recent(ctx, 10, false)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 || got[0].Template != "/t4.html" || got[1].Template != "/t3.html" {
		t.Errorf("expected the two newest entries to survive, got %+v", got)
	}

	if _, err := s.Prune(ctx, -1); !errcodes.Is(err, errcodes.ErrCodeInvalidConfig) {
		t.Errorf("expected %s for a negative keep, got %v", errcodes.ErrCodeInvalidConfig, err)
	}
}

func TestStore_Counts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	statuses := []string{StatusOK, StatusFailed, StatusOK}
	for _, status := range statuses {
		if err := s.Record(ctx, Entry{Template: "/x", Engine: "liquid", Status: status}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if diff := cmp.Diff(map[string]int{StatusOK: 2, StatusFailed: 1}, counts); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
}

// failingPreparer prepares through db until the failAt-th statement, which
// fails, and keeps every statement it handed out.
type failingPreparer struct {
	db     *sql.DB
	failAt int
	stmts  []*sql.Stmt
}

func (p *failingPreparer) Prepare(query string) (*sql.Stmt, error) {
	if len(p.stmts) == p.failAt {
		return nil, fmt.Errorf("prepare %d refused", p.failAt)
	}
	stmt, err := p.db.Prepare(query)
	if err == nil {
		p.stmts = append(p.stmts, stmt)
	}
	return stmt, err
}

func TestNewStore_ClosesPreparedStatementsOnFailure(t *testing.T) {
	s := setupTestStore(t)

	p := &failingPreparer{db: s.db, failAt: 3}
	store, err := newStore(s.db, p)
	if store != nil || !errcodes.Is(err, errcodes.ErrCodeHistory) {
		t.Fatalf("expected %s and no store, got %v, %v", errcodes.ErrCodeHistory, store, err)
	}
	if !strings.Contains(err.Error(), "prepare 3 refused") {
		t.Errorf("error should carry the cause: %v", err)
	}
	if len(p.stmts) != 3 {
		t.Fatalf("expected 3 prepared statements before the failure, got %d", len(p.stmts))
	}
	for i, stmt := range p.stmts {
		if _, err := stmt.Exec(); err == nil || !strings.Contains(err.Error(), "closed") {
			t.Errorf("statement %d should be closed, Exec returned %v", i, err)
		}
	}
}

func TestNewStore_MissingSchema(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := NewStore(db); !errcodes.Is(err, errcodes.ErrCodeHistory) {
		t.Errorf("expected %s without a schema, got %v", errcodes.ErrCodeHistory, err)
	}
}
