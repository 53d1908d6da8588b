// Package history records enrichment runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("history: run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "success"
	StatusPartial   = "partial"
	StatusFailed    = "error"
)

// Lines is a string list stored as a JSON column.
type Lines []string

func (l Lines) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}

	b, err := json.Marshal([]string(l))

	return string(b), err
}

func (l *Lines) Scan(src any) error {
	var raw []byte

	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*l = nil
		return nil
	default:
		return fmt.Errorf("history: cannot scan %T into Lines", src)
	}

	return json.Unmarshal(raw, (*[]string)(l))
}

// Run is one enrichment run.
type Run struct {
	ID         string     `db:"id" json:"id"`
	Project    string     `db:"project" json:"project"`
	FixVersion string     `db:"fix_version" json:"fixVersion"`
	IssueType  string     `db:"issue_type" json:"issueType"`
	MaxResults int        `db:"max_results" json:"maxResults"`
	Status     string     `db:"status" json:"status"`
	Issues     int        `db:"issues" json:"issues"`
	Enriched   int        `db:"enriched" json:"enriched"`
	Failed     int        `db:"failed" json:"failed"`
	Error      string     `db:"error" json:"error,omitempty"`
	Details    Lines      `db:"details" json:"details"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
}

// Outcome is what FinishRun records.
type Outcome struct {
	Status   string
	Issues   int
	Enriched int
	Failed   int
	Error    string
	Details  []string
}

// Store is a SQLite backed run history.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies pending
// migrations. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// SetNowFunc overrides the time source (for testing).
func (s *Store) SetNowFunc(fn func() time.Time) { s.now = fn }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	var tables int
	if err := s.db.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'"); err != nil {
		return fmt.Errorf("history: check schema: %w", err)
	}

	current := 0
	if tables > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("history: read schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("history: apply migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// StartRun records r as running. A fresh id is assigned when r.ID is empty.
func (s *Store) StartRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	r.Status = StatusRunning
	r.Details = Lines{}
	r.StartedAt = s.now().UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, project, fix_version, issue_type, max_results, status, details, started_at)
		VALUES (:id, :project, :fix_version, :issue_type, :max_results, :status, :details, :started_at)`, r)
	if err != nil {
		return Run{}, fmt.Errorf("history: start run: %w", err)
	}

	return r, nil
}

// FinishRun stores the outcome of run id.
func (s *Store) FinishRun(ctx context.Context, id string, o Outcome) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, issues = ?, enriched = ?, failed = ?, error = ?, details = ?, finished_at = ?
		WHERE id = ?`,
		o.Status, o.Issues, o.Enriched, o.Failed, o.Error, Lines(o.Details), s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("history: finish run %s: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// Get returns run id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var r Run

	err := s.db.GetContext(ctx, &r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return Run{}, fmt.Errorf("history: get run %s: %w", id, err)
	}

	return r, nil
}

// List returns the newest runs first, at most limit of them.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY started_at DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}

	return runs, nil
}
