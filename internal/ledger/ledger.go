// Package ledger tracks extraction work units in a local SQLite database
// so interrupted runs resume instead of recomputing finished districts.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Status of a work unit. A unit is one district within one run.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Run is one extraction campaign over a date range.
type Run struct {
	ID          string
	Granularity string
	Start       time.Time
	End         time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Unit is the ledger row for one district.
type Unit struct {
	RunID      string
	District   string
	Status     Status
	Checkpoint string // path of the district's checkpoint file, set when done
	UpdatedAt  time.Time
}

// Ledger wraps the SQLite work-unit database.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database and configures WAL mode.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}
	return &Ledger{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	granularity TEXT NOT NULL,
	range_start DATE NOT NULL,
	range_end   DATE NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS work_units (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	district   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	checkpoint TEXT,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, district)
);

CREATE INDEX IF NOT EXISTS idx_work_units_status ON work_units(run_id, status);
`

// Migrate creates the ledger schema.
func (l *Ledger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "ledger: migrate")
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

const dateFormat = "2006-01-02"

// FindRun returns the most recent run matching the campaign parameters,
// or ok=false when none exists.
func (l *Ledger) FindRun(ctx context.Context, granularity string, start, end time.Time) (*Run, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, granularity, range_start, range_end, status, created_at, updated_at
		 FROM runs WHERE granularity = ? AND range_start = ? AND range_end = ?
		 ORDER BY created_at DESC LIMIT 1`,
		granularity, start.Format(dateFormat), end.Format(dateFormat),
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "ledger: find run")
	}
	return run, true, nil
}

// CreateRun registers a new campaign and returns its ID.
func (l *Ledger) CreateRun(ctx context.Context, granularity string, start, end time.Time) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, granularity, range_start, range_end, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'running', ?, ?)`,
		id, granularity, start.Format(dateFormat), end.Format(dateFormat), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: insert run")
	}
	return &Run{
		ID:          id,
		Granularity: granularity,
		Start:       start,
		End:         end,
		Status:      "running",
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// FinishRun marks a run complete.
func (l *Ledger) FinishRun(ctx context.Context, runID string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = 'complete', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: finish run %s", runID)
	}
	return checkAffected(res, runID)
}

// LatestRun returns the most recently created run, ok=false on an empty
// ledger.
func (l *Ledger) LatestRun(ctx context.Context) (*Run, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, granularity, range_start, range_end, status, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT 1`,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "ledger: latest run")
	}
	return run, true, nil
}

// Run looks up a run by ID, ok=false when unknown.
func (l *Ledger) Run(ctx context.Context, id string) (*Run, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, granularity, range_start, range_end, status, created_at, updated_at
		 FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "ledger: run %s", id)
	}
	return run, true, nil
}

// EnsureUnits registers districts as pending work units. Districts
// already in the run keep their current status, which is what makes a
// rerun resume instead of restart.
func (l *Ledger) EnsureUnits(ctx context.Context, runID string, districts []string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "ledger: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, d := range districts {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO work_units (run_id, district, status, updated_at) VALUES (?, ?, 'pending', ?)`,
			runID, d, time.Now().UTC(),
		); err != nil {
			return eris.Wrapf(err, "ledger: ensure unit %s", d)
		}
	}
	return eris.Wrap(tx.Commit(), "ledger: commit units")
}

// MarkDone records a completed unit and its checkpoint path.
func (l *Ledger) MarkDone(ctx context.Context, runID, district, checkpoint string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE work_units SET status = 'done', checkpoint = ?, updated_at = ? WHERE run_id = ? AND district = ?`,
		checkpoint, time.Now().UTC(), runID, district,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: mark done %s", district)
	}
	return checkAffected(res, district)
}

// Reset returns a unit to pending, used when its checkpoint turns out to
// be unreadable and the district must be recomputed.
func (l *Ledger) Reset(ctx context.Context, runID, district string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE work_units SET status = 'pending', checkpoint = NULL, updated_at = ? WHERE run_id = ? AND district = ?`,
		time.Now().UTC(), runID, district,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: reset %s", district)
	}
	return checkAffected(res, district)
}

// Pending lists the districts still waiting, sorted by name.
func (l *Ledger) Pending(ctx context.Context, runID string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT district FROM work_units WHERE run_id = ? AND status = 'pending' ORDER BY district`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list pending")
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "ledger: scan pending")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "ledger: iterate pending")
}

// Units lists every unit of a run, sorted by district.
func (l *Ledger) Units(ctx context.Context, runID string) ([]Unit, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, district, status, COALESCE(checkpoint, ''), updated_at
		 FROM work_units WHERE run_id = ? ORDER BY district`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list units")
	}
	defer rows.Close() //nolint:errcheck

	var out []Unit
	for rows.Next() {
		var u Unit
		var status string
		if err := rows.Scan(&u.RunID, &u.District, &status, &u.Checkpoint, &u.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "ledger: scan unit")
		}
		u.Status = Status(status)
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "ledger: iterate units")
}

// scanRun reads one runs row. The driver materializes the DATE-declared
// range columns as time.Time, so they are scanned directly rather than
// re-parsed from text.
func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	if err := row.Scan(&r.ID, &r.Granularity, &r.Start, &r.End, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Start = r.Start.UTC()
	r.End = r.End.UTC()
	return &r, nil
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "ledger: rows affected")
	}
	if n == 0 {
		return eris.Errorf("ledger: no row for %s", id)
	}
	return nil
}
