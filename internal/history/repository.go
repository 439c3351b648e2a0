package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pgsentry/pgsentry/internal/run"
)

const (
	schema = `
		CREATE TABLE IF NOT EXISTS runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			token         TEXT NOT NULL,
			target_db     TEXT NOT NULL,
			verdict       TEXT NOT NULL,
			reason        TEXT NOT NULL DEFAULT '',
			tasks_total   INTEGER NOT NULL,
			tasks_failed  INTEGER NOT NULL,
			bytes_total   INTEGER NOT NULL,
			uploads_total INTEGER NOT NULL,
			uploads_failed INTEGER NOT NULL,
			started_at    TIMESTAMP NOT NULL,
			finished_at   TIMESTAMP NOT NULL
		)
	`

	runInsertQuery = `
		INSERT INTO runs (
			token, target_db, verdict, reason,
			tasks_total, tasks_failed, bytes_total,
			uploads_total, uploads_failed,
			started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	runSelectRecent = `
		SELECT
			id, token, target_db, verdict, reason,
			tasks_total, tasks_failed, bytes_total,
			uploads_total, uploads_failed,
			started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`
)

// RunRecord is one persisted run summary.
type RunRecord struct {
	Id            int64     `db:"id"`
	Token         string    `db:"token"`
	TargetDb      string    `db:"target_db"`
	Verdict       string    `db:"verdict"`
	Reason        string    `db:"reason"`
	TasksTotal    int       `db:"tasks_total"`
	TasksFailed   int       `db:"tasks_failed"`
	BytesTotal    int64     `db:"bytes_total"`
	UploadsTotal  int       `db:"uploads_total"`
	UploadsFailed int       `db:"uploads_failed"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
}

// Repository stores run summaries in a local SQLite database. History is
// strictly supplementary: its errors are logged by the caller and never
// influence the run verdict.
type Repository struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at dsn and ensures the schema
// exists. The schema is one table, so an idempotent create replaces a
// migration framework here.
func Open(dsn string) (*Repository, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Record persists one run report.
func (r *Repository) Record(ctx context.Context, report *run.Report) error {
	tasksFailed := 0
	var bytesTotal int64
	for _, t := range report.Tasks {
		if t.Failed() {
			tasksFailed++
		}
		bytesTotal += t.SizeBytes
	}
	uploadsFailed := 0
	for _, u := range report.Uploads {
		if u.Status == run.UploadFailed {
			uploadsFailed++
		}
	}

	_, err := r.db.ExecContext(
		ctx,
		runInsertQuery,
		report.Token, report.Database, report.Verdict.String(), report.Reason,
		len(report.Tasks), tasksFailed, bytesTotal,
		len(report.Uploads), uploadsFailed,
		report.StartedAt, report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", report.Token, err)
	}
	return nil
}

// Recent returns the n most recent run records, newest first.
func (r *Repository) Recent(ctx context.Context, n int) ([]RunRecord, error) {
	var records []RunRecord
	if err := r.db.SelectContext(ctx, &records, runSelectRecent, n); err != nil {
		return nil, fmt.Errorf("select recent runs: %w", err)
	}
	return records, nil
}
