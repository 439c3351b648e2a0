package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pgsentry/pgsentry/internal/run"
)

func sampleReport() *run.Report {
	started := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	return &run.Report{
		Token:      "2024-01-01-020000",
		Database:   "appdb",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Minute),
		Verdict:    run.Success,
		Tasks: []run.TaskOutcome{
			{
				Spec:      run.TaskSpec{Name: "logical-dump", Kind: run.TaskLogical, Fatal: true},
				Status:    run.TaskSucceeded,
				SizeBytes: 125829120,
				Duration:  5 * time.Minute,
				Artifacts: []run.Artifact{
					{Path: "/backups/db_2024-01-01-020000.dump", Kind: run.ArtifactLogical, Size: 125829120},
				},
			},
			{
				Spec:      run.TaskSpec{Name: "base-backup", Kind: run.TaskPhysical, Fatal: true},
				Status:    run.TaskSucceeded,
				SizeBytes: 943718400,
				Duration:  30 * time.Minute,
				Artifacts: []run.Artifact{
					{Path: "/backups/pg_base_backup_2024-01-01-020000.tar.gz", Kind: run.ArtifactPhysical, Size: 943718400},
				},
			},
		},
		Uploads: []run.UploadOutcome{
			{Artifact: run.Artifact{Path: "/backups/db_2024-01-01-020000.dump"}, Status: run.UploadSucceeded},
			{Artifact: run.Artifact{Path: "/backups/pg_base_backup_2024-01-01-020000.tar.gz"}, Status: run.UploadSucceeded},
		},
	}
}

func TestRender_Success(t *testing.T) {
	body := Render(sampleReport())

	assert.Contains(t, body, "SUCCESS")
	assert.Contains(t, body, "logical-dump")
	assert.Contains(t, body, "base-backup")
	assert.Contains(t, body, "/backups/db_2024-01-01-020000.dump")
	assert.Contains(t, body, "125829120 bytes")
	assert.NotContains(t, body, "Failure reason")
	assert.NotContains(t, body, "Last producer output")
}

func TestRender_Deterministic(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, Render(report), Render(report))
}

func TestRender_FailureIncludesReasonAndTail(t *testing.T) {
	report := &run.Report{
		Token:    "2024-01-02-020000",
		Database: "appdb",
		Verdict:  run.BackupFailure,
		Reason:   "task logical-dump: pg_dump failed: exit status 1",
		Tasks: []run.TaskOutcome{
			{
				Spec:   run.TaskSpec{Name: "logical-dump", Kind: run.TaskLogical, Fatal: true},
				Status: run.TaskFailed,
				Error:  "pg_dump failed: exit status 1",
				Tail:   []string{"pg_dump: error: connection failed", "FATAL: password authentication failed"},
			},
		},
	}

	body := Render(report)

	assert.Contains(t, body, "BACKUP FAILURE")
	assert.Contains(t, body, "Failure reason: task logical-dump")
	assert.Contains(t, body, "Last producer output")
	assert.Contains(t, body, "FATAL: password authentication failed")
}

func TestRender_PreflightFailureHasNoTasks(t *testing.T) {
	report := &run.Report{
		Token:    "2024-01-03-020000",
		Database: "appdb",
		Verdict:  run.PreflightFailure,
		Reason:   "preflight: target db:5432 not ready",
	}

	body := Render(report)

	assert.Contains(t, body, "PREFLIGHT FAILURE")
	assert.Contains(t, body, "No tasks were executed")
}

func TestSubject(t *testing.T) {
	report := sampleReport()

	assert.Equal(t,
		"[backup] appdb backup 2024-01-01-020000: SUCCESS",
		Subject("[backup]", report),
	)
	assert.Equal(t,
		"[pgsentry] appdb backup 2024-01-01-020000: SUCCESS",
		Subject("", report),
	)
}
