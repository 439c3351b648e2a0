package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/run"
)

// Probe is the readiness collaborator consulted before any task runs.
type Probe interface {
	Ping(ctx context.Context, rc run.Context) error
}

// TaskRunner executes one backup task and never fails past its boundary.
type TaskRunner interface {
	Execute(ctx context.Context, spec run.TaskSpec, rc run.Context) run.TaskOutcome
}

// Uploader pushes artifacts to remote storage, one outcome per artifact.
type Uploader interface {
	UploadAll(ctx context.Context, artifacts []run.Artifact, rc run.Context) []run.UploadOutcome
}

// Notifier dispatches the terminal run report. Best-effort.
type Notifier interface {
	Notify(ctx context.Context, report *run.Report, rc run.Context) error
}

// Sweeper prunes expired local artifacts. Best-effort.
type Sweeper interface {
	Sweep(dir string, olderThanDays int) (int, error)
}

// Historian records run summaries. Best-effort.
type Historian interface {
	Record(ctx context.Context, report *run.Report) error
}

// state of the run lifecycle. Failure short-circuiting is an explicit
// transition here, not implicit control flow.
type state int

const (
	statePreflight state = iota
	stateRunningTasks
	stateUploading
	stateNotifying
	stateSweeping
	stateDone
)

// DefaultPreflightTimeout bounds the readiness probe.
const DefaultPreflightTimeout = 30 * time.Second

// Orchestrator owns the run lifecycle: preflight, ordered task execution
// with fatal short-circuiting, conditional upload, exactly one terminal
// notification, and a retention sweep only after a fully successful run.
type Orchestrator struct {
	probe    Probe
	runner   TaskRunner
	uploader Uploader
	notifier Notifier
	sweeper  Sweeper
	history  Historian

	preflightTimeout time.Duration
	log              logger.Logger
}

func New(
	probe Probe,
	runner TaskRunner,
	uploader Uploader,
	notifier Notifier,
	sweeper Sweeper,
	history Historian,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		probe:            probe,
		runner:           runner,
		uploader:         uploader,
		notifier:         notifier,
		sweeper:          sweeper,
		history:          history,
		preflightTimeout: DefaultPreflightTimeout,
		log:              log,
	}
}

// Run drives the state machine for one invocation and returns its single
// Report. Whatever happens along the way, the notifier is invoked exactly
// once and the report is always produced.
func (o *Orchestrator) Run(ctx context.Context, rc run.Context) *run.Report {
	report := &run.Report{
		Token:     rc.Token,
		Database:  rc.Database,
		StartedAt: time.Now(),
		Verdict:   run.Success,
	}

	o.log.Info("run started", "token", rc.Token, "db", rc.Database)

	for st := statePreflight; st != stateDone; {
		switch st {
		case statePreflight:
			st = o.preflight(ctx, rc, report)
		case stateRunningTasks:
			st = o.runTasks(ctx, rc, report)
		case stateUploading:
			st = o.uploadArtifacts(ctx, rc, report)
		case stateNotifying:
			st = o.notifyOnce(ctx, rc, report)
		case stateSweeping:
			st = o.sweep(rc, report)
		}
	}

	if o.history != nil {
		if err := o.history.Record(context.WithoutCancel(ctx), report); err != nil {
			o.log.Warn("could not record run history", "error", err.Error())
		}
	}

	o.log.Info("run finished",
		"token", rc.Token,
		"verdict", report.Verdict.String(),
		"exit_code", report.Verdict.ExitCode(),
	)

	return report
}

func (o *Orchestrator) preflight(ctx context.Context, rc run.Context, report *run.Report) state {
	pctx, cancel := context.WithTimeout(ctx, o.preflightTimeout)
	defer cancel()

	if err := o.probe.Ping(pctx, rc); err != nil {
		report.Verdict = run.PreflightFailure
		report.Reason = fmt.Sprintf("preflight: %v", err)
		o.log.Error("preflight failed", "error", err.Error())
		return stateNotifying
	}

	o.log.Info("preflight ok", "host", rc.Host, "port", rc.Port)
	return stateRunningTasks
}

func (o *Orchestrator) runTasks(ctx context.Context, rc run.Context, report *run.Report) state {
	for _, spec := range run.Pipeline() {
		// An operator signal or run-level timeout aborts the pipeline and
		// goes straight to notification; remaining tasks never start.
		if err := ctx.Err(); err != nil {
			report.Verdict = run.BackupFailure
			report.Reason = fmt.Sprintf("run aborted before task %s: %v", spec.Name, err)
			return stateNotifying
		}

		outcome := o.runner.Execute(ctx, spec, rc)
		report.Tasks = append(report.Tasks, outcome)

		if outcome.Failed() && spec.Fatal {
			report.Verdict = run.BackupFailure
			report.Reason = fmt.Sprintf("task %s: %s", spec.Name, outcome.Error)
			return stateNotifying
		}
	}

	return stateUploading
}

func (o *Orchestrator) uploadArtifacts(ctx context.Context, rc run.Context, report *run.Report) state {
	artifacts := report.AllArtifacts()

	report.Uploads = o.uploader.UploadAll(ctx, artifacts, rc)

	for _, u := range report.Uploads {
		if u.Status == run.UploadFailed {
			// Local artifacts are retained regardless; an upload failure is
			// fatal to the verdict but never destructive.
			report.Verdict = run.UploadFailure
			report.Reason = fmt.Sprintf("upload %s: %s", u.Artifact.Path, u.Error)
			break
		}
	}

	return stateNotifying
}

func (o *Orchestrator) notifyOnce(ctx context.Context, rc run.Context, report *run.Report) state {
	report.FinishedAt = time.Now()

	// Notification must still be attempted after cancellation.
	nctx := context.WithoutCancel(ctx)
	if err := o.notifier.Notify(nctx, report, rc); err != nil {
		o.log.Error("notification failed", "error", err.Error())
	}

	if report.Verdict == run.Success {
		return stateSweeping
	}
	return stateDone
}

func (o *Orchestrator) sweep(rc run.Context, report *run.Report) state {
	deleted, err := o.sweeper.Sweep(rc.OutputDir, rc.RetentionDays)
	if err != nil {
		o.log.Warn("retention sweep incomplete", "error", err.Error())
	}
	o.log.Info("retention sweep done", "deleted", deleted, "older_than_days", rc.RetentionDays)
	return stateDone
}
