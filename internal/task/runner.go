package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/run"
)

// TailLines bounds the diagnostic tail captured from a producer.
const TailLines = 15

// Producer is the external database client collaborator. Logical writes a
// consistent dump to outPath; Physical streams a base backup (base.tar plus
// an optional pg_wal.tar) into workDir. A nil error means exit status 0.
type Producer interface {
	Logical(ctx context.Context, rc run.Context, outPath string, sink io.Writer) error
	Physical(ctx context.Context, rc run.Context, workDir string, sink io.Writer) error
}

// Runner executes one backup task and converts every failure mode into a
// Failed outcome. It never lets a producer error escape its boundary.
type Runner struct {
	producer Producer
	log      logger.Logger
}

func NewRunner(producer Producer, log logger.Logger) *Runner {
	return &Runner{producer: producer, log: log}
}

// Execute runs the producer for spec under the run's task timeout, checks
// the produced output and returns a structured outcome.
func (r *Runner) Execute(ctx context.Context, spec run.TaskSpec, rc run.Context) run.TaskOutcome {
	start := time.Now()
	tail := newTailWriter(TailLines)

	if rc.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.TaskTimeout)
		defer cancel()
	}

	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return r.failed(spec, start, tail, fmt.Errorf("create backup directory: %w", err))
	}

	var artifacts []run.Artifact
	var err error
	switch spec.Kind {
	case run.TaskLogical:
		artifacts, err = r.runLogical(ctx, rc, tail)
	case run.TaskPhysical:
		artifacts, err = r.runPhysical(ctx, rc, tail)
	default:
		err = fmt.Errorf("unknown task kind %q", spec.Kind)
	}
	if err != nil {
		return r.failed(spec, start, tail, err)
	}

	var total int64
	for _, a := range artifacts {
		total += a.Size
	}

	r.log.Info("task succeeded",
		"task", spec.Name,
		"artifacts", len(artifacts),
		"bytes", total,
		"duration", time.Since(start).String(),
	)

	return run.TaskOutcome{
		Spec:      spec,
		Status:    run.TaskSucceeded,
		Artifacts: artifacts,
		SizeBytes: total,
		Duration:  time.Since(start),
		Tail:      tail.Lines(),
	}
}

func (r *Runner) runLogical(ctx context.Context, rc run.Context, tail *tailWriter) ([]run.Artifact, error) {
	outPath := filepath.Join(rc.OutputDir, fmt.Sprintf("db_%s.dump", rc.Token))

	if err := r.producer.Logical(ctx, rc, outPath, tail); err != nil {
		return nil, err
	}

	// A producer reporting success while leaving an empty or missing file
	// is treated as a failure: a silent empty dump is a data-loss bug.
	size, err := nonEmptyFile(outPath)
	if err != nil {
		return nil, err
	}

	if rc.Compress {
		outPath, err = CompressZstd(outPath)
		if err != nil {
			return nil, fmt.Errorf("compress dump: %w", err)
		}
		if size, err = nonEmptyFile(outPath); err != nil {
			return nil, err
		}
	}

	return []run.Artifact{{Path: outPath, Kind: run.ArtifactLogical, Size: size}}, nil
}

func (r *Runner) runPhysical(ctx context.Context, rc run.Context, tail *tailWriter) ([]run.Artifact, error) {
	workDir := filepath.Join(rc.OutputDir, fmt.Sprintf(".basebackup-%s", rc.Token))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := r.producer.Physical(ctx, rc, workDir, tail); err != nil {
		return nil, err
	}

	basePath := filepath.Join(workDir, "base.tar")
	if _, err := nonEmptyFile(basePath); err != nil {
		return nil, err
	}

	baseOut := filepath.Join(rc.OutputDir, fmt.Sprintf("pg_base_backup_%s.tar.gz", rc.Token))
	if err := GzipTo(basePath, baseOut); err != nil {
		return nil, fmt.Errorf("compress base backup: %w", err)
	}
	baseSize, err := nonEmptyFile(baseOut)
	if err != nil {
		return nil, err
	}

	artifacts := []run.Artifact{
		{Path: baseOut, Kind: run.ArtifactPhysical, Size: baseSize},
	}

	// The WAL archive is optional: when the producer emits only a combined
	// stream, a single physical artifact is recorded.
	walPath := filepath.Join(workDir, "pg_wal.tar")
	if info, err := os.Stat(walPath); err == nil && info.Size() > 0 {
		walOut := filepath.Join(rc.OutputDir, fmt.Sprintf("pg_wal_%s.tar.gz", rc.Token))
		if err := GzipTo(walPath, walOut); err != nil {
			return nil, fmt.Errorf("compress wal archive: %w", err)
		}
		walSize, err := nonEmptyFile(walOut)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, run.Artifact{
			Path: walOut, Kind: run.ArtifactWAL, Size: walSize,
		})
	}

	return artifacts, nil
}

func (r *Runner) failed(spec run.TaskSpec, start time.Time, tail *tailWriter, err error) run.TaskOutcome {
	r.log.Error("task failed",
		"task", spec.Name,
		"error", err.Error(),
	)
	return run.TaskOutcome{
		Spec:     spec,
		Status:   run.TaskFailed,
		Duration: time.Since(start),
		Tail:     tail.Lines(),
		Error:    err.Error(),
	}
}

// nonEmptyFile returns the size of path, or an error if the file is
// missing or empty.
func nonEmptyFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("expected output %s missing: %w", path, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("expected output %s is empty", path)
	}
	return info.Size(), nil
}
