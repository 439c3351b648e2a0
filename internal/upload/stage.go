package upload

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/run"
)

// SyncClient is the external remote sync collaborator.
type SyncClient interface {
	Copy(ctx context.Context, localPath, remote string) error
}

// Stage pushes produced artifacts to remote storage. Each artifact is
// uploaded independently with a bounded retry budget; one artifact failing
// never prevents the others from being attempted.
type Stage struct {
	client        SyncClient
	maxRetries    int
	retryInterval time.Duration
	maxConcurrent int
	timeout       time.Duration
	log           logger.Logger
}

func NewStage(
	client SyncClient,
	maxRetries int,
	retryInterval time.Duration,
	maxConcurrent int,
	timeout time.Duration,
	log logger.Logger,
) *Stage {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Stage{
		client:        client,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
		log:           log,
	}
}

// UploadAll uploads every artifact to the run's remote destination and
// returns one outcome per artifact, in input order. Distinct artifacts
// upload concurrently up to the configured cap.
func (s *Stage) UploadAll(ctx context.Context, artifacts []run.Artifact, rc run.Context) []run.UploadOutcome {
	outcomes := make([]run.UploadOutcome, len(artifacts))

	g := &errgroup.Group{}
	g.SetLimit(s.maxConcurrent)

	for i, artifact := range artifacts {
		i, artifact := i, artifact
		g.Go(func() error {
			outcomes[i] = s.uploadOne(ctx, artifact, rc)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Stage) uploadOne(ctx context.Context, artifact run.Artifact, rc run.Context) run.UploadOutcome {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// Bounded retry with backoff; transient network failures dominate
	// this stage.
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInterval

	op := func() error {
		return s.client.Copy(ctx, artifact.Path, rc.Remote)
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(s.maxRetries)),
		ctx,
	))
	if err != nil {
		s.log.Error("upload failed",
			"artifact", artifact.Path,
			"remote", rc.Remote,
			"error", err.Error(),
		)
		return run.UploadOutcome{
			Artifact: artifact,
			Status:   run.UploadFailed,
			Error:    err.Error(),
		}
	}

	s.log.Info("upload succeeded",
		"artifact", artifact.Path,
		"remote", rc.Remote,
	)
	return run.UploadOutcome{Artifact: artifact, Status: run.UploadSucceeded}
}
