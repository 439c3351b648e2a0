package run

import "time"

// Verdict is the overall result of one invocation.
type Verdict int

const (
	Success Verdict = iota
	PreflightFailure
	BackupFailure
	UploadFailure
)

// String returns the verdict name used in logs and notifications.
func (v Verdict) String() string {
	switch v {
	case Success:
		return "SUCCESS"
	case PreflightFailure:
		return "PREFLIGHT FAILURE"
	case BackupFailure:
		return "BACKUP FAILURE"
	case UploadFailure:
		return "UPLOAD FAILURE"
	}
	return "UNKNOWN"
}

// ExitCode maps a verdict to the process exit code. The mapping is stable:
// 0 = Success, 1 = PreflightFailure, 2 = BackupFailure, 3 = UploadFailure.
func (v Verdict) ExitCode() int {
	switch v {
	case Success:
		return 0
	case PreflightFailure:
		return 1
	case BackupFailure:
		return 2
	case UploadFailure:
		return 3
	}
	return 1
}

// Credentials are the resolved database credentials for one run, whether
// they came from Vault or from static config.
type Credentials struct {
	Username string
	Password string
}

// Context is the immutable configuration snapshot for one invocation.
// It is created once at run start by the orchestrator and only read
// afterwards.
type Context struct {
	Host     string
	Port     string
	Database string
	Creds    Credentials

	// OutputDir is the local backup directory; artifacts are append-only
	// during a run, uniqueness is guaranteed by the Token.
	OutputDir string

	// Token is the run timestamp token embedded in every artifact name.
	Token string

	// Compress enables zstd compression of the logical dump.
	Compress bool

	RetentionDays int
	Recipients    []string

	// Remote is the sync destination descriptor, e.g. "s3:bucket/pg".
	Remote string

	TaskTimeout time.Duration
}

// TaskStatus is the outcome status of a single backup task.
type TaskStatus string

const (
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// TaskKind identifies which producer a task shells out to.
type TaskKind string

const (
	TaskLogical  TaskKind = "logical"
	TaskPhysical TaskKind = "physical"
)

// TaskSpec declares one backup task of the pipeline. The pipeline for a run
// is a fixed ordered slice of specs; order matters.
type TaskSpec struct {
	Name string
	Kind TaskKind

	// Fatal tasks abort the remaining pipeline on failure.
	Fatal bool
}

// Pipeline returns the fixed task sequence for one run: the logical dump
// first, then the physical base backup. Both are fatal.
func Pipeline() []TaskSpec {
	return []TaskSpec{
		{Name: "logical-dump", Kind: TaskLogical, Fatal: true},
		{Name: "base-backup", Kind: TaskPhysical, Fatal: true},
	}
}

// ArtifactKind classifies a produced backup file.
type ArtifactKind string

const (
	ArtifactLogical  ArtifactKind = "logical"
	ArtifactPhysical ArtifactKind = "physical"
	ArtifactWAL      ArtifactKind = "wal"
)

// Artifact references one produced backup file.
type Artifact struct {
	Path string
	Kind ArtifactKind
	Size int64
}

// TaskOutcome is the immutable result of executing one TaskSpec.
type TaskOutcome struct {
	Spec      TaskSpec
	Status    TaskStatus
	Artifacts []Artifact
	SizeBytes int64
	Duration  time.Duration

	// Tail holds the last lines of the producer's diagnostic output,
	// bounded so failure reports stay small.
	Tail []string

	Error string
}

// UploadStatus is the outcome status of one artifact upload.
type UploadStatus string

const (
	UploadSucceeded UploadStatus = "succeeded"
	UploadFailed    UploadStatus = "failed"
)

// UploadOutcome is the per-artifact result of the upload stage.
type UploadOutcome struct {
	Artifact Artifact
	Status   UploadStatus
	Error    string
}

// Report is the terminal summary of one run. Exactly one Report exists per
// invocation; it is the sole input to the notifier and, via the verdict,
// the process exit code.
type Report struct {
	Token      string
	Database   string
	StartedAt  time.Time
	FinishedAt time.Time

	Tasks   []TaskOutcome
	Uploads []UploadOutcome

	Verdict Verdict

	// Reason carries the fatal failure description, empty on success.
	Reason string
}

// Failed reports whether the outcome status is TaskFailed.
func (o TaskOutcome) Failed() bool { return o.Status == TaskFailed }

// AllArtifacts collects every artifact produced by succeeded tasks, in
// pipeline order.
func (r *Report) AllArtifacts() []Artifact {
	var out []Artifact
	for _, t := range r.Tasks {
		if t.Status == TaskSucceeded {
			out = append(out, t.Artifacts...)
		}
	}
	return out
}

// FailureTail returns the diagnostic tail of the first failed task, if any.
func (r *Report) FailureTail() []string {
	for _, t := range r.Tasks {
		if t.Failed() {
			return t.Tail
		}
	}
	return nil
}
