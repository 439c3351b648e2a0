package postgres

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/run"
)

// Client shells out to the PostgreSQL client tools. It is the external
// database producer collaborator: a logical dump via pg_dump, a physical
// base backup via pg_basebackup and a readiness probe via pg_isready.
type Client struct {
	DumpBinary       string
	BaseBackupBinary string
	IsReadyBinary    string

	log logger.Logger
}

type Option func(*Client)

// WithDumpBinary overrides the pg_dump binary path.
func WithDumpBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.DumpBinary = path
		}
	}
}

// WithBaseBackupBinary overrides the pg_basebackup binary path.
func WithBaseBackupBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.BaseBackupBinary = path
		}
	}
}

// WithIsReadyBinary overrides the pg_isready binary path.
func WithIsReadyBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.IsReadyBinary = path
		}
	}
}

// NewClient returns a Client using the stock PostgreSQL tool names,
// adjusted by any options.
func NewClient(log logger.Logger, opts ...Option) *Client {
	c := &Client{
		DumpBinary:       "pg_dump",
		BaseBackupBinary: "pg_basebackup",
		IsReadyBinary:    "pg_isready",
		log:              log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logical runs pg_dump in custom format against the target, writing the
// dump to outPath. Diagnostic output is streamed to sink.
func (c *Client) Logical(ctx context.Context, rc run.Context, outPath string, sink io.Writer) error {
	args := []string{
		"-h", rc.Host,
		"-p", rc.Port,
		"-U", rc.Creds.Username,
		"-d", rc.Database,
		"-Fc",
		"-f", outPath,
	}
	cmd := exec.CommandContext(ctx, c.DumpBinary, args...)
	cmd.Env = append(cmd.Environ(), fmt.Sprintf("PGPASSWORD=%s", rc.Creds.Password))
	cmd.Stderr = sink

	c.log.Info("starting logical dump",
		"db", rc.Database,
		"path", outPath,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_dump failed: %w", err)
	}
	return nil
}

// Physical runs pg_basebackup in tar format into workDir. The producer
// emits base.tar and, when WAL streaming yields a separate segment archive,
// pg_wal.tar alongside it.
func (c *Client) Physical(ctx context.Context, rc run.Context, workDir string, sink io.Writer) error {
	args := []string{
		"-h", rc.Host,
		"-p", rc.Port,
		"-U", rc.Creds.Username,
		"-D", workDir,
		"-Ft",
		"-Xs",
		"--no-password",
	}
	cmd := exec.CommandContext(ctx, c.BaseBackupBinary, args...)
	cmd.Env = append(cmd.Environ(), fmt.Sprintf("PGPASSWORD=%s", rc.Creds.Password))
	cmd.Stderr = sink

	c.log.Info("starting base backup",
		"db", rc.Database,
		"dir", workDir,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pg_basebackup failed: %w", err)
	}
	return nil
}

// Ping probes the target for readiness via pg_isready. A non-zero exit
// means the server is unreachable or rejecting connections.
func (c *Client) Ping(ctx context.Context, rc run.Context) error {
	args := []string{
		"-h", rc.Host,
		"-p", rc.Port,
		"-d", rc.Database,
		"-U", rc.Creds.Username,
	}
	cmd := exec.CommandContext(ctx, c.IsReadyBinary, args...)
	cmd.Env = append(cmd.Environ(), fmt.Sprintf("PGPASSWORD=%s", rc.Creds.Password))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("target %s:%s not ready: %w", rc.Host, rc.Port, err)
	}
	return nil
}
