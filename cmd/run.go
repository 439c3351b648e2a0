package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgsentry/pgsentry/internal/config"
	"github.com/pgsentry/pgsentry/internal/history"
	"github.com/pgsentry/pgsentry/internal/lock"
	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/notify"
	"github.com/pgsentry/pgsentry/internal/orchestrator"
	"github.com/pgsentry/pgsentry/internal/postgres"
	"github.com/pgsentry/pgsentry/internal/retention"
	"github.com/pgsentry/pgsentry/internal/run"
	"github.com/pgsentry/pgsentry/internal/task"
	"github.com/pgsentry/pgsentry/internal/upload"
	"github.com/pgsentry/pgsentry/internal/vault"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one backup run",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runBackup())
	},
}

// runBackup wires the collaborators, drives one run and returns the
// process exit code (0 success, 1 preflight, 2 backup, 3 upload failure).
// It is a separate function so deferred cleanup runs before os.Exit.
func runBackup() int {
	var cfg config.Config
	if err := cfg.Load(ConfigFile); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	log, err := logger.InitWithFile(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: init logger: %v\n", err)
		return 1
	}
	defer logger.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One run at a time per backup directory: overlapping scheduled
	// invocations back off here instead of racing.
	lockPath := cfg.LockFile
	if lockPath == "" {
		lockPath = filepath.Join(cfg.Backup.OutputDir, ".pgsentry.lock")
	}
	if err := os.MkdirAll(cfg.Backup.OutputDir, 0o755); err != nil {
		log.Error("cannot create backup directory", "error", err.Error())
		return 1
	}
	runLock, err := lock.Acquire(lockPath)
	if err != nil {
		log.Error("cannot acquire run lock", "error", err.Error())
		return 1
	}
	defer runLock.Release()

	creds, err := resolveCredentials(ctx, cfg, log)
	if err != nil {
		log.Error("cannot resolve credentials", "error", err.Error())
		return 1
	}

	rc := run.Context{
		Host:          cfg.Target.Host,
		Port:          cfg.Target.Port,
		Database:      cfg.Target.Database,
		Creds:         creds,
		OutputDir:     cfg.Backup.OutputDir,
		Token:         time.Now().Format(cfg.Backup.TimestampFormat),
		Compress:      cfg.Backup.Compress,
		RetentionDays: cfg.Retention.Days,
		Recipients:    cfg.Notify.Recipients,
		Remote:        cfg.Upload.Remote,
		TaskTimeout:   cfg.Backup.TaskTimeout,
	}

	pg := postgres.NewClient(log)
	runner := task.NewRunner(pg, log)
	stage := upload.NewStage(
		upload.NewRcloneClient(cfg.Upload.Binary, log),
		cfg.Upload.MaxRetries,
		cfg.Upload.RetryInterval,
		cfg.Upload.MaxConcurrent,
		cfg.Upload.Timeout,
		log,
	)
	notifier := notify.NewNotifier(
		buildTransports(cfg),
		cfg.Notify.Timeout,
		cfg.Notify.SubjectPrefix,
		log,
	)
	sweeper := retention.NewSweeper(log)

	var historian orchestrator.Historian
	if cfg.History.DSN != "" {
		repo, err := history.Open(cfg.History.DSN)
		if err != nil {
			log.Warn("run history unavailable", "error", err.Error())
		} else {
			defer repo.Close()
			historian = repo
		}
	}

	orch := orchestrator.New(pg, runner, stage, notifier, sweeper, historian, log)
	report := orch.Run(ctx, rc)

	return report.Verdict.ExitCode()
}

// resolveCredentials returns static credentials from the config when
// present, otherwise resolves the configured Vault reference.
func resolveCredentials(ctx context.Context, cfg config.Config, log logger.Logger) (run.Credentials, error) {
	if cfg.Target.Username != "" {
		return run.Credentials{
			Username: cfg.Target.Username,
			Password: cfg.Target.Password,
		}, nil
	}

	client, err := vault.NewClient(ctx,
		vault.WithAddress(cfg.Vault.Address),
		vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName),
	)
	if err != nil {
		return run.Credentials{}, err
	}

	if cfg.Target.RoleName != "" {
		dyn, err := client.GetDynamicCredentials(ctx, cfg.Target.RoleName)
		if err != nil {
			return run.Credentials{}, fmt.Errorf("dynamic credentials: %w", err)
		}
		log.Info("resolved dynamic credentials", "ttl", dyn.TTL.String())
		return run.Credentials{Username: dyn.Username, Password: dyn.Password}, nil
	}

	static, err := client.GetStaticCredentials(ctx, cfg.Target.KVPath)
	if err != nil {
		return run.Credentials{}, fmt.Errorf("static credentials: %w", err)
	}
	return run.Credentials{Username: static.Username, Password: static.Password}, nil
}

// buildTransports assembles the ordered notification fallback chain.
func buildTransports(cfg config.Config) []notify.Transport {
	var transports []notify.Transport

	if cfg.Notify.SMTPHost != "" {
		transports = append(transports, notify.NewSMTPTransport(
			cfg.Notify.SMTPHost,
			cfg.Notify.SMTPPort,
			cfg.Notify.From,
			cfg.Notify.SMTPUser,
			cfg.Notify.SMTPPassword,
			cfg.Notify.SMTPStartTLS,
		))
	}
	transports = append(transports, notify.NewSendmailTransport(
		cfg.Notify.SendmailPath,
		cfg.Notify.From,
	))

	fallbackDir := cfg.Notify.FallbackDir
	if fallbackDir == "" {
		fallbackDir = cfg.Backup.OutputDir
	}
	transports = append(transports, notify.NewFileTransport(fallbackDir))

	return transports
}
