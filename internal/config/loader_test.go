package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `
target:
  host: "db.example.com"
  port: "5433"
  database: "appdb"
  username: "backup"
  password: "secret"
backup:
  output_dir: "/var/backups/pg"
  task_timeout: 90m
  compress: true
upload:
  remote: "s3:bucket/pg"
  max_retries: 5
retention:
  days: 7
notify:
  recipients:
    - "ops@example.com"
    - "dba@example.com"
  smtp_host: "mail.example.com"
log_file: "/var/log/pgsentry.log"
`
	var cfg Config
	require.NoError(t, cfg.Load(writeConfig(t, yaml)))

	assert.Equal(t, "db.example.com", cfg.Target.Host)
	assert.Equal(t, "5433", cfg.Target.Port)
	assert.Equal(t, "appdb", cfg.Target.Database)
	assert.Equal(t, "/var/backups/pg", cfg.Backup.OutputDir)
	assert.Equal(t, 90*time.Minute, cfg.Backup.TaskTimeout)
	assert.True(t, cfg.Backup.Compress)
	assert.Equal(t, "s3:bucket/pg", cfg.Upload.Remote)
	assert.Equal(t, 5, cfg.Upload.MaxRetries)
	assert.Equal(t, 7, cfg.Retention.Days)
	assert.Len(t, cfg.Notify.Recipients, 2)
	assert.Equal(t, "/var/log/pgsentry.log", cfg.LogFile)

	require.NoError(t, cfg.Validate())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	yaml := `
target:
  host: "db.example.com"
  database: "appdb"
  username: "backup"
backup:
  output_dir: "/var/backups/pg"
`
	var cfg Config
	require.NoError(t, cfg.Load(writeConfig(t, yaml)))

	assert.Equal(t, "5432", cfg.Target.Port)
	assert.Equal(t, DefaultTimestampFormat, cfg.Backup.TimestampFormat)
	assert.Equal(t, DefaultTaskTimeout, cfg.Backup.TaskTimeout)
	assert.Equal(t, "rclone", cfg.Upload.Binary)
	assert.Equal(t, DefaultMaxRetries, cfg.Upload.MaxRetries)
	assert.Equal(t, DefaultMaxConcurrent, cfg.Upload.MaxConcurrent)
	assert.Equal(t, DefaultNotifyTimeout, cfg.Notify.Timeout)
	assert.Equal(t, 25, cfg.Notify.SMTPPort)
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg Config
	err := cfg.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrLoadConfig)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `
target:
  host: "db.example.com"
  database: "appdb"
unknown_key: true
`
	var cfg Config
	err := cfg.Load(writeConfig(t, yaml))
	assert.ErrorIs(t, err, ErrLoadConfig)
}

func TestValidate_RequiresTargetHost(t *testing.T) {
	cfg := Config{}
	cfg.Target.Database = "appdb"
	cfg.Target.Username = "backup"
	cfg.Backup.OutputDir = "/var/backups"

	assert.ErrorIs(t, cfg.Validate(), ErrValidateConfig)
}

func TestValidate_RequiresCredentialsOrReference(t *testing.T) {
	cfg := Config{}
	cfg.Target.Host = "db.example.com"
	cfg.Target.Database = "appdb"
	cfg.Backup.OutputDir = "/var/backups"

	assert.ErrorIs(t, cfg.Validate(), ErrValidateConfig)

	// A vault role reference is enough.
	cfg.Target.RoleName = "database/creds/backup"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsNegativeRetention(t *testing.T) {
	cfg := Config{}
	cfg.Target.Host = "db.example.com"
	cfg.Target.Database = "appdb"
	cfg.Target.Username = "backup"
	cfg.Backup.OutputDir = "/var/backups"
	cfg.Retention.Days = -1

	assert.ErrorIs(t, cfg.Validate(), ErrValidateConfig)
}
