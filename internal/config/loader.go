package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	Target    TargetConfig    `mapstructure:"target"    yaml:"target"`
	Backup    BackupConfig    `mapstructure:"backup"    yaml:"backup"`
	Upload    UploadConfig    `mapstructure:"upload"    yaml:"upload"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Notify    NotifyConfig    `mapstructure:"notify"    yaml:"notify"`
	Vault     VaultConfig     `mapstructure:"vault"     yaml:"vault"`
	History   HistoryConfig   `mapstructure:"history"   yaml:"history"`

	LogFile  string `mapstructure:"log_file"  yaml:"log_file,omitempty"`
	LockFile string `mapstructure:"lock_file" yaml:"lock_file,omitempty"`
}

// TargetConfig identifies the database this engine backs up. Credentials
// are either static (username/password) or a reference resolved through
// Vault (role_name for dynamic credentials, kv_path for a stored secret).
type TargetConfig struct {
	Host     string `mapstructure:"host"      yaml:"host"`
	Port     string `mapstructure:"port"      yaml:"port"`
	Database string `mapstructure:"database"  yaml:"database"`
	Username string `mapstructure:"username"  yaml:"username,omitempty"`
	Password string `mapstructure:"password"  yaml:"password,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
	KVPath   string `mapstructure:"kv_path"   yaml:"kv_path,omitempty"`
}

// BackupConfig contains options for the backup pipeline itself.
type BackupConfig struct {
	OutputDir       string        `mapstructure:"output_dir"       yaml:"output_dir"`
	TimestampFormat string        `mapstructure:"timestamp_format" yaml:"timestamp_format,omitempty"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"     yaml:"task_timeout,omitempty"`
	Compress        bool          `mapstructure:"compress"         yaml:"compress,omitempty"`
}

// UploadConfig describes the remote sync destination and retry policy.
type UploadConfig struct {
	Remote        string        `mapstructure:"remote"         yaml:"remote"`
	Binary        string        `mapstructure:"binary"         yaml:"binary,omitempty"`
	MaxRetries    int           `mapstructure:"max_retries"    yaml:"max_retries,omitempty"`
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval,omitempty"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent,omitempty"`
	Timeout       time.Duration `mapstructure:"timeout"        yaml:"timeout,omitempty"`
}

// RetentionConfig specifies how long local artifacts are kept.
type RetentionConfig struct {
	Days int `mapstructure:"days" yaml:"days"`
}

// NotifyConfig holds recipients and transport settings for run reports.
type NotifyConfig struct {
	Recipients    []string      `mapstructure:"recipients"     yaml:"recipients"`
	SubjectPrefix string        `mapstructure:"subject_prefix" yaml:"subject_prefix,omitempty"`
	From          string        `mapstructure:"from"           yaml:"from,omitempty"`
	SMTPHost      string        `mapstructure:"smtp_host"      yaml:"smtp_host,omitempty"`
	SMTPPort      int           `mapstructure:"smtp_port"      yaml:"smtp_port,omitempty"`
	SMTPUser      string        `mapstructure:"smtp_user"      yaml:"smtp_user,omitempty"`
	SMTPPassword  string        `mapstructure:"smtp_password"  yaml:"smtp_password,omitempty"`
	SMTPStartTLS  bool          `mapstructure:"smtp_starttls"  yaml:"smtp_starttls,omitempty"`
	SendmailPath  string        `mapstructure:"sendmail_path"  yaml:"sendmail_path,omitempty"`
	FallbackDir   string        `mapstructure:"fallback_dir"   yaml:"fallback_dir,omitempty"`
	Timeout       time.Duration `mapstructure:"timeout"        yaml:"timeout,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address,omitempty"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
}

// HistoryConfig points at the local run-history database.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// Defaults applied after a successful load.
const (
	DefaultTimestampFormat = "2006-01-02-150405"
	DefaultTaskTimeout     = 2 * time.Hour
	DefaultUploadTimeout   = 30 * time.Minute
	DefaultNotifyTimeout   = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryInterval   = 5 * time.Second
	DefaultMaxConcurrent   = 3
)

// Load reads the configuration from the given YAML file using Viper and
// unmarshals it into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	c.applyDefaults()

	return nil
}

func (c *Config) applyDefaults() {
	if c.Backup.TimestampFormat == "" {
		c.Backup.TimestampFormat = DefaultTimestampFormat
	}
	if c.Backup.TaskTimeout == 0 {
		c.Backup.TaskTimeout = DefaultTaskTimeout
	}
	if c.Upload.Binary == "" {
		c.Upload.Binary = "rclone"
	}
	if c.Upload.MaxRetries == 0 {
		c.Upload.MaxRetries = DefaultMaxRetries
	}
	if c.Upload.RetryInterval == 0 {
		c.Upload.RetryInterval = DefaultRetryInterval
	}
	if c.Upload.MaxConcurrent == 0 {
		c.Upload.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = DefaultUploadTimeout
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = DefaultNotifyTimeout
	}
	if c.Notify.SMTPPort == 0 {
		c.Notify.SMTPPort = 25
	}
	if c.Target.Port == "" {
		c.Target.Port = "5432"
	}
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	if c.Target.Host == "" {
		return fmt.Errorf("%w: target.host is required", ErrValidateConfig)
	}
	if c.Target.Database == "" {
		return fmt.Errorf("%w: target.database is required", ErrValidateConfig)
	}
	if c.Target.Username == "" && c.Target.RoleName == "" && c.Target.KVPath == "" {
		return fmt.Errorf(
			"%w: target needs static credentials or a vault reference",
			ErrValidateConfig,
		)
	}
	if c.Backup.OutputDir == "" {
		return fmt.Errorf("%w: backup.output_dir is required", ErrValidateConfig)
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("%w: retention.days must not be negative", ErrValidateConfig)
	}
	return nil
}
