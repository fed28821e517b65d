package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultAPIBaseURL is the hosted Hoppscotch backend endpoint.
	DefaultAPIBaseURL = "https://api.hoppscotch.io"
	// DefaultBackupSubPath is the directory under the repository root
	// that receives timestamped backup directories.
	DefaultBackupSubPath = "backups"
	// DefaultWorkspaceName is used in the aggregate export filename.
	DefaultWorkspaceName = "Hoppscotch"
	// DefaultRequestTimeoutSeconds bounds every GraphQL HTTP request.
	DefaultRequestTimeoutSeconds = 30

	// EnvPrefix is the prefix for environment variable overrides,
	// e.g. HOPP_BEARER_TOKEN overrides bearer_token.
	EnvPrefix = "HOPP"
)

// Settings is the immutable configuration record resolved once at
// startup and consumed by every component.
type Settings struct {
	APIBaseURL            string `mapstructure:"api_base_url"`
	BearerToken           string `mapstructure:"bearer_token"`
	SourceControlToken    string `mapstructure:"source_control_token"`
	SourceControlUsername string `mapstructure:"source_control_username"`
	RepositoryPath        string `mapstructure:"repository_path"`
	BackupSubPath         string `mapstructure:"backup_sub_path"`
	WorkspaceName         string `mapstructure:"workspace_name"`
	TeamID                string `mapstructure:"team_id"`

	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`

	// Schedule is an optional cron expression. When set, the process
	// stays resident and runs the pipeline on that schedule instead of
	// once.
	Schedule string `mapstructure:"schedule"`

	// RetentionPeriod is an optional duration string ("168h" or "7d").
	// Zero disables pruning of old backup directories.
	RetentionPeriod string `mapstructure:"retention_period"`
	RetentionDryRun bool   `mapstructure:"retention_dry_run"`

	Webhook WebhookSettings `mapstructure:"webhook"`
	Mirror  MirrorSettings  `mapstructure:"mirror"`
}

// WebhookSettings configures the optional run-completion notifier.
// An empty URL disables it.
type WebhookSettings struct {
	URL            string `mapstructure:"url"`
	Secret         string `mapstructure:"secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// MirrorSettings configures the optional S3 mirror of the aggregate
// export file. An empty bucket disables it.
type MirrorSettings struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

// settingsKeys lists every key Settings binds, nested keys in dotted
// form. The environment variable for a key is HOPP_ plus the key
// uppercased with dots replaced by underscores.
var settingsKeys = []string{
	"api_base_url",
	"bearer_token",
	"source_control_token",
	"source_control_username",
	"repository_path",
	"backup_sub_path",
	"workspace_name",
	"team_id",
	"request_timeout_seconds",
	"schedule",
	"retention_period",
	"retention_dry_run",
	"webhook.url",
	"webhook.secret",
	"webhook.timeout_seconds",
	"webhook.max_retries",
	"mirror.bucket",
	"mirror.region",
	"mirror.endpoint",
	"mirror.access_key_id",
	"mirror.secret_access_key",
	"mirror.prefix",
}

// Load reads the config file (JSON, default ./backup-config.json) and
// applies HOPP_* environment overrides, then validates the result.
// A missing config file is not an error as long as the environment
// provides the required values.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("json")
		v.SetConfigName("backup-config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so a
	// key absent from both the file and the defaults would ignore its
	// environment variable. Bind every settings key explicitly.
	for _, key := range settingsKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to bind configuration: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", DefaultAPIBaseURL)
	v.SetDefault("backup_sub_path", DefaultBackupSubPath)
	v.SetDefault("workspace_name", DefaultWorkspaceName)
	v.SetDefault("request_timeout_seconds", DefaultRequestTimeoutSeconds)
	v.SetDefault("webhook.timeout_seconds", 10)
	v.SetDefault("webhook.max_retries", 3)
}

// Validate checks the invariants that must hold before any network or
// repository operation begins. A failure here is a configuration
// error, not a pipeline failure.
func (s *Settings) Validate() error {
	var problems []string

	if strings.TrimSpace(s.BearerToken) == "" {
		problems = append(problems, "bearer_token must not be empty")
	}
	if strings.TrimSpace(s.SourceControlToken) == "" {
		problems = append(problems, "source_control_token must not be empty")
	}
	if strings.TrimSpace(s.SourceControlUsername) == "" {
		problems = append(problems, "source_control_username must not be empty")
	}
	if strings.TrimSpace(s.RepositoryPath) == "" {
		problems = append(problems, "repository_path must not be empty")
	}
	if s.RequestTimeoutSeconds <= 0 {
		problems = append(problems, "request_timeout_seconds must be positive")
	}
	if s.RetentionPeriod != "" {
		if _, err := ParseRetention(s.RetentionPeriod); err != nil {
			problems = append(problems, fmt.Sprintf("invalid retention_period %q: %v", s.RetentionPeriod, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// RequestTimeout returns the GraphQL request timeout as a duration.
func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// Retention returns the parsed retention period, or zero when pruning
// is disabled.
func (s *Settings) Retention() time.Duration {
	if s.RetentionPeriod == "" {
		return 0
	}
	d, err := ParseRetention(s.RetentionPeriod)
	if err != nil {
		return 0
	}
	return d
}

// ParseRetention accepts time.ParseDuration syntax plus a day suffix
// ("7d") and bare day counts ("7").
func ParseRetention(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("duration must not be negative")
		}
		return d, nil
	}

	daysStr := strings.TrimSuffix(value, "d")
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as duration or day count", value)
	}
	if days < 0 {
		return 0, fmt.Errorf("day count must not be negative")
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// MaskSecret returns a preview safe for logging: the first and last
// four characters with the middle elided. Short secrets are fully
// masked.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
