package configuration

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"progression/internal/ledger"
	"progression/internal/metrics"
	"progression/internal/score"
)

const (
	InputTypeDir  = "dir"
	InputTypeHTTP = "http"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Logger — logger component configuration
	Logger LoggerConfig `mapstructure:"logger"`
	// Server — HTTP server configuration
	Server ServerConfig `mapstructure:"server"`
	// Ledger — ledger persistence configuration
	Ledger LedgerConfig `mapstructure:"ledger"`
	// Input — day metrics source configuration
	Input InputConfig `mapstructure:"input"`
	// Scoring — scoring formula tuning
	Scoring score.Params `mapstructure:"scoring"`
	// Milestones — milestone rules configuration
	Milestones MilestonesConfig `mapstructure:"milestones"`
	// Audit — run journal configuration
	Audit AuditConfig `mapstructure:"audit"`
	// Profile — profile projection configuration
	Profile ProfileConfig `mapstructure:"profile"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level — log level: debug, info, warn, warning, error.
	// Value is case-insensitive but checked in lowercase.
	Level string `mapstructure:"level"`
	// File — optional log file, rotated; stdout when empty.
	File string `mapstructure:"file"`
}

// ServerConfig contains HTTP server parameters.
type ServerConfig struct {
	// Address — address and port where the server will listen (e.g., ":8080").
	Address string `mapstructure:"address"`
	// Token — shared token required by the write endpoints.
	Token string `mapstructure:"token"`
}

// LedgerConfig defines where the ledger and the profile snapshot live.
type LedgerConfig struct {
	// Backend — file or sqlite.
	Backend string `mapstructure:"backend"`
	// Path — ledger file or database path.
	Path string `mapstructure:"path"`
	// Profile — path of the profile snapshot.
	Profile string `mapstructure:"profile"`
	// LockTimeout — maximal wait for the writer lock, e.g. "10s".
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// InputConfig defines the day metrics source.
type InputConfig struct {
	// Type — dir or http.
	Type string `mapstructure:"type"`
	// Dir — directory with <date>.json documents.
	Dir string `mapstructure:"dir"`
	// Format — metrics or daily-log.
	Format string `mapstructure:"format"`
	// URL — base address of the extractor service.
	URL string `mapstructure:"url"`
	// Timeout — extractor request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// MilestonesConfig defines milestone rules.
type MilestonesConfig struct {
	// Rules — path to a YAML rule file; built-in rules when empty.
	Rules string `mapstructure:"rules"`
}

// AuditConfig defines run journal parameters.
type AuditConfig struct {
	// Journal file path (optional)
	File string `mapstructure:"file"`
	// Maximal journal file size in MB (default 100)
	Size int `mapstructure:"size"`
	// Number of journal files (default 20)
	Amount int `mapstructure:"amount"`
}

// ProfileConfig defines the projected profile.
type ProfileConfig struct {
	// Name — display name.
	Name string `mapstructure:"name"`
}

// Validate checks the correctness of the entire application configuration.
// Calls validation for each nested structure and returns the first detected error.
// Returns nil if the configuration is valid.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if err := c.Ledger.Validate(); err != nil {
		return err
	}

	if err := c.Input.Validate(); err != nil {
		return err
	}

	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}

	if err := c.Audit.Validate(); err != nil {
		return err
	}

	if c.Profile.Name == "" {
		c.Profile.Name = "Operator"
	}

	return nil
}

// Validate checks the correctness of the logger configuration.
// Verifies that the log level is set and is one of the supported values.
// Supported values: debug, info, warn, warning, error (case-insensitive).
func (l *LoggerConfig) Validate() error {
	if l.Level == "" {
		return errors.New("logger.level: must be specified")
	}

	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}

	return nil
}

// Validate checks the correctness of the server configuration.
// The server section is only required by the serve command.
func (n *ServerConfig) Validate() error {
	if n.Address == "" {
		return errors.New("server.address: must be specified")
	}

	if n.Token == "" {
		return errors.New("server.token: must be specified")
	}

	return nil
}

// Validate checks the ledger configuration and fills defaults.
func (l *LedgerConfig) Validate() error {
	if l.Backend == "" {
		l.Backend = ledger.BackendFile
	}
	if l.Backend != ledger.BackendFile && l.Backend != ledger.BackendSQLite {
		return fmt.Errorf("ledger.backend: unsupported backend '%s'", l.Backend)
	}

	if l.Path == "" {
		return errors.New("ledger.path: must be specified")
	}

	if l.Profile == "" {
		return errors.New("ledger.profile: must be specified")
	}

	if l.LockTimeout <= 0 {
		l.LockTimeout = 10 * time.Second
	}

	return nil
}

// Validate checks the metrics source configuration and fills defaults.
func (i *InputConfig) Validate() error {
	if i.Format == "" {
		i.Format = metrics.FormatMetrics
	}
	if i.Format != metrics.FormatMetrics && i.Format != metrics.FormatDailyLog {
		return fmt.Errorf("input.format: unsupported format '%s'", i.Format)
	}

	switch i.Type {
	case InputTypeDir, "":
		i.Type = InputTypeDir
		if i.Dir == "" {
			return errors.New("input.dir: must be specified")
		}
	case InputTypeHTTP:
		u, err := url.Parse(i.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("input.url: URL is incorrect")
		}
		if i.Timeout <= 0 {
			i.Timeout = 5 * time.Second
		}
	default:
		return fmt.Errorf("input.type: unsupported type '%s'", i.Type)
	}

	return nil
}

// Validate audit parameters
func (a *AuditConfig) Validate() error {
	if a.Amount == 0 {
		a.Amount = 20
	}

	if a.Size == 0 {
		a.Size = 100
	}

	return nil
}

// LoadConfig loads configuration from the specified file using Viper.
// Supports YAML format. Also includes environment variable loading (AutomaticEnv),
// which can override values from the file, e.g. SERVER_TOKEN for server.token.
// Scoring parameters missing from the file keep their reference values.
//
// Parameter configPath — path to the configuration file.
//
// Returns a pointer to AppConfig or an error if:
// - the file is not found or inaccessible
// - the configuration has invalid format
// - one of the sections fails validation
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("server.token", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := AppConfig{Scoring: score.DefaultParams()}
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
