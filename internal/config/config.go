package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Toggl   TogglConfig   `toml:"toggl"`
	Metrics MetricsConfig `toml:"metrics"`
	Sync    SyncConfig    `toml:"sync"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

type TogglConfig struct {
	APIToken   string `toml:"api_token"`
	Workspace  string `toml:"workspace"`
	BaseURL    string `toml:"base_url" validate:"omitempty,url"`
	ReportsURL string `toml:"reports_url" validate:"omitempty,url"`
}

type MetricsConfig struct {
	Timezone       string `toml:"timezone" validate:"required,timezone"`
	LateWorkHour   int    `toml:"late_work_hour" validate:"min=1,max=23"`
	HomeOfficeTag  string `toml:"home_office_tag" validate:"required"`
	CommutingTag   string `toml:"commuting_tag" validate:"required"`
	RollingWindows []int  `toml:"rolling_windows" validate:"dive,gt=0"`
}

type SyncConfig struct {
	LookbackDays  int    `toml:"lookback_days" validate:"gt=0"`
	WindowDays    int    `toml:"window_days" validate:"gt=0"`
	IntervalHours int    `toml:"interval_hours" validate:"gt=0"`
	BackfillSince string `toml:"backfill_since" validate:"omitempty,datetime=2006-01-02"`
}

type StorageConfig struct {
	Backend     string `toml:"backend" validate:"oneof=file sqlite"`
	DataDir     string `toml:"data_dir"`
	SourceLabel string `toml:"source_label"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=trace debug info warn warning error off disabled"`
	Format string `toml:"format" validate:"omitempty,oneof=console json"`
}

func DefaultConfig() Config {
	return Config{
		Metrics: MetricsConfig{
			Timezone:       "Europe/Zurich",
			LateWorkHour:   20,
			HomeOfficeTag:  "HomeOffice",
			CommutingTag:   "Commuting",
			RollingWindows: []int{5, 10, 30},
		},
		Sync: SyncConfig{
			LookbackDays:  30,
			WindowDays:    60,
			IntervalHours: 24,
			BackfillSince: "2025-06-01",
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "balancr"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at the default path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile layers the file at path over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Storage.DataDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.Storage.DataDir = filepath.Join(dir, "data")
	}
	if cfg.Storage.SourceLabel == "" {
		cfg.Storage.SourceLabel = cfg.Toggl.Workspace
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TOGGL_API_TOKEN"); v != "" {
		cfg.Toggl.APIToken = v
	}
	if v := os.Getenv("TOGGL_WORKSPACE"); v != "" {
		cfg.Toggl.Workspace = v
	}
	if v := os.Getenv("TOGGL_BASE_URL"); v != "" {
		cfg.Toggl.BaseURL = v
	}
	if v := os.Getenv("TOGGL_REPORTS_URL"); v != "" {
		cfg.Toggl.ReportsURL = v
	}
	if v := os.Getenv("BALANCR_TIMEZONE"); v != "" {
		cfg.Metrics.Timezone = v
	}
	if v := os.Getenv("BALANCR_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("BALANCR_STORAGE"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Location loads the configured civil timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Metrics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Metrics.Timezone, err)
	}
	return loc, nil
}

// RequireToggl reports a usable error when upstream credentials are missing.
func (c *Config) RequireToggl() error {
	if c.Toggl.APIToken == "" {
		return fmt.Errorf("toggl API token not configured: run 'balancr config' or set TOGGL_API_TOKEN")
	}
	if c.Toggl.Workspace == "" {
		return fmt.Errorf("toggl workspace not configured: set [toggl] workspace or TOGGL_WORKSPACE")
	}
	return nil
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DefaultFile renders the config file written by 'balancr config'.
func DefaultFile() ([]byte, error) {
	cfg := DefaultConfig()
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling default config: %w", err)
	}
	return out, nil
}
