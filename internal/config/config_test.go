package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TOGGL_API_TOKEN", "TOGGL_WORKSPACE", "TOGGL_BASE_URL", "TOGGL_REPORTS_URL",
		"BALANCR_TIMEZONE", "BALANCR_DATA_DIR", "BALANCR_STORAGE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Metrics.Timezone != "Europe/Zurich" || cfg.Metrics.LateWorkHour != 20 {
		t.Errorf("unexpected metrics defaults: %+v", cfg.Metrics)
	}
	if cfg.Sync.WindowDays != 60 || cfg.Storage.Backend != "file" {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Sync, cfg.Storage)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, filepath.Join(".config", "balancr", "data")) {
		t.Errorf("DataDir = %s", cfg.Storage.DataDir)
	}
}

func TestLoadFile_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
[toggl]
api_token = "abc"
workspace = "Acme"

[metrics]
timezone = "America/New_York"
late_work_hour = 19
rolling_windows = [5, 20]

[storage]
backend = "sqlite"
data_dir = "/tmp/balancr"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Metrics.Timezone != "America/New_York" || cfg.Metrics.LateWorkHour != 19 {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if len(cfg.Metrics.RollingWindows) != 2 || cfg.Metrics.RollingWindows[1] != 20 {
		t.Errorf("RollingWindows = %v", cfg.Metrics.RollingWindows)
	}
	// untouched keys keep their defaults
	if cfg.Metrics.HomeOfficeTag != "HomeOffice" {
		t.Errorf("HomeOfficeTag = %q", cfg.Metrics.HomeOfficeTag)
	}
	if cfg.Storage.SourceLabel != "Acme" {
		t.Errorf("SourceLabel = %q, want workspace name", cfg.Storage.SourceLabel)
	}
	if err := cfg.RequireToggl(); err != nil {
		t.Errorf("RequireToggl: %v", err)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOGGL_API_TOKEN", "from-env")
	t.Setenv("TOGGL_WORKSPACE", "EnvSpace")
	t.Setenv("BALANCR_STORAGE", "sqlite")
	t.Setenv("LOG_LEVEL", "DEBUG")

	path := writeConfig(t, `
[toggl]
api_token = "from-file"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Toggl.APIToken != "from-env" || cfg.Toggl.Workspace != "EnvSpace" {
		t.Errorf("toggl = %+v", cfg.Toggl)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Log.Level != "debug" {
		t.Errorf("storage=%q log=%q", cfg.Storage.Backend, cfg.Log.Level)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"timezone", "[metrics]\ntimezone = \"Mars/Olympus\"\n", "Timezone"},
		{"late hour", "[metrics]\nlate_work_hour = 24\n", "LateWorkHour"},
		{"late hour zero", "[metrics]\nlate_work_hour = 0\n", "LateWorkHour"},
		{"window", "[metrics]\nrolling_windows = [5, 0]\n", "RollingWindows"},
		{"backend", "[storage]\nbackend = \"postgres\"\n", "Backend"},
		{"backfill", "[sync]\nbackfill_since = \"June\"\n", "BackfillSince"},
		{"syntax", "[metrics\n", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadFile(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRequireToggl(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.RequireToggl(); err == nil || !strings.Contains(err.Error(), "API token") {
		t.Errorf("expected token error, got %v", err)
	}
	cfg.Toggl.APIToken = "x"
	if err := cfg.RequireToggl(); err == nil || !strings.Contains(err.Error(), "workspace") {
		t.Errorf("expected workspace error, got %v", err)
	}
}

func TestDefaultFile_RoundTrips(t *testing.T) {
	clearEnv(t)

	data, err := DefaultFile()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "late_work_hour") {
		t.Errorf("default file missing keys:\n%s", data)
	}
	cfg, err := LoadFile(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("reloading default file: %v", err)
	}
	if cfg.Metrics.CommutingTag != "Commuting" {
		t.Errorf("CommutingTag = %q", cfg.Metrics.CommutingTag)
	}
}
