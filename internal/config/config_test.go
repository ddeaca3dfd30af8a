package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"doorsync/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doorsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "env: production\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected env from file, got %q", cfg.Env)
	}
	if cfg.DBPath != "./data/doorsync.db" {
		t.Errorf("unexpected default db path %q", cfg.DBPath)
	}
	if cfg.Sync.Mode != "interval" {
		t.Errorf("unexpected default sync mode %q", cfg.Sync.Mode)
	}
	if cfg.Sync.IntervalSeconds != 60 {
		t.Errorf("unexpected default interval %d", cfg.Sync.IntervalSeconds)
	}
	if cfg.Probe.IntervalSeconds != 30 {
		t.Errorf("unexpected default probe interval %d", cfg.Probe.IntervalSeconds)
	}
	if cfg.Remote.TimeoutSeconds != 15 || cfg.Remote.MaxRetries != 3 {
		t.Errorf("unexpected remote defaults: %+v", cfg.Remote)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
db_path: /var/lib/doorsync/records.db
remote:
  base_url: https://api.example.com
  timeout_seconds: 5
sync:
  mode: daily
  daily_hour: 2
  daily_minute: 15
log:
  file: /var/log/doorsync/agent.log
  max_size_mb: 50
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "/var/lib/doorsync/records.db" {
		t.Errorf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.Remote.BaseURL != "https://api.example.com" || cfg.Remote.TimeoutSeconds != 5 {
		t.Errorf("unexpected remote config: %+v", cfg.Remote)
	}
	if cfg.Sync.Mode != "daily" || cfg.Sync.DailyHour != 2 || cfg.Sync.DailyMinute != 15 {
		t.Errorf("unexpected sync config: %+v", cfg.Sync)
	}
	if cfg.Log.File != "/var/log/doorsync/agent.log" || cfg.Log.MaxSizeMB != 50 {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOORSYNC_SYNC_INTERVAL_SECONDS", "5")
	t.Setenv("DOORSYNC_REMOTE_BASE_URL", "https://env.example.com")

	cfg, err := config.Load(writeConfig(t, "env: development\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.IntervalSeconds != 5 {
		t.Errorf("expected env override for interval, got %d", cfg.Sync.IntervalSeconds)
	}
	if cfg.Remote.BaseURL != "https://env.example.com" {
		t.Errorf("expected env override for base url, got %q", cfg.Remote.BaseURL)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad mode", "sync:\n  mode: hourly\n"},
		{"bad interval", "sync:\n  interval_seconds: 0\n"},
		{"bad hour", "sync:\n  mode: daily\n  daily_hour: 24\n"},
		{"bad minute", "sync:\n  mode: daily\n  daily_minute: 61\n"},
		{"bad probe", "probe:\n  interval_seconds: -1\n"},
		{"missing base url", "remote:\n  base_url: \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, tc.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingOptionalFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load without file: %v", err)
	}
	if cfg.Sync.Mode != "interval" {
		t.Errorf("expected defaults, got %+v", cfg.Sync)
	}
}
