package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	yamlv3 "gopkg.in/yaml.v3"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

// clearLegacyEnv blanks the plain variable names so the host environment
// cannot leak into assertions.
func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LINE_CHANNEL_SECRET", "LINE_CHANNEL_ACCESS_TOKEN", "PORT",
		"PUBLIC_BASE_URL", "NHU_CAU_PATH", "NHAP_BAN_PATH", "TZ",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearLegacyEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Listen != ":8080" {
		t.Errorf("http.listen = %q", cfg.HTTP.Listen)
	}
	if cfg.Dedupe.TTL.Std() != 5*time.Minute {
		t.Errorf("dedupe.ttl = %v", cfg.Dedupe.TTL.Std())
	}
	if cfg.Reply.Backoff.Std() != 500*time.Millisecond {
		t.Errorf("reply.backoff = %v", cfg.Reply.Backoff.Std())
	}
	if len(cfg.Scheduler.Slots) != 2 || cfg.Scheduler.Slots[0] != "05:30" {
		t.Errorf("scheduler.slots = %v", cfg.Scheduler.Slots)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearLegacyEnv(t)
	path := tempConfigPath(t)
	body := `
log_level: debug
workers: 4
line:
  channel_secret: file-secret
  timeout: 3s
dedupe:
  backend: redis
  ttl: 90s
  redis:
    addr: localhost:6379
data:
  categories:
    - id: 1234
      title: Vegetables
scheduler:
  slots: ["06:00"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Workers != 4 {
		t.Errorf("log_level=%q workers=%d", cfg.LogLevel, cfg.Workers)
	}
	if cfg.LINE.Timeout.Std() != 3*time.Second {
		t.Errorf("line.timeout = %v", cfg.LINE.Timeout.Std())
	}
	if cfg.Dedupe.Backend != "redis" || cfg.Dedupe.TTL.Std() != 90*time.Second {
		t.Errorf("dedupe = %+v", cfg.Dedupe)
	}
	if len(cfg.Data.Categories) != 1 || cfg.Data.Categories[0].ID != 1234 {
		t.Errorf("categories = %+v", cfg.Data.Categories)
	}
	if len(cfg.Scheduler.Slots) != 1 || cfg.Scheduler.Slots[0] != "06:00" {
		t.Errorf("slots = %v", cfg.Scheduler.Slots)
	}
	// Untouched keys keep their defaults.
	if cfg.QueueSize != 64 {
		t.Errorf("queue_size = %d", cfg.QueueSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearLegacyEnv(t)
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("workers: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LINEBOT_WORKERS", "8")
	t.Setenv("LINEBOT_DEDUPE__MAX_ENTRIES", "10")
	t.Setenv("LINEBOT_REPLY__REDELIVERY_POLICY", "push")
	t.Setenv("LINEBOT_REPLY__BACKOFF", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Workers)
	}
	if cfg.Dedupe.MaxEntries != 10 {
		t.Errorf("dedupe.max_entries = %d", cfg.Dedupe.MaxEntries)
	}
	if cfg.Reply.RedeliveryPolicy != "push" {
		t.Errorf("redelivery_policy = %q", cfg.Reply.RedeliveryPolicy)
	}
	if cfg.Reply.Backoff.Std() != 250*time.Millisecond {
		t.Errorf("reply.backoff = %v", cfg.Reply.Backoff.Std())
	}
}

func TestLoadLegacyEnv(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("LINEBOT_LINE__CHANNEL_SECRET", "prefixed")
	t.Setenv("LINE_CHANNEL_SECRET", "legacy")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "token")
	t.Setenv("PORT", "9000")
	t.Setenv("NHU_CAU_PATH", "/data/nc.parquet")
	t.Setenv("TZ", "UTC")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LINE.ChannelSecret != "legacy" {
		t.Errorf("channel_secret = %q, legacy name should win", cfg.LINE.ChannelSecret)
	}
	if cfg.LINE.ChannelAccessToken != "token" {
		t.Errorf("channel_access_token = %q", cfg.LINE.ChannelAccessToken)
	}
	if cfg.HTTP.Listen != ":9000" {
		t.Errorf("http.listen = %q", cfg.HTTP.Listen)
	}
	if cfg.Data.DemandPath != "/data/nc.parquet" {
		t.Errorf("data.demand_path = %q", cfg.Data.DemandPath)
	}
	if cfg.Scheduler.Timezone != "UTC" {
		t.Errorf("scheduler.timezone = %q", cfg.Scheduler.Timezone)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearLegacyEnv(t)
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("workers: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.LINE.ChannelSecret = "secret"
		cfg.LINE.ChannelAccessToken = "token"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.LINE.ChannelSecret = "" }, "channel_secret"},
		{"missing token", func(c *Config) { c.LINE.ChannelAccessToken = "" }, "channel_access_token"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"redis without addr", func(c *Config) { c.Dedupe.Backend = "redis" }, "dedupe.redis.addr"},
		{"bad dedupe backend", func(c *Config) { c.Dedupe.Backend = "etcd" }, "dedupe.backend"},
		{"bad policy", func(c *Config) { c.Reply.RedeliveryPolicy = "retry" }, "redelivery_policy"},
		{"minio without bucket", func(c *Config) {
			c.Storage.Backend = "minio"
			c.Storage.MinIO.Endpoint = "localhost:9000"
		}, "storage.minio"},
		{"bad timezone", func(c *Config) {
			c.Scheduler.Enabled = true
			c.Scheduler.Timezone = "Mars/Olympus"
		}, "scheduler.timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	clearLegacyEnv(t)
	path := tempConfigPath(t)

	original := Default()
	original.LogLevel = "warn"
	original.LINE.ChannelSecret = "round-trip"
	original.LINE.Timeout = Duration(7 * time.Second)
	original.Storage.Backend = "minio"
	original.Storage.MinIO.Bucket = "reports"
	original.Data.Categories = []Category{{ID: 1236, Title: "Meat and Poultry"}}

	if err := Save(path, original); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not exist after a successful save")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LogLevel != "warn" || loaded.LINE.ChannelSecret != "round-trip" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.LINE.Timeout.Std() != 7*time.Second {
		t.Errorf("line.timeout = %v", loaded.LINE.Timeout.Std())
	}
	if loaded.Storage.MinIO.Bucket != "reports" {
		t.Errorf("bucket = %q", loaded.Storage.MinIO.Bucket)
	}
	if len(loaded.Data.Categories) != 1 || loaded.Data.Categories[0].Title != "Meat and Poultry" {
		t.Errorf("categories = %+v", loaded.Data.Categories)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	if err := Save(path, Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := yamlv3.Unmarshal(data, &m); err != nil {
		t.Fatalf("saved file is not valid YAML: %v", err)
	}
}

func TestListValues(t *testing.T) {
	cfg := Default()
	cfg.LINE.ChannelAccessToken = "abcdefgh1234"

	plain, err := ListValues(cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	if plain["line.channel_access_token"] != "abcdefgh1234" {
		t.Errorf("unmasked token = %v", plain["line.channel_access_token"])
	}
	if plain["dedupe.ttl"] != "5m0s" {
		t.Errorf("dedupe.ttl = %v", plain["dedupe.ttl"])
	}

	masked, err := ListValues(cfg, true)
	if err != nil {
		t.Fatal(err)
	}
	if masked["line.channel_access_token"] != "***1234" {
		t.Errorf("masked token = %v", masked["line.channel_access_token"])
	}
	if masked["http.listen"] != ":8080" {
		t.Errorf("http.listen = %v", masked["http.listen"])
	}
}

func TestGetValue(t *testing.T) {
	clearLegacyEnv(t)
	path := tempConfigPath(t)
	cfg := Default()
	cfg.Workers = 3
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	v, err := GetValue(path, "workers")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v != 3 {
		t.Errorf("workers = %v (%T)", v, v)
	}

	if _, err := GetValue(path, "nonexistent.key"); err == nil ||
		!strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestSetValue(t *testing.T) {
	clearLegacyEnv(t)
	path := tempConfigPath(t)

	// The file does not exist yet; SetValue starts from defaults.
	if err := SetValue(path, "workers", "6"); err != nil {
		t.Fatalf("SetValue workers: %v", err)
	}
	if err := SetValue(path, "reply.push_fallback", "true"); err != nil {
		t.Fatalf("SetValue push_fallback: %v", err)
	}
	if err := SetValue(path, "data.nearest_max_km", "12.5"); err != nil {
		t.Fatalf("SetValue nearest_max_km: %v", err)
	}
	if err := SetValue(path, "dedupe.redis.addr", "redis:6379"); err != nil {
		t.Fatalf("SetValue redis addr: %v", err)
	}
	if err := SetValue(path, "line.timeout", "30s"); err != nil {
		t.Fatalf("SetValue timeout: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 6 {
		t.Errorf("workers = %d", cfg.Workers)
	}
	if !cfg.Reply.PushFallback {
		t.Error("push_fallback should be true")
	}
	if cfg.Data.NearestMaxKm != 12.5 {
		t.Errorf("nearest_max_km = %v", cfg.Data.NearestMaxKm)
	}
	if cfg.Dedupe.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr = %q", cfg.Dedupe.Redis.Addr)
	}
	if cfg.LINE.Timeout.Std() != 30*time.Second {
		t.Errorf("line.timeout = %v", cfg.LINE.Timeout.Std())
	}
	// Values set earlier survive later writes.
	if cfg.HTTP.Listen != ":8080" {
		t.Errorf("http.listen = %q", cfg.HTTP.Listen)
	}
}

func TestSetValueRejects(t *testing.T) {
	path := tempConfigPath(t)
	if err := SetValue(path, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := SetValue(path, "workers", "many"); err == nil {
		t.Error("expected error for non-numeric workers")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected writes must not create the file")
	}
}
