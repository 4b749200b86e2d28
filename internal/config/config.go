package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: LINEBOT_DEDUPE__TTL sets dedupe.ttl.
const EnvPrefix = "LINEBOT_"

type Config struct {
	LogLevel      string          `koanf:"log_level" yaml:"log_level"`
	PublicBaseURL string          `koanf:"public_base_url" yaml:"public_base_url"`
	Workers       int             `koanf:"workers" yaml:"workers"`
	QueueSize     int             `koanf:"queue_size" yaml:"queue_size"`
	LINE          LINEConfig      `koanf:"line" yaml:"line"`
	HTTP          HTTPConfig      `koanf:"http" yaml:"http"`
	Dedupe        DedupeConfig    `koanf:"dedupe" yaml:"dedupe"`
	Reply         ReplyConfig     `koanf:"reply" yaml:"reply"`
	Data          DataConfig      `koanf:"data" yaml:"data"`
	Storage       StorageConfig   `koanf:"storage" yaml:"storage"`
	Scheduler     SchedulerConfig `koanf:"scheduler" yaml:"scheduler"`
}

type LINEConfig struct {
	ChannelSecret      string   `koanf:"channel_secret" yaml:"channel_secret"`
	ChannelAccessToken string   `koanf:"channel_access_token" yaml:"channel_access_token"`
	APIBaseURL         string   `koanf:"api_base_url" yaml:"api_base_url"`
	Timeout            Duration `koanf:"timeout" yaml:"timeout"`
}

type HTTPConfig struct {
	Listen string `koanf:"listen" yaml:"listen"`
}

type DedupeConfig struct {
	// Backend is "memory" or "redis".
	Backend    string      `koanf:"backend" yaml:"backend"`
	TTL        Duration    `koanf:"ttl" yaml:"ttl"`
	MaxEntries int         `koanf:"max_entries" yaml:"max_entries"`
	Redis      RedisConfig `koanf:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" yaml:"addr"`
	Password string `koanf:"password" yaml:"password"`
	DB       int    `koanf:"db" yaml:"db"`
	Prefix   string `koanf:"prefix" yaml:"prefix"`
}

type ReplyConfig struct {
	Backoff      Duration `koanf:"backoff" yaml:"backoff"`
	PushFallback bool     `koanf:"push_fallback" yaml:"push_fallback"`
	// RedeliveryPolicy is "drop" or "push".
	RedeliveryPolicy string   `koanf:"redelivery_policy" yaml:"redelivery_policy"`
	ResolveTimeout   Duration `koanf:"resolve_timeout" yaml:"resolve_timeout"`
}

type DataConfig struct {
	DemandPath   string     `koanf:"demand_path" yaml:"demand_path"`
	SalesPath    string     `koanf:"sales_path" yaml:"sales_path"`
	StoresPath   string     `koanf:"stores_path" yaml:"stores_path"`
	NearestMaxKm float64    `koanf:"nearest_max_km" yaml:"nearest_max_km"`
	Categories   []Category `koanf:"categories" yaml:"categories,omitempty"`
}

type Category struct {
	ID    int64  `koanf:"id" yaml:"id"`
	Title string `koanf:"title" yaml:"title"`
}

type StorageConfig struct {
	// Backend is "local" or "minio".
	Backend  string      `koanf:"backend" yaml:"backend"`
	LocalDir string      `koanf:"local_dir" yaml:"local_dir"`
	MinIO    MinIOConfig `koanf:"minio" yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `koanf:"endpoint" yaml:"endpoint"`
	AccessKey string `koanf:"access_key" yaml:"access_key"`
	SecretKey string `koanf:"secret_key" yaml:"secret_key"`
	UseTLS    bool   `koanf:"use_tls" yaml:"use_tls"`
	Bucket    string `koanf:"bucket" yaml:"bucket"`
	PublicURL string `koanf:"public_url" yaml:"public_url"`
}

type SchedulerConfig struct {
	Enabled           bool     `koanf:"enabled" yaml:"enabled"`
	Timezone          string   `koanf:"timezone" yaml:"timezone"`
	Slots             []string `koanf:"slots" yaml:"slots"`
	NotificationsPath string   `koanf:"notifications_path" yaml:"notifications_path"`
}

// Duration is a time.Duration written as text ("500ms", "5m0s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg := &Config{
		LogLevel:      "info",
		PublicBaseURL: "http://localhost:8080",
		Workers:       2,
		QueueSize:     64,
	}
	cfg.LINE.APIBaseURL = "https://api.line.me"
	cfg.LINE.Timeout = Duration(10 * time.Second)
	cfg.HTTP.Listen = ":8080"
	cfg.Dedupe.Backend = "memory"
	cfg.Dedupe.TTL = Duration(5 * time.Minute)
	cfg.Dedupe.MaxEntries = 5000
	cfg.Dedupe.Redis.Prefix = "linebot:dedupe"
	cfg.Reply.Backoff = Duration(500 * time.Millisecond)
	cfg.Reply.RedeliveryPolicy = "drop"
	cfg.Reply.ResolveTimeout = Duration(10 * time.Second)
	cfg.Data.DemandPath = "data/demand.parquet"
	cfg.Data.SalesPath = "data/sales.parquet"
	cfg.Data.StoresPath = "data/stores.parquet"
	cfg.Data.NearestMaxKm = 30
	cfg.Storage.Backend = "local"
	cfg.Storage.LocalDir = "static"
	cfg.Scheduler.Timezone = "Asia/Ho_Chi_Minh"
	cfg.Scheduler.Slots = []string{"05:30", "07:00"}
	cfg.Scheduler.NotificationsPath = "data/notifications.json"
	return cfg
}

// Load builds the configuration from defaults, a .env file in the working
// directory, the YAML file at path (if present), LINEBOT_* variables, and
// finally the plain variable names older deployments use.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	defaults, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshalling defaults: %w", err)
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyLegacyEnv(cfg)
	return cfg, nil
}

// envKey maps LINEBOT_DEDUPE__MAX_ENTRIES to dedupe.max_entries.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func applyLegacyEnv(cfg *Config) {
	set := func(name string, fn func(string)) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			fn(v)
		}
	}
	set("LINE_CHANNEL_SECRET", func(v string) { cfg.LINE.ChannelSecret = v })
	set("LINE_CHANNEL_ACCESS_TOKEN", func(v string) { cfg.LINE.ChannelAccessToken = v })
	set("PORT", func(v string) { cfg.HTTP.Listen = ":" + v })
	set("PUBLIC_BASE_URL", func(v string) { cfg.PublicBaseURL = v })
	set("NHU_CAU_PATH", func(v string) { cfg.Data.DemandPath = v })
	set("NHAP_BAN_PATH", func(v string) { cfg.Data.SalesPath = v })
	set("TZ", func(v string) { cfg.Scheduler.Timezone = v })
}

// Validate checks the values needed to serve webhooks.
func (c *Config) Validate() error {
	if c.LINE.ChannelSecret == "" {
		return fmt.Errorf("line.channel_secret is required")
	}
	if c.LINE.ChannelAccessToken == "" {
		return fmt.Errorf("line.channel_access_token is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1")
	}
	switch c.Dedupe.Backend {
	case "memory":
	case "redis":
		if c.Dedupe.Redis.Addr == "" {
			return fmt.Errorf("dedupe.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid dedupe.backend %q: must be memory or redis", c.Dedupe.Backend)
	}
	if c.Dedupe.TTL <= 0 || c.Dedupe.MaxEntries < 1 {
		return fmt.Errorf("dedupe.ttl and dedupe.max_entries must be positive")
	}
	switch c.Reply.RedeliveryPolicy {
	case "", "drop", "push":
	default:
		return fmt.Errorf("invalid reply.redelivery_policy %q: must be drop or push", c.Reply.RedeliveryPolicy)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required")
		}
	default:
		return fmt.Errorf("invalid storage.backend %q: must be local or minio", c.Storage.Backend)
	}
	if c.Scheduler.Enabled {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
		}
	}
	return nil
}

// Save writes cfg to path as YAML using an atomic rename.
func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to a nested map keyed by the YAML field names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshalling config: %w", err)
	}
	var m map[string]any
	if err := yamlv3.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return m, nil
}

// ListValues returns the flattened configuration, optionally masking
// secrets.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns one effective value by dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue writes one key into the YAML file at path, creating it from
// defaults when missing. The value is parsed as YAML, so "4" is a number
// and "true" a boolean.
func SetValue(path, key, value string) error {
	current, err := fileValues(path)
	if err != nil {
		return err
	}

	known, err := ListValues(Default(), false)
	if err != nil {
		return err
	}
	if _, ok := known[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	var parsed any
	if err := yamlv3.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		parsed = value
	}
	current[key] = parsed

	data, err := yamlv3.Marshal(Unflatten(current))
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	cfg := Default()
	if err := yamlv3.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Save(path, cfg)
}

// fileValues returns the flattened values present in the YAML file, or
// the defaults when the file does not exist.
func fileValues(path string) (map[string]any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ListValues(Default(), false)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Flatten(k.Raw()), nil
}
