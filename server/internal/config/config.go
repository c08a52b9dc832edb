package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/settings"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort    = 8080
	DefaultLogLevel    = "info"
	DefaultTimezone    = "Asia/Bangkok"
	DefaultWSInterval  = 5 * time.Second
	DefaultRetention   = 7 * 24 * time.Hour
	DefaultRedisPrefix = "buoy:"
	DefaultInterval    = 10 * time.Minute
	DefaultMQTTTopic   = "buoys/+/readings"
	DefaultMQTTClient  = "buoywatch"
)

// Rules sources.
const (
	SourceFile  = "file"
	SourceRedis = "redis"
)

// Config is the parsed config.yaml.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Storage  StorageConfig   `yaml:"storage"`
	Rules    RulesConfig     `yaml:"rules"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Stations []StationConfig `yaml:"stations"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// HTTPPort serves the REST API, /metrics and the WebSocket hub.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Timezone names the IANA zone used to key day history entries.
	Timezone string `yaml:"timezone"`

	// WSInterval is the WebSocket snapshot broadcast period.
	WSInterval time.Duration `yaml:"ws_interval"`
}

// StorageConfig selects backends. Each backend is enabled when its
// connection string resolves to a non-empty value; otherwise the in-memory
// store serves that concern.
type StorageConfig struct {
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`

	// Retention bounds append-only records kept by the in-memory store.
	Retention time.Duration `yaml:"retention"`
}

// RedisConfig holds registry/state store settings.
type RedisConfig struct {
	AddrEnv     string `yaml:"addr_env"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	Prefix      string `yaml:"prefix"`
}

// Addr returns the Redis address resolved from the environment.
func (r RedisConfig) Addr() string { return env(r.AddrEnv) }

// Password returns the Redis password resolved from the environment.
func (r RedisConfig) Password() string { return env(r.PasswordEnv) }

// PostgresConfig holds history/alert store settings.
type PostgresConfig struct {
	DSNEnv string `yaml:"dsn_env"`
}

// DSN returns the connection string resolved from the environment.
func (p PostgresConfig) DSN() string { return env(p.DSNEnv) }

// RulesConfig is the scoring and scheduler rule set.
type RulesConfig struct {
	// Source is file (this section) or redis (the rules key in Redis).
	Source string `yaml:"source"`

	// CacheTTL bounds how long rules are served before a refetch.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Weights override the default per-parameter weights; "tds" sets the
	// TDS/EC pool.
	Weights map[string]float64 `yaml:"weights"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// SchedulerConfig controls the status scheduler.
type SchedulerConfig struct {
	Paused        bool          `yaml:"paused"`
	OfflineAfter  time.Duration `yaml:"offline_after"`
	MissingRepeat time.Duration `yaml:"missing_repeat"`

	// Interval is the cycle period. It is read at startup only.
	Interval time.Duration `yaml:"interval"`
}

// Document converts the file rules into the form served by a rules source.
func (r RulesConfig) Document() settings.Document {
	return settings.Document{
		Weights: r.Weights,
		Scheduler: settings.SchedulerDoc{
			Paused:               r.Scheduler.Paused,
			OfflineAfterMinutes:  int(r.Scheduler.OfflineAfter / time.Minute),
			MissingRepeatMinutes: int(r.Scheduler.MissingRepeat / time.Minute),
		},
	}
}

// MQTTConfig holds broker settings. MQTT ingest is disabled when the broker
// resolves empty.
type MQTTConfig struct {
	BrokerEnv   string `yaml:"broker_env"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
	Topic       string `yaml:"topic"`
	ClientID    string `yaml:"client_id"`
	QoS         byte   `yaml:"qos"`
}

// Broker returns the broker URL resolved from the environment.
func (m MQTTConfig) Broker() string { return env(m.BrokerEnv) }

// Username returns the broker username resolved from the environment.
func (m MQTTConfig) Username() string { return env(m.UsernameEnv) }

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string { return env(m.PasswordEnv) }

// StationConfig registers one station at startup.
type StationConfig struct {
	ID             string        `yaml:"id"`
	Owner          string        `yaml:"owner"`
	ExpectedParams []string      `yaml:"expected_params"`
	OfflineAfter   time.Duration `yaml:"offline_after"`
}

// Settings converts the entry to registry settings. Parameters are validated
// by Load.
func (s StationConfig) Settings() types.StationSettings {
	out := types.StationSettings{OfflineAfter: s.OfflineAfter}
	for _, name := range s.ExpectedParams {
		if p, ok := types.ParseParameter(name); ok {
			out.ExpectedParams = append(out.ExpectedParams, p)
		}
	}
	return out
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:   DefaultHTTPPort,
			LogLevel:   DefaultLogLevel,
			Timezone:   DefaultTimezone,
			WSInterval: DefaultWSInterval,
		},
		Storage: StorageConfig{
			Redis:     RedisConfig{Prefix: DefaultRedisPrefix},
			Retention: DefaultRetention,
		},
		Rules: RulesConfig{
			Source:   SourceFile,
			CacheTTL: settings.DefaultTTL,
			Scheduler: SchedulerConfig{
				OfflineAfter:  settings.DefaultOfflineAfter,
				MissingRepeat: settings.DefaultMissingRepeat,
				Interval:      DefaultInterval,
			},
		},
		MQTT: MQTTConfig{
			Topic:    DefaultMQTTTopic,
			ClientID: DefaultMQTTClient,
			QoS:      1,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", cfg.Server.LogLevel)
	}
	if _, err := time.LoadLocation(cfg.Server.Timezone); err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}
	if cfg.Server.WSInterval <= 0 {
		return fmt.Errorf("server.ws_interval must be positive")
	}
	if cfg.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}

	switch cfg.Rules.Source {
	case SourceFile, SourceRedis:
	default:
		return fmt.Errorf("rules.source %q unknown: want file|redis", cfg.Rules.Source)
	}
	if cfg.Rules.Source == SourceRedis && cfg.Storage.Redis.AddrEnv == "" {
		return fmt.Errorf("rules.source redis requires storage.redis.addr_env")
	}
	if cfg.Rules.CacheTTL < 0 {
		return fmt.Errorf("rules.cache_ttl must not be negative")
	}
	for name, w := range cfg.Rules.Weights {
		if _, ok := types.ParseParameter(name); !ok {
			return fmt.Errorf("rules.weights: unknown parameter %q", name)
		}
		if w < 0 {
			return fmt.Errorf("rules.weights.%s must not be negative", name)
		}
	}
	s := cfg.Rules.Scheduler
	if s.OfflineAfter < time.Minute {
		return fmt.Errorf("rules.scheduler.offline_after must be at least 1m")
	}
	if s.MissingRepeat < time.Minute {
		return fmt.Errorf("rules.scheduler.missing_repeat must be at least 1m")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("rules.scheduler.interval must be positive")
	}

	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos %d is out of range [0, 2]", cfg.MQTT.QoS)
	}

	seen := make(map[string]bool, len(cfg.Stations))
	for i, st := range cfg.Stations {
		if strings.TrimSpace(st.ID) == "" {
			return fmt.Errorf("stations[%d]: id is required", i)
		}
		if seen[st.ID] {
			return fmt.Errorf("stations[%d]: duplicate id %q", i, st.ID)
		}
		seen[st.ID] = true
		for _, name := range st.ExpectedParams {
			if _, ok := types.ParseParameter(name); !ok {
				return fmt.Errorf("stations[%d]: unknown parameter %q", i, name)
			}
		}
		if st.OfflineAfter < 0 {
			return fmt.Errorf("stations[%d]: offline_after must not be negative", i)
		}
	}
	return nil
}

func env(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
