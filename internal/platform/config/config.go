// Package config loads process configuration.
//
// Precedence: built-in defaults, then an optional TOML file (DOSSIER_CONFIG),
// then environment variables. Environment always wins so deployments can
// override a checked-in file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server         Server               `toml:"server"`
	Log            LogConfig            `toml:"log"`
	Database       DatabaseConfig       `toml:"database"`
	Redis          RedisConfig          `toml:"redis"`
	Kafka          KafkaConfig          `toml:"kafka"`
	IdentitySource IdentitySourceConfig `toml:"identity_source"`
	Invalidation   InvalidationConfig   `toml:"invalidation"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	// CallerHeader carries the id of the member already authenticated upstream.
	CallerHeader string `toml:"caller_header"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DatabaseConfig selects the relational store. An empty URL runs the service on
// in-memory stores.
type DatabaseConfig struct {
	URL             string        `toml:"url"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `toml:"connect_timeout"`
	TxTimeout       time.Duration `toml:"tx_timeout"`
}

type RedisConfig struct {
	URL          string        `toml:"url"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type KafkaConfig struct {
	Brokers  []string `toml:"brokers"`
	ClientID string   `toml:"client_id"`
}

// IdentitySourceConfig points at the upstream profile service. An empty BaseURL
// uses a static source that knows no identities.
type IdentitySourceConfig struct {
	BaseURL          string        `toml:"base_url"`
	APIKey           string        `toml:"api_key"`
	Timeout          time.Duration `toml:"timeout"`
	FailureThreshold int           `toml:"failure_threshold"`
	SuccessThreshold int           `toml:"success_threshold"`
	Cooldown         time.Duration `toml:"cooldown"`
}

type InvalidationConfig struct {
	RedisChannel string `toml:"redis_channel"`
	KafkaTopic   string `toml:"kafka_topic"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			CallerHeader:    "X-Caller-ID",
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			TxTimeout:       5 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{ClientID: "dossier"},
		IdentitySource: IdentitySourceConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Cooldown:         15 * time.Second,
		},
		Invalidation: InvalidationConfig{
			RedisChannel: "dossier.players.invalidate",
			KafkaTopic:   "dossier.players.invalidate",
		},
	}
}

// Load reads the optional TOML file at path and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config: %w", err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from DOSSIER_CONFIG and the environment so main stays lean.
func FromEnv() (Config, error) {
	return Load(os.Getenv("DOSSIER_CONFIG"))
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "DOSSIER_ADDR")
	setString(&cfg.Server.CallerHeader, "DOSSIER_CALLER_HEADER")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Kafka.ClientID, "KAFKA_CLIENT_ID")
	setString(&cfg.IdentitySource.BaseURL, "IDENTITY_SOURCE_URL")
	setString(&cfg.IdentitySource.APIKey, "IDENTITY_SOURCE_API_KEY")
	setString(&cfg.Invalidation.RedisChannel, "INVALIDATION_REDIS_CHANNEL")
	setString(&cfg.Invalidation.KafkaTopic, "INVALIDATION_KAFKA_TOPIC")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.Server.ShutdownTimeout, "DOSSIER_SHUTDOWN_TIMEOUT"},
		{&cfg.Database.TxTimeout, "DATABASE_TX_TIMEOUT"},
		{&cfg.Database.ConnectTimeout, "DATABASE_CONNECT_TIMEOUT"},
		{&cfg.IdentitySource.Timeout, "IDENTITY_SOURCE_TIMEOUT"},
		{&cfg.IdentitySource.Cooldown, "IDENTITY_SOURCE_COOLDOWN"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Database.MaxOpenConns, "DATABASE_MAX_OPEN_CONNS"},
		{&cfg.Redis.PoolSize, "REDIS_POOL_SIZE"},
		{&cfg.IdentitySource.FailureThreshold, "IDENTITY_SOURCE_FAILURE_THRESHOLD"},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
