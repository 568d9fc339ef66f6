package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port" env:"PORT"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
		Env   string `yaml:"env" env:"APP_ENV"`
	} `yaml:"log"`
	Questions struct {
		File             string `yaml:"file" env:"QUESTIONS_FILE"`
		Source           string `yaml:"source" env:"QUESTIONS_SOURCE"`
		PersistGenerated bool   `yaml:"persist_generated"`
	} `yaml:"questions"`
	Session struct {
		IdleTTL       string `yaml:"idle_ttl" env:"SESSION_IDLE_TTL"`
		SweepInterval string `yaml:"sweep_interval"`
		DefaultCount  int    `yaml:"default_count"`
		Store         string `yaml:"store"`
	} `yaml:"session"`
	Stats struct {
		Backend   string `yaml:"backend" env:"STATS_BACKEND"`
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"stats"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" env:"SQLITE_PATH"`
	} `yaml:"sqlite"`
	AI struct {
		BaseURL string `yaml:"base_url" env:"AI_BASE_URL"`
		APIKey  string `yaml:"api_key" env:"AI_API_KEY"`
		// OPENAI_API_KEY is honoured when AI_API_KEY is not set.
		OpenAIKey string `yaml:"-" env:"OPENAI_API_KEY"`
		Model     string `yaml:"model" env:"AI_MODEL"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"ai"`
}

// Default returns the configuration used when no file or environment overrides it.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Log.Level = "info"
	cfg.Log.Env = "development"
	cfg.Questions.Source = "file"
	cfg.Session.IdleTTL = "30m"
	cfg.Session.SweepInterval = "1m"
	cfg.Session.DefaultCount = 10
	cfg.Session.Store = "memory"
	cfg.Stats.Backend = "memory"
	cfg.Stats.QueueSize = 1024
	cfg.Redis.TTL = "10m"
	cfg.SQLite.Path = "trivia.db"
	cfg.AI.BaseURL = "https://api.openai.com/v1"
	cfg.AI.Model = "gpt-4"
	cfg.AI.Timeout = "30s"
	return cfg
}

// Load reads YAML config from path over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = cfg.AI.OpenAIKey
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown backend names and settings they depend on.
func (c Config) Validate() error {
	switch c.Questions.Source {
	case "file":
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("questions.source postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown questions.source %q", c.Questions.Source)
	}
	switch c.Stats.Backend {
	case "memory", "sqlite":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("stats.backend redis requires redis.addr")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("stats.backend postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown stats.backend %q", c.Stats.Backend)
	}
	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("session.store redis requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}
	if c.Session.DefaultCount < 1 {
		return fmt.Errorf("session.default_count must be positive")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
