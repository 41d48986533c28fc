package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lms-ai-backend/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PyrisConfig points at the external pipeline runtime.
type PyrisConfig struct {
	URL          string        `yaml:"url"`
	Secret       string        `yaml:"secret"`
	CallbackBase string        `yaml:"callback_base"` // advertised to the runtime for status callbacks
	Timeout      time.Duration `yaml:"timeout"`
}

// JobsConfig bounds the lifetime of registered pipeline jobs.
type JobsConfig struct {
	DefaultTTLHours int            `yaml:"default_ttl_hours"`
	KindTTLHours    map[string]int `yaml:"kind_ttl_hours"`
	SweepInterval   time.Duration  `yaml:"sweep_interval"`
}

// RateLimitConfig carries one policy per pipeline family. An absent family
// or a zero quota means unlimited.
type RateLimitConfig struct {
	Chat     model.RateLimitPolicy `yaml:"chat"`
	Artifact model.RateLimitPolicy `yaml:"artifact"`
}

// Policies maps the per-family sections into the form the use cases consume.
func (r RateLimitConfig) Policies() map[model.JobFamily]model.RateLimitPolicy {
	return map[model.JobFamily]model.RateLimitPolicy{
		model.FamilyChat:     r.Chat,
		model.FamilyArtifact: r.Artifact,
	}
}

type ProactiveConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Workers         int     `yaml:"workers"`
	DisabledCourses []int64 `yaml:"disabled_courses"`
}

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Log        LogConfig       `yaml:"log"`
	Database   DatabaseConfig  `yaml:"database"`
	Redis      RedisConfig     `yaml:"redis"`
	Pyris      PyrisConfig     `yaml:"pyris"`
	Jobs       JobsConfig      `yaml:"jobs"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	Proactive  ProactiveConfig `yaml:"proactive"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Secrets may come from the environment instead of the file.
	if v := os.Getenv("PYRIS_SECRET"); v != "" {
		cfg.Pyris.Secret = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Pyris.Timeout <= 0 {
		cfg.Pyris.Timeout = 30 * time.Second
	}
	if cfg.Jobs.DefaultTTLHours <= 0 {
		cfg.Jobs.DefaultTTLHours = 4
	}
	if cfg.Jobs.SweepInterval <= 0 {
		cfg.Jobs.SweepInterval = 10 * time.Minute
	}
	if cfg.Proactive.Workers <= 0 {
		cfg.Proactive.Workers = 4
	}

	// Minimal validation
	if cfg.Pyris.URL == "" {
		return nil, errors.New("pyris.url is required")
	}
	if cfg.Pyris.Secret == "" {
		return nil, errors.New("pyris.secret is required")
	}
	if cfg.Server.JWTSecret == "" {
		return nil, errors.New("server.jwt_secret is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// JobTTLs converts the hour-based sections into the registry's TTL budget.
func (c *Config) JobTTLs() (time.Duration, map[model.JobKind]time.Duration) {
	perKind := make(map[model.JobKind]time.Duration, len(c.Jobs.KindTTLHours))
	for kind, hours := range c.Jobs.KindTTLHours {
		if hours > 0 {
			perKind[model.JobKind(kind)] = time.Duration(hours) * time.Hour
		}
	}
	return time.Duration(c.Jobs.DefaultTTLHours) * time.Hour, perKind
}
