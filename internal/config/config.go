package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clearcite/integrity-engine/internal/platform/envutil"
)

type HTTPConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DBConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// AnalysisConfig holds the tunables institutions adjust without touching the
// algorithm: flagging threshold, severity tier boundaries, shingling shape.
type AnalysisConfig struct {
	ShingleSize      int           `yaml:"shingle_size"`
	MinSpanShingles  int           `yaml:"min_span_shingles"`
	GapTolerance     int           `yaml:"gap_tolerance"`
	FlagThreshold    float64       `yaml:"flag_threshold"`
	HighSeverity     float64       `yaml:"high_severity"`
	ModerateSeverity float64       `yaml:"moderate_severity"`
	TopK             int           `yaml:"top_k_recommendations"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
}

type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Worker   WorkerConfig   `yaml:"worker"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Auth: AuthConfig{JWTSecret: "devsecret"},
		DB:   DBConfig{Driver: "postgres", DSN: ""},
		Redis: RedisConfig{
			Addr:    "",
			Channel: "integrity.jobs",
		},
		Analysis: AnalysisConfig{
			ShingleSize:      5,
			MinSpanShingles:  3,
			GapTolerance:     1,
			FlagThreshold:    15,
			HighSeverity:     0.5,
			ModerateSeverity: 0.15,
			TopK:             4,
			JobTimeout:       45 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			PollInterval: time.Second,
		},
	}
}

// Load reads an optional YAML file over the defaults, then applies env
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Auth.JWTSecret = envutil.String("JWT_SECRET_KEY", cfg.Auth.JWTSecret)
	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = envutil.String("DB_DSN", cfg.DB.DSN)
	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)
	cfg.Analysis.FlagThreshold = envutil.Float("ANALYSIS_FLAG_THRESHOLD", cfg.Analysis.FlagThreshold)
	cfg.Analysis.JobTimeout = envutil.Duration("ANALYSIS_JOB_TIMEOUT", cfg.Analysis.JobTimeout)
	cfg.Worker.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.PollInterval = envutil.Duration("WORKER_POLL_INTERVAL", cfg.Worker.PollInterval)

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Analysis.ShingleSize < 2 {
		return fmt.Errorf("analysis.shingle_size must be >= 2, got %d", c.Analysis.ShingleSize)
	}
	if c.Analysis.MinSpanShingles < 1 {
		return fmt.Errorf("analysis.min_span_shingles must be >= 1, got %d", c.Analysis.MinSpanShingles)
	}
	if c.Analysis.FlagThreshold < 0 || c.Analysis.FlagThreshold > 100 {
		return fmt.Errorf("analysis.flag_threshold must be in [0,100], got %v", c.Analysis.FlagThreshold)
	}
	if c.Analysis.ModerateSeverity > c.Analysis.HighSeverity {
		return fmt.Errorf("analysis.moderate_severity must not exceed high_severity")
	}
	if c.Worker.Concurrency < 1 {
		c.Worker.Concurrency = 1
	}
	return nil
}
