package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/qfeng2015/speech-harvester/internal/models"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// Config is built once at startup and passed by reference everywhere.
// Nothing reads configuration at runtime.
type Config struct {
	Log   logger.Config `yaml:"log"`
	Mongo MongoConfig   `yaml:"mongo"`
	Redis RedisConfig   `yaml:"redis"`
	Minio MinioConfig   `yaml:"minio"`
	HTTP  HTTPConfig    `yaml:"http"`

	Retry       RetryConfig       `yaml:"retry"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`

	// StartYear is the earliest year partition ever discovered.
	StartYear int `yaml:"start_year"`

	// UserAgents and Proxies feed outbound identity rotation.
	UserAgents []string `yaml:"user_agents"`
	Proxies    []string `yaml:"proxies"`

	Sources []models.SourceDefinition `yaml:"sources"`
}

type MongoConfig struct {
	URI         string        `yaml:"uri"`
	Database    string        `yaml:"database"`
	Collection  string        `yaml:"collection"`
	OpTimeout   time.Duration `yaml:"op_timeout"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

type MinioConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Timeout           time.Duration `yaml:"timeout"`
	HostRPS           float64       `yaml:"host_rps"`
}

type ConcurrencyConfig struct {
	Sources   int `yaml:"sources"`
	PerSource int `yaml:"per_source"`
}

// Load reads the YAML file at path and overlays secrets from the
// environment (a .env file is honored when present).
func Load(path string) (*Config, error) {
	// .env is optional; plain environment variables still apply.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("can't parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Log: logger.Config{
			Level:      "info",
			Encoding:   "json",
			Outputs:    []string{"stdout", "logs/harvester.log"},
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Mongo: MongoConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "speech_harvester",
			Collection:  "speeches",
			OpTimeout:   10 * time.Second,
			DialTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Retry: RetryConfig{
			MaxRetries:        3,
			BaseDelay:         5 * time.Second,
			BackoffMultiplier: 2,
			Timeout:           30 * time.Second,
			HostRPS:           2,
		},
		Concurrency: ConcurrencyConfig{Sources: 4, PerSource: 3},
		StartYear:   2017,
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		c.Minio.Bucket = v
	}
}

func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: no sources defined")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("config: source with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Adapter.Strategy {
		case models.StrategyYearList:
			if s.Adapter.URLTemplate == "" {
				return fmt.Errorf("config: source %s: yearlist strategy needs url_template", s.ID)
			}
		case models.StrategyLinkScrape, models.StrategyJSONFeed:
		default:
			return fmt.Errorf("config: source %s: unknown strategy %q", s.ID, s.Adapter.Strategy)
		}
	}
	if c.Concurrency.Sources < 1 || c.Concurrency.PerSource < 1 {
		return fmt.Errorf("config: concurrency bounds must be >= 1")
	}
	return nil
}
