package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fusionguard/recommender/internal/recommend"
)

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type ServiceConfig struct {
	Name      string          `yaml:"name"`
	HTTPAddr  string          `yaml:"http_addr"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits POST /recommendations per client IP. Zero requests
// disables the limit.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CatalogConfig struct {
	Source        string `yaml:"source"`
	KnowledgePath string `yaml:"knowledge_path"`
	// SeedFromFile copies the knowledge file into Postgres at startup.
	SeedFromFile bool `yaml:"seed_from_file"`
}

type NATSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	SubjectRequests string `yaml:"subject_requests"`
	SubjectResults  string `yaml:"subject_results"`
	QueueGroup      string `yaml:"queue_group"`
	// Embedded runs an in-process broker on EmbeddedPort instead of
	// connecting to URL.
	Embedded     bool `yaml:"embedded"`
	EmbeddedPort int  `yaml:"embedded_port"`
}

type StorageConfig struct {
	PostgresDSN  string `yaml:"postgres_dsn"`
	WriteResults bool   `yaml:"write_results"`
}

type Config struct {
	ConfigVersion int                  `yaml:"config_version"`
	Service       ServiceConfig        `yaml:"service"`
	Log           LogConfig            `yaml:"log"`
	Catalog       CatalogConfig        `yaml:"catalog"`
	Rules         recommend.Thresholds `yaml:"rules"`
	NATS          NATSConfig           `yaml:"nats"`
	Storage       StorageConfig        `yaml:"storage"`
	Timeout       time.Duration        `yaml:"-"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := checkExplicitRules(raw); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Timeout = 10 * time.Second
	return &cfg, nil
}

// ruleValues mirrors the numeric rule thresholds with pointers so a value
// written as 0 can be told apart from an omitted one.
type ruleValues struct {
	Rules struct {
		ArbitrageProfit  *float64 `yaml:"arbitrage_profit"`
		FreeShippingCart *float64 `yaml:"free_shipping_cart"`
		InactiveDays     *float64 `yaml:"inactive_days"`
	} `yaml:"rules"`
}

// checkExplicitRules rejects thresholds set to zero or below. Omitted
// thresholds take their defaults.
func checkExplicitRules(raw []byte) error {
	var v ruleValues
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"rules.arbitrage_profit", v.Rules.ArbitrageProfit},
		{"rules.free_shipping_cart", v.Rules.FreeShippingCart},
		{"rules.inactive_days", v.Rules.InactiveDays},
	} {
		if f.value != nil && *f.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", f.name, *f.value)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RECOMMENDER_HTTP_ADDR"); v != "" {
		c.Service.HTTPAddr = v
	}
	if v := os.Getenv("RECOMMENDER_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("RECOMMENDER_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "recommender"
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = SourceFile
	}
	if c.NATS.QueueGroup == "" {
		c.NATS.QueueGroup = "recommender"
	}
	if c.NATS.SubjectRequests == "" {
		c.NATS.SubjectRequests = "recommend.requests"
	}
	if c.NATS.SubjectResults == "" {
		c.NATS.SubjectResults = "recommend.results"
	}
	if c.Service.RateLimit.Requests > 0 && c.Service.RateLimit.Window == 0 {
		c.Service.RateLimit.Window = time.Minute
	}
	if c.NATS.Embedded && c.NATS.EmbeddedPort == 0 {
		c.NATS.EmbeddedPort = 4222
	}
	c.Rules = c.Rules.WithDefaults()
}

func (c *Config) Validate() error {
	if c.Service.HTTPAddr == "" {
		return fmt.Errorf("service.http_addr is required")
	}

	switch c.Catalog.Source {
	case SourceFile:
		if c.Catalog.KnowledgePath == "" {
			return fmt.Errorf("catalog.knowledge_path is required for file source")
		}
	case SourcePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for postgres source")
		}
		if c.Catalog.SeedFromFile && c.Catalog.KnowledgePath == "" {
			return fmt.Errorf("catalog.knowledge_path is required when seed_from_file is set")
		}
	default:
		return fmt.Errorf("catalog.source must be %q or %q, got %q", SourceFile, SourcePostgres, c.Catalog.Source)
	}

	if c.Storage.WriteResults && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required when write_results is set")
	}
	if c.NATS.Enabled && !c.NATS.Embedded && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	if c.Service.RateLimit.Requests < 0 || c.Service.RateLimit.Window < 0 {
		return fmt.Errorf("service.rate_limit must be non-negative")
	}
	if c.Rules.ArbitrageProfit < 0 || c.Rules.FreeShippingCart < 0 || c.Rules.InactiveDays < 0 {
		return fmt.Errorf("rules thresholds must be non-negative")
	}
	return nil
}

// NeedsDatabase reports whether any component requires a Postgres connection.
func (c *Config) NeedsDatabase() bool {
	return c.Catalog.Source == SourcePostgres || c.Storage.WriteResults
}
