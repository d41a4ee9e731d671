package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory     = "memory"
	BackendClickHouse = "clickhouse"
	BackendKafka      = "kafka"
	BackendRedis      = "redis"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	AppVersion  string `yaml:"app_version" default:"1.0.0"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		Path          string        `yaml:"path" default:"/metrics"`
		SlowThreshold time.Duration `yaml:"slow_threshold" default:"1s"`
	} `yaml:"metrics"`
	Upstream struct {
		BaseURL string        `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"upstream"`
	Cache struct {
		Backend string        `yaml:"backend" default:"memory"`
		TTL     time.Duration `yaml:"ttl" default:"15s"`
		Shards  int           `yaml:"shards" default:"32"`
	} `yaml:"cache"`
	Redis struct {
		Host      string        `yaml:"host" default:"localhost"`
		Port      int           `yaml:"port" default:"6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"coinpulse"`
		PoolSize  int           `yaml:"pool_size" default:"10"`
		OpTimeout time.Duration `yaml:"op_timeout" default:"250ms"`
	} `yaml:"redis"`
	Audit struct {
		Backend       string        `yaml:"backend" default:"memory"`
		QueueSize     int           `yaml:"queue_size" default:"1024"`
		Workers       int           `yaml:"workers" default:"4"`
		AppendTimeout time.Duration `yaml:"append_timeout" default:"2s"`
	} `yaml:"audit"`
	Dashboard struct {
		Window time.Duration `yaml:"window" default:"24h"`
	} `yaml:"dashboard"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"coinpulse.outcomes"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled" default:"true"`
			GroupID    string        `yaml:"group_id" default:"coinpulse-audit-ingest"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"coinpulse"`
		Table            string        `yaml:"table" default:"outcomes"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("COINGECKO_API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	if v := getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	switch c.Cache.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	switch c.Audit.Backend {
	case BackendMemory, BackendClickHouse:
	case BackendKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when audit.backend is kafka")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when audit.backend is kafka")
		}
	default:
		return fmt.Errorf("audit.backend must be 'memory', 'clickhouse' or 'kafka', got '%s'", c.Audit.Backend)
	}
	if c.Audit.QueueSize <= 0 || c.Audit.Workers <= 0 {
		return fmt.Errorf("audit.queue_size and audit.workers must be positive")
	}
	if c.Dashboard.Window <= 0 {
		return fmt.Errorf("dashboard.window must be positive")
	}
	return nil
}
