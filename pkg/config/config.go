package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"AlphaLab/internal/services/similarity"
	"AlphaLab/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
		File   struct {
			MaxSizeMB  int  `yaml:"max_size_mb" default:"100"`
			MaxBackups int  `yaml:"max_backups" default:"5"`
			MaxAgeDays int  `yaml:"max_age_days" default:"28"`
			Compress   bool `yaml:"compress" default:"true"`
		} `yaml:"file"`
		Digest struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"alphalab.errors"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			MaxUnique int           `yaml:"max_unique" default:"100"`
		} `yaml:"digest"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"5"`
			Burst int     `yaml:"burst" default:"10"`
		} `yaml:"rate_limit"`
		CORS struct {
			Enabled      bool          `yaml:"enabled" default:"true"`
			AllowOrigins []string      `yaml:"allow_origins"`
			MaxAge       time.Duration `yaml:"max_age" default:"10m"`
		} `yaml:"cors"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"quant_db"`
		FactorDatabase   string        `yaml:"factor_database" default:"factor_db"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"60s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"120s"`
	} `yaml:"clickhouse"`
	Breaker struct {
		MaxRequests  uint32        `yaml:"max_requests" default:"1"`
		Interval     time.Duration `yaml:"interval" default:"60s"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
		FailureRatio float64       `yaml:"failure_ratio" default:"0.6"`
		MinRequests  uint32        `yaml:"min_requests" default:"5"`
	} `yaml:"breaker"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"alphalab"`
	} `yaml:"redis"`
	Cache struct {
		ScanTTL     time.Duration `yaml:"scan_ttl" default:"10m"`
		AnalyzeTTL  time.Duration `yaml:"analyze_ttl" default:"10m"`
		SimilarTTL  time.Duration `yaml:"similar_ttl" default:"30m"`
		CatalogTTL  time.Duration `yaml:"catalog_ttl" default:"1h"`
		MemoryItems int           `yaml:"memory_items" default:"512"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"30m"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		JobsTopic    string   `yaml:"jobs_topic" default:"alphalab.jobs"`
		ReportsTopic string   `yaml:"reports_topic" default:"alphalab.reports"`
		Compression  string   `yaml:"compression" default:"gzip"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"100ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"alphalab"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"alphalab.jobs.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Evaluator struct {
		Horizon      int    `yaml:"horizon" default:"1"`
		Quantiles    int    `yaml:"quantiles" default:"10"`
		LookbackDays int    `yaml:"lookback_days" default:"60"`
		TopN         int    `yaml:"top_n" default:"20"`
		AlphaPrefix  string `yaml:"alpha_prefix" default:"alpha_"`
		AlphaCount   int    `yaml:"alpha_count" default:"101"`
		Schedule     string `yaml:"schedule" default:"0 30 18 * * 1-5"`
		ScanEnabled  bool   `yaml:"scan_enabled" default:"true"`
	} `yaml:"evaluator"`
	Jobs struct {
		// Backend is auto, kafka, redis or none. auto prefers Kafka, then Redis.
		Backend    string        `yaml:"backend" default:"auto"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"jobs"`
	Reports struct {
		WebhookURL   string        `yaml:"webhook_url"`
		WebhookToken string        `yaml:"webhook_token"`
		Timeout      time.Duration `yaml:"timeout" default:"10s"`
		BufferSize   int           `yaml:"buffer_size" default:"256"`
	} `yaml:"reports"`
	Similarity struct {
		Indicators []similarity.Indicator `yaml:"indicators"`
		TopN       int                    `yaml:"top_n" default:"3"`
		DaysBefore int                    `yaml:"days_before" default:"20"`
		DaysAfter  int                    `yaml:"days_after" default:"20"`
	} `yaml:"similarity"`
}

// Job backends.
const (
	JobsAuto  = "auto"
	JobsKafka = "kafka"
	JobsRedis = "redis"
	JobsNone  = "none"
)

// JobBackend resolves auto to the first enabled transport.
func (c *Config) JobBackend() string {
	if c.Jobs.Backend != JobsAuto {
		return c.Jobs.Backend
	}
	switch {
	case c.Kafka.Enabled:
		return JobsKafka
	case c.Redis.Enabled:
		return JobsRedis
	default:
		return JobsNone
	}
}

// Parse decodes YAML over defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Similarity.Indicators) == 0 {
		c.Similarity.Indicators = append([]similarity.Indicator(nil), similarity.DefaultIndicators...)
	}
	return &c, nil
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory, when present, is loaded first.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REPORT_WEBHOOK_URL"); v != "" {
		c.Reports.WebhookURL = v
	}
	if v := getenv("REPORT_WEBHOOK_TOKEN"); v != "" {
		c.Reports.WebhookToken = v
	}
	if v := getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.Server.CORS.AllowOrigins = util.SplitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Log.Digest.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("log.digest requires kafka")
	}
	if c.Evaluator.Horizon < 1 {
		return fmt.Errorf("evaluator.horizon must be >= 1, got %d", c.Evaluator.Horizon)
	}
	if c.Evaluator.Quantiles < 2 {
		return fmt.Errorf("evaluator.quantiles must be >= 2, got %d", c.Evaluator.Quantiles)
	}
	if c.Evaluator.LookbackDays < 2 {
		return fmt.Errorf("evaluator.lookback_days must be >= 2, got %d", c.Evaluator.LookbackDays)
	}
	if !strings.HasPrefix(c.Evaluator.AlphaPrefix, "alpha") {
		return fmt.Errorf("evaluator.alpha_prefix must start with 'alpha', got '%s'", c.Evaluator.AlphaPrefix)
	}
	switch c.Jobs.Backend {
	case JobsAuto, JobsNone:
	case JobsKafka:
		if !c.Kafka.Enabled {
			return fmt.Errorf("jobs.backend kafka requires kafka.enabled")
		}
	case JobsRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("jobs.backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("jobs.backend must be one of auto, kafka, redis, none, got '%s'", c.Jobs.Backend)
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be >= 1, got %d", c.Jobs.Workers)
	}
	if c.Similarity.TopN < 1 {
		return fmt.Errorf("similarity.top_n must be >= 1, got %d", c.Similarity.TopN)
	}
	if c.Similarity.DaysBefore < 0 || c.Similarity.DaysAfter < 0 {
		return fmt.Errorf("similarity window cannot be negative")
	}
	for _, ind := range c.Similarity.Indicators {
		if ind.Name == "" {
			return fmt.Errorf("similarity.indicators: name is required")
		}
		if ind.Weight <= 0 {
			return fmt.Errorf("similarity.indicators: weight for %s must be > 0", ind.Name)
		}
	}
	return nil
}
