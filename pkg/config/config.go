package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RequestTimeout  time.Duration `yaml:"request_timeout" default:"20s"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost" validate:"required"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"marketsignal" validate:"required"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalTopic  string   `yaml:"signal_topic" default:"marketsignal.signals"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"marketsignal-recorder"`
			Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Signal struct {
		Symbols          []string      `yaml:"symbols"`
		DefaultSymbol    string        `yaml:"default_symbol" default:"BTC"`
		DefaultPair      string        `yaml:"default_pair" default:"BTCUSDT"`
		DefaultInterval  string        `yaml:"default_interval" default:"1h"`
		FundingExchanges []string      `yaml:"funding_exchanges"`
		CacheTTL         time.Duration `yaml:"cache_ttl" default:"30s"`
	} `yaml:"signal"`
	Model struct {
		StoreKey     string  `yaml:"store_key" default:"marketsignal:model"`
		Epochs       int     `yaml:"epochs" default:"300" validate:"gte=1"`
		LearningRate float64 `yaml:"learning_rate" default:"0.01" validate:"gt=0"`
	} `yaml:"model"`
	Backtest struct {
		AIWorkers int `yaml:"ai_workers" default:"8" validate:"gte=1"`
	} `yaml:"backtest"`
	Labeler struct {
		Enabled  bool          `yaml:"enabled"`
		Horizon  time.Duration `yaml:"horizon" default:"24h"`
		Interval string        `yaml:"interval" default:"1h"`
		Every    time.Duration `yaml:"every" default:"15m"`
	} `yaml:"labeler"`
	Breaker struct {
		MaxFailures uint32        `yaml:"max_failures" default:"5"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"breaker"`
	RateLimit struct {
		RPS   float64 `yaml:"rps" default:"5"`
		Burst int     `yaml:"burst" default:"10"`
	} `yaml:"ratelimit"`
}

var validate = validator.New()

// Default returns a Config populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	c.fillSlices()
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.fillSlices()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_SIGNAL_TOPIC"); v != "" {
		c.Kafka.SignalTopic = v
	}
	if v := getenv("SIGNAL_SYMBOLS"); v != "" {
		c.Signal.Symbols = strings.Split(v, ",")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

func (c *Config) fillSlices() {
	if len(c.Signal.FundingExchanges) == 0 {
		c.Signal.FundingExchanges = []string{"Binance", "OKX", "Bybit"}
	}
	if len(c.Signal.Symbols) == 0 {
		c.Signal.Symbols = []string{c.Signal.DefaultSymbol}
	}
}
