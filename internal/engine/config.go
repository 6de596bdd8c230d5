// Package engine runs the detection engine: lifecycle state machine plus
// the periodic task scheduler that drives detectors, aggregation, retention
// and reporting.
package engine

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ExchangeConfig describes one REST price-snapshot source.
type ExchangeConfig struct {
	Name     string        `yaml:"name" validate:"required"`
	URL      string        `yaml:"url" validate:"required,url"`
	Interval time.Duration `yaml:"interval" default:"30s" validate:"gt=0"`
	// RateLimit caps requests per second to this host. Zero means uncapped.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
}

// Config is the engine options object. Every field has a workable default;
// an empty file yields a config that runs with simulated sources only.
type Config struct {
	Exchanges []ExchangeConfig `yaml:"exchanges" validate:"dive"`
	Pairs     []string         `yaml:"pairs" default:"[\"SOL/USDC\",\"SOL/USDT\",\"RAY/USDC\"]" validate:"min=1"`

	Thresholds struct {
		// ArbitragePercent is the minimum cross-exchange spread, in percent.
		ArbitragePercent float64 `yaml:"arbitrage_percent" default:"0.5" validate:"gt=0"`
		// SandwichImpact is the minimum estimated price impact fraction.
		SandwichImpact float64 `yaml:"sandwich_impact" default:"0.005" validate:"gt=0"`
	} `yaml:"thresholds"`

	Intervals struct {
		Arbitrage       time.Duration `yaml:"arbitrage" default:"1s" validate:"gt=0"`
		Sandwich        time.Duration `yaml:"sandwich" default:"500ms" validate:"gt=0"`
		Liquidation     time.Duration `yaml:"liquidation" default:"30s" validate:"gt=0"`
		CopyTrading     time.Duration `yaml:"copy_trading" default:"10s" validate:"gt=0"`
		Revenue         time.Duration `yaml:"revenue" default:"1m" validate:"gt=0"`
		MarketStructure time.Duration `yaml:"market_structure" default:"5m" validate:"gt=0"`
		Retention       time.Duration `yaml:"retention" default:"1h" validate:"gt=0"`
		Report          time.Duration `yaml:"report" default:"10m" validate:"gt=0"`
	} `yaml:"intervals"`

	Retention struct {
		MaxAge time.Duration `yaml:"max_age" default:"24h" validate:"gt=0"`
	} `yaml:"retention"`

	Solana struct {
		// WSEndpoint is the logsSubscribe endpoint. Empty disables the
		// transaction-log stream.
		WSEndpoint string `yaml:"ws_endpoint"`
		// Programs are DEX program IDs to monitor. Empty uses the built-in set.
		Programs []string `yaml:"programs"`
	} `yaml:"solana"`

	PriceStream struct {
		// URL of the aggregated price WebSocket feed. Empty disables it.
		URL string `yaml:"url"`
	} `yaml:"price_stream"`

	Storage struct {
		// PostgresDSN enables the Postgres opportunity archive when set.
		PostgresDSN string `yaml:"postgres_dsn"`
		// ClickHouseDSN enables the ClickHouse rollup archive when set.
		ClickHouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"storage"`

	Kafka struct {
		// Brokers enables the Kafka opportunity sink when non-empty.
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic" default:"mev.opportunities"`
	} `yaml:"kafka"`

	Report struct {
		OutputDir string `yaml:"output_dir" default:"output"`
	} `yaml:"report"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return c, nil
}

// LoadConfig reads and parses a YAML configuration file, applies defaults
// to unset fields and validates the result.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadConfigWithEnv loads config from YAML and overrides connection details
// with environment variables. An empty path starts from defaults.
func LoadConfigWithEnv(path string) (*Config, error) {
	var c *Config
	var err error
	if path == "" {
		c, err = DefaultConfig()
	} else {
		c, err = LoadConfig(path)
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SOLANA_WS_ENDPOINT"); v != "" {
		c.Solana.WSEndpoint = v
	}
	if v := os.Getenv("PRICE_STREAM_URL"); v != "" {
		c.PriceStream.URL = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("PAIRS"); v != "" {
		c.Pairs = strings.Split(v, ",")
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}
