// Package config содержит логику чтения конфигурации маркетплейса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации маркетплейса.
type Config struct {
	RunAddress         string   `env:"RUN_ADDRESS"`
	DatabaseURI        string   `env:"DATABASE_URI"`
	PriceOracleAddress string   `env:"PRICE_ORACLE_ADDRESS"`
	PriceFeedID        string   `env:"PRICE_FEED_ID"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic         string   `env:"KAFKA_TOPIC"`
	AuthSecret         string   `env:"AUTH_SECRET"`

	TimeToLock  time.Duration `env:"TIME_TO_LOCK"`
	PriceMaxAge time.Duration `env:"PRICE_MAX_AGE"`

	NativeDecimals       int32 `env:"NATIVE_DECIMALS" envDefault:"9"`
	TokenDecimals        int32 `env:"TOKEN_DECIMALS" envDefault:"6"`
	TreasuryAccount      int64 `env:"TREASURY_ACCOUNT" envDefault:"1"`
	TokenTreasuryAccount int64 `env:"TOKEN_TREASURY_ACCOUNT" envDefault:"1"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	return parse(os.Args[0], os.Args[1:])
}

func parse(name string, args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage when empty")
	fs.StringVar(&cfg.PriceOracleAddress, "o", "", "price oracle base URL")
	fs.StringVar(&cfg.PriceFeedID, "f", "NATIVE/TOKEN", "price feed used for token payments")
	brokers := fs.String("k", "", "comma-separated Kafka brokers, events are logged when empty")
	fs.StringVar(&cfg.KafkaTopic, "t", "marketplace-events", "Kafka topic for events")
	fs.StringVar(&cfg.AuthSecret, "s", "", "auth cookie signing key")
	fs.DurationVar(&cfg.TimeToLock, "l", time.Minute, "request lock window")
	fs.DurationVar(&cfg.PriceMaxAge, "m", time.Minute, "maximum accepted price age")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	cfg.KafkaBrokers = splitList(*brokers)

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RunAddress == "" {
		c.RunAddress = "localhost:8080"
	}

	var errs []error
	if c.TimeToLock <= 0 {
		errs = append(errs, errors.New("time to lock must be positive"))
	}
	if c.PriceMaxAge <= 0 {
		errs = append(errs, errors.New("price max age must be positive"))
	}
	if c.NativeDecimals < 0 || c.TokenDecimals < 0 {
		errs = append(errs, errors.New("decimals must not be negative"))
	}
	if c.TreasuryAccount <= 0 || c.TokenTreasuryAccount <= 0 {
		errs = append(errs, errors.New("treasury accounts must be positive"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka topic is required with brokers"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
