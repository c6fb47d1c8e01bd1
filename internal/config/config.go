package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Karat"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	// StorageDriver selects the backend: "postgres" or "memory".
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"karat"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"SERVER_CORS_ORIGINS" default:"*"`
	}

	Redis struct {
		// Addr empty disables the reminder queue; notifications are only logged.
		Addr     string `envconfig:"REDIS_ADDR"`
		Password string `envconfig:"REDIS_PASSWORD"`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	}

	Ledger struct {
		LowStockThreshold decimal.Decimal `envconfig:"LEDGER_LOW_STOCK_THRESHOLD" default:"10"`
		MaxSettleAttempts int             `envconfig:"LEDGER_MAX_SETTLE_ATTEMPTS" default:"5"`
		SettleBackoff     time.Duration   `envconfig:"LEDGER_SETTLE_BACKOFF" default:"5ms"`
		Timezone          string          `envconfig:"LEDGER_TIMEZONE" default:"Asia/Kolkata"`
		GoldRate          decimal.Decimal `envconfig:"LEDGER_GOLD_RATE" default:"0"`
		SilverRate        decimal.Decimal `envconfig:"LEDGER_SILVER_RATE" default:"0"`
	}

	Auth struct {
		// JWTSecret empty trusts the X-Employee header instead of a bearer token.
		JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// Location is the business timezone in which ledger days start and end.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Ledger.Timezone, err)
	}

	return loc, nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.StorageDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.Ledger.LowStockThreshold.IsNegative() {
		return nil, fmt.Errorf("low stock threshold must not be negative")
	}

	return &cfg, nil
}
