package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/bookbot/core/config"
	coredatabase "github.com/m3rciful/bookbot/core/database"
)

const (
	// DriverPostgres keeps the catalog and ledger in PostgreSQL.
	DriverPostgres = "postgres"
	// DriverMemory keeps everything in process memory; state is lost on restart.
	DriverMemory = "memory"
)

const (
	defaultSessionTTL    = 30 * time.Minute
	defaultSweepSchedule = "@every 1m"
	defaultCurrency      = "INR"
)

// StorageConfig selects the store implementation.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// ShopConfig holds bookstore behaviour settings.
type ShopConfig struct {
	PrimaryLabel    string `yaml:"primary_label" envconfig:"SHOP_PRIMARY_LABEL"`
	SecondaryLabel  string `yaml:"secondary_label" envconfig:"SHOP_SECONDARY_LABEL"`
	DefaultCurrency string `yaml:"default_currency" envconfig:"SHOP_DEFAULT_CURRENCY"`
	// PaymentAddress seeds the payment setting when none is stored yet.
	PaymentAddress string        `yaml:"payment_address" envconfig:"SHOP_PAYMENT_ADDRESS"`
	SessionTTL     time.Duration `yaml:"session_ttl" envconfig:"SHOP_SESSION_TTL"`
	SweepSchedule  string        `yaml:"sweep_schedule" envconfig:"SHOP_SWEEP_SCHEDULE"`
}

// MetricsConfig controls the Prometheus listener. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full bookstore configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Shop     ShopConfig          `yaml:"shop"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the embedded framework configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads an optional .env file, then the YAML file at path, then environment overrides.
func Load(path string, dotenv ...string) (*Config, error) {
	if err := loadDotEnv(dotenv...); err != nil {
		return nil, err
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads the given files, or ./.env when none are named. Missing files are ignored
// and variables already present in the environment win.
func loadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Normalize validates the configuration and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = DriverPostgres
	}
	switch driver {
	case DriverPostgres:
		cfg.Database.Normalize()
		if strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.name is required when storage.driver is 'postgres'")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	shop := &cfg.Shop
	if strings.TrimSpace(shop.PrimaryLabel) == "" {
		shop.PrimaryLabel = "Hindi"
	}
	if strings.TrimSpace(shop.SecondaryLabel) == "" {
		shop.SecondaryLabel = "English"
	}
	if strings.EqualFold(strings.TrimSpace(shop.PrimaryLabel), strings.TrimSpace(shop.SecondaryLabel)) {
		return fmt.Errorf("shop.primary_label and shop.secondary_label must differ")
	}
	shop.DefaultCurrency = strings.ToUpper(strings.TrimSpace(shop.DefaultCurrency))
	if shop.DefaultCurrency == "" {
		shop.DefaultCurrency = defaultCurrency
	}
	shop.PaymentAddress = strings.TrimSpace(shop.PaymentAddress)
	if shop.SessionTTL < 0 {
		return fmt.Errorf("shop.session_ttl must be >= 0")
	}
	if shop.SessionTTL == 0 {
		shop.SessionTTL = defaultSessionTTL
	}
	shop.SweepSchedule = strings.TrimSpace(shop.SweepSchedule)
	if shop.SweepSchedule == "" {
		shop.SweepSchedule = defaultSweepSchedule
	}
	if _, err := cron.ParseStandard(shop.SweepSchedule); err != nil {
		return fmt.Errorf("invalid shop.sweep_schedule %q: %w", shop.SweepSchedule, err)
	}

	cfg.Metrics.Listen = strings.TrimSpace(cfg.Metrics.Listen)
	return nil
}
