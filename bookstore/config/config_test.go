package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/bookbot/core/config"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAMLWithDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
storage:
  driver: Memory
shop:
  session_ttl: 10m
  default_currency: usd
metrics:
  listen: ":9100"
`)
	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Shop.SessionTTL)
	assert.Equal(t, "USD", cfg.Shop.DefaultCurrency)
	assert.Equal(t, "Hindi", cfg.Shop.PrimaryLabel)
	assert.Equal(t, "English", cfg.Shop.SecondaryLabel)
	assert.Equal(t, defaultSweepSchedule, cfg.Shop.SweepSchedule)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestEnvOverridesYAMLAndDotEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
telegram:
  token: "from-yaml"
database:
  name: shop
`)
	dotenv := writeFile(t, ".env", "SHOP_PAYMENT_ADDRESS=upi://from-dotenv\nBOT_TOKEN=from-dotenv\n")
	t.Setenv("BOT_TOKEN", "from-env")
	t.Cleanup(func() { os.Unsetenv("SHOP_PAYMENT_ADDRESS") })

	cfg, err := Load(path, dotenv)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "upi://from-dotenv", cfg.Shop.PaymentAddress)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
}

func TestNormalizeRejects(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Telegram.Token = "t"
		cfg.Storage.Driver = DriverMemory
		return cfg
	}

	cases := map[string]func(*Config){
		"driver":   func(c *Config) { c.Storage.Driver = "sqlite" },
		"db name":  func(c *Config) { c.Storage.Driver = DriverPostgres },
		"labels":   func(c *Config) { c.Shop.PrimaryLabel, c.Shop.SecondaryLabel = "Same", "same" },
		"ttl":      func(c *Config) { c.Shop.SessionTTL = -time.Second },
		"schedule": func(c *Config) { c.Shop.SweepSchedule = "every minute" },
		"no token": func(c *Config) { c.Telegram.Token = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, Normalize(cfg))
		})
	}
	assert.Error(t, Normalize(nil))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}
