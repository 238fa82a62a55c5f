package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookbot/bookstore/config"
	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage/memory"
	tg "github.com/m3rciful/bookbot/core/telegram"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Token = "token"
	cfg.Telegram.AdminID = 7
	cfg.Storage.Driver = config.DriverMemory
	cfg.Shop.PaymentAddress = "upi://seeded"
	require.NoError(t, config.Normalize(cfg))
	return cfg
}

func TestNewSeedsAdminAndPayment(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)

	a, err := New(ctx, testConfig(t), store)
	require.NoError(t, err)
	assert.True(t, a.access.IsAdmin(ctx, 7))

	addr, ok, err := store.GetSetting(ctx, domain.SettingPaymentAddress)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "upi://seeded", addr)
}

func TestSeedsKeepStoredValues(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	require.NoError(t, store.SetSetting(ctx, domain.SettingPaymentAddress, "upi://chosen"))
	rec, err := store.CompareAndSwapAdmin(ctx, 0, 99)
	require.NoError(t, err)
	require.Equal(t, int64(99), rec.ActorID)

	a, err := New(ctx, testConfig(t), store)
	require.NoError(t, err)
	assert.True(t, a.access.IsAdmin(ctx, 99))
	assert.False(t, a.access.IsAdmin(ctx, 7))

	addr, _, err := store.GetSetting(ctx, domain.SettingPaymentAddress)
	require.NoError(t, err)
	assert.Equal(t, "upi://chosen", addr)
}

func TestNewRequiresConfigAndStore(t *testing.T) {
	_, err := New(context.Background(), nil, memory.New(nil))
	assert.Error(t, err)
	_, err = New(context.Background(), testConfig(t), nil)
	assert.Error(t, err)
}

func TestTelegramRunOptions(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), memory.New(nil))
	require.NoError(t, err)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.True(t, opts.Synchronous)
	require.GreaterOrEqual(t, len(opts.Middlewares), 2)
	tail := opts.Middlewares[len(opts.Middlewares)-2:]
	assert.Equal(t, "serial", tail[0].Name)
	assert.Equal(t, "instrument", tail[1].Name)
	assert.NotNil(t, opts.DispatcherOptions.Metrics)
	assert.NotEmpty(t, opts.Routes)

	_, _, ok := opts.Registry.LookupCommand("/buy")
	assert.True(t, ok)
	key, _, ok := opts.Registry.LookupCommand("add")
	assert.True(t, ok)
	assert.Equal(t, "/addbook", key)
	_, ok = opts.Registry.GetCallback("approve")
	assert.True(t, ok)
}

func TestStartStopLifecycle(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), memory.New(nil))
	require.NoError(t, err)

	require.NoError(t, a.start(context.Background(), tg.Runtime{}))
	a.sweep()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.stop(ctx, tg.Runtime{}))
	assert.False(t, a.queue.Submit(1, func() {}))
}
