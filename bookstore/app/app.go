// Package app wires the bookstore services onto the core bot runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/bookbot/bookstore/bot"
	"github.com/m3rciful/bookbot/bookstore/config"
	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/metrics"
	"github.com/m3rciful/bookbot/bookstore/service/access"
	"github.com/m3rciful/bookbot/bookstore/service/catalog"
	"github.com/m3rciful/bookbot/bookstore/service/orders"
	"github.com/m3rciful/bookbot/bookstore/service/wizard"
	"github.com/m3rciful/bookbot/bookstore/storage"
	"github.com/m3rciful/bookbot/bookstore/storage/memory"
	"github.com/m3rciful/bookbot/bookstore/storage/postgres"
	"github.com/m3rciful/bookbot/core/bootstrap"
	"github.com/m3rciful/bookbot/core/logger"
	"github.com/m3rciful/bookbot/core/state"
	tg "github.com/m3rciful/bookbot/core/telegram"
	"github.com/m3rciful/bookbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/bookbot/core/telegram/sender"
	"github.com/m3rciful/bookbot/migrations"
)

const component = "app"

// App holds the wired bookstore.
type App struct {
	cfg     *config.Config
	store   storage.Store
	access  *access.Service
	wizard  *wizard.Engine
	handler *bot.Handler
	gateway *bot.Gateway
	queue   *middleware.ActorQueue
	updates *middleware.UpdateMetrics
	sends   *tgsender.SendMetrics

	mu      sync.Mutex
	sweeper *cron.Cron
	metrics *http.Server
}

// Bootstrap initializes logging and storage, then wires the services.
func Bootstrap(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	memoryOnly := cfg.Storage.Driver == config.DriverMemory
	res, err := bootstrap.Run(bootstrap.Options{
		Config:       &cfg.Config,
		Database:     cfg.Database,
		SkipDatabase: memoryOnly,
		Migrations:   migrations.FS,
	})
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if memoryOnly {
		store = memory.New(nil)
	} else {
		store = postgres.New(res.DB)
	}

	a, err := New(context.Background(), cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// New wires the services on top of store and applies the configured seeds.
func New(ctx context.Context, cfg *config.Config, store storage.Store) (*App, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("app: config and store are required")
	}
	labels := map[domain.Language]string{
		domain.LanguagePrimary:   cfg.Shop.PrimaryLabel,
		domain.LanguageSecondary: cfg.Shop.SecondaryLabel,
	}

	a := &App{
		cfg:     cfg,
		store:   store,
		access:  access.New(store),
		gateway: bot.NewGateway(),
		queue:   middleware.NewActorQueue(),
		updates: middleware.NewUpdateMetrics(metrics.Registry, metrics.Namespace),
		sends:   tgsender.NewSendMetrics(metrics.Registry, metrics.Namespace),
	}
	a.wizard = wizard.New(wizard.Options{
		Sessions:        state.NewMemoryStore(state.WithTTL(cfg.Shop.SessionTTL)),
		Access:          a.access,
		Items:           store,
		Settings:        store,
		Gateway:         a.gateway,
		DefaultCurrency: cfg.Shop.DefaultCurrency,
		Labels:          labels,
	})
	a.handler = bot.New(bot.Options{
		Orders: orders.New(orders.Options{
			Items:    store,
			Settings: store,
			Users:    store,
			Ledger:   store,
			Access:   a.access,
			Gateway:  a.gateway,
		}),
		Wizard:  a.wizard,
		Catalog: catalog.New(store),
		Access:  a.access,
		Labels:  labels,
	})

	if err := bootstrap.RunSeeders[storage.Store](ctx, store,
		a.seedAdmin(cfg.Telegram.AdminID),
		seedPaymentAddress(cfg.Shop.PaymentAddress),
	); err != nil {
		return nil, err
	}
	return a, nil
}

// Handler exposes the event handler.
func (a *App) Handler() *bot.Handler { return a.handler }

// TelegramRunOptions builds the runtime options for the core runner.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.handler.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	mws := tg.DefaultMiddlewares(&a.cfg.Config, nil)
	mws = append(mws,
		tg.Middleware{Name: "serial", Use: middleware.SerialPerActor(a.queue)},
		tg.Middleware{Name: "instrument", Use: middleware.Instrument(a.updates)},
	)

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: mws,
		Routes:      a.handler.Routes(reg),
		Synchronous: true,
		OnStart:     a.start,
		OnStop:      a.stop,

		DispatcherOptions: tgsender.Options{Metrics: a.sends},
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	a.gateway.Bind(rt.Bot, rt.Dispatcher)

	a.mu.Lock()
	defer a.mu.Unlock()

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.Shop.SweepSchedule, a.sweep); err != nil {
		return fmt.Errorf("app: schedule sweeper: %w", err)
	}
	c.Start()
	a.sweeper = c
	logger.Info(ctx, component, "sweeper.started",
		slog.String("schedule", a.cfg.Shop.SweepSchedule),
		slog.Duration("session_ttl", a.cfg.Shop.SessionTTL),
	)

	if listen := a.cfg.Metrics.Listen; listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		a.metrics = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(context.Background(), component, "metrics.failed", slog.String("err", err.Error()))
			}
		}()
		logger.Info(ctx, component, "metrics.listening", slog.String("listen", listen))
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	a.mu.Lock()
	sweeper, srv := a.sweeper, a.metrics
	a.sweeper, a.metrics = nil, nil
	a.mu.Unlock()

	if sweeper != nil {
		select {
		case <-sweeper.Stop().Done():
		case <-ctx.Done():
		}
	}
	a.queue.Close()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) sweep() {
	ctx := logger.Background()
	if n := a.wizard.Sweep(ctx); n > 0 {
		logger.Info(ctx, component, "sweeper.run", slog.Int("expired", n))
	}
}
