package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage"
	"github.com/m3rciful/bookbot/core/bootstrap"
	"github.com/m3rciful/bookbot/core/logger"
)

const seedComponent = "db.seed"

// seedAdmin installs the configured administrator when the role is still unclaimed.
func (a *App) seedAdmin(actorID int64) bootstrap.Seeder[storage.Store] {
	if actorID == 0 {
		return nil
	}
	return bootstrap.SeederFunc[storage.Store](func(ctx context.Context, _ storage.Store) error {
		if err := a.access.Seed(ctx, actorID); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info(ctx, seedComponent, "admin.seeded", slog.Int64("actor_id", actorID))
		return nil
	})
}

// seedPaymentAddress stores address unless an administrator already configured one.
func seedPaymentAddress(address string) bootstrap.Seeder[storage.Store] {
	if address == "" {
		return nil
	}
	return bootstrap.SeederFunc[storage.Store](func(ctx context.Context, store storage.Store) error {
		current, ok, err := store.GetSetting(ctx, domain.SettingPaymentAddress)
		if err != nil {
			return fmt.Errorf("read payment address: %w", err)
		}
		if ok && current != "" {
			logger.Debug(ctx, seedComponent, "payment.kept")
			return nil
		}
		if err := store.SetSetting(ctx, domain.SettingPaymentAddress, address); err != nil {
			return fmt.Errorf("seed payment address: %w", err)
		}
		logger.Info(ctx, seedComponent, "payment.seeded")
		return nil
	})
}
