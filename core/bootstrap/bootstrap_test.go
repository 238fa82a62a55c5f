package bootstrap

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/bookbot/core/config"
	coredatabase "github.com/m3rciful/bookbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSkipDatabase(t *testing.T) {
	connected := false
	res, err := Run(Options{
		Config:       &coreconfig.Config{},
		SkipDatabase: true,
		LoggerInit:   noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil || connected {
		t.Fatalf("expected no database, connected=%v", connected)
	}
}

func TestRunRequiresMigrationSource(t *testing.T) {
	_, err := Run(Options{Config: &coreconfig.Config{}, LoggerInit: noLogger})
	if err == nil {
		t.Fatalf("expected error without migrations")
	}
}

func TestRunNilConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestRunConnectFailureSkipsMigrations(t *testing.T) {
	migrated := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Migrations: fstest.MapFS{},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			return nil, errors.New("refused")
		},
		Migrate: func(coredatabase.Config) error {
			migrated = true
			return nil
		},
	})
	if err == nil {
		t.Fatalf("expected connect error")
	}
	if migrated {
		t.Fatalf("migrations ran after failed connect")
	}
}

func TestRunSeedersStopsAtFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	err := RunSeeders(context.Background(), "store",
		SeederFunc[string](func(_ context.Context, s string) error {
			calls = append(calls, "a:"+s)
			return nil
		}),
		nil,
		SeederFunc[string](func(context.Context, string) error {
			calls = append(calls, "b")
			return boom
		}),
		SeederFunc[string](func(context.Context, string) error {
			calls = append(calls, "c")
			return nil
		}),
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(calls) != 2 || calls[0] != "a:store" || calls[1] != "b" {
		t.Fatalf("calls = %v", calls)
	}
}
