package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/bookbot/bookstore/domain"
)

// GetSetting reads a single key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// SetSetting upserts a key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// AllSettings returns every key.
func (s *Store) AllSettings(ctx context.Context) (domain.Settings, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	out := make(domain.Settings, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

type userRow struct {
	ID            int64     `db:"id"`
	Username      string    `db:"username"`
	RegisteredAt  time.Time `db:"registered_at"`
	PurchaseCount int       `db:"purchase_count"`
}

func (r userRow) profile() *domain.UserProfile {
	return &domain.UserProfile{
		ID:            r.ID,
		Username:      r.Username,
		RegisteredAt:  r.RegisteredAt,
		PurchaseCount: r.PurchaseCount,
	}
}

// Register inserts the profile on first contact; later calls refresh the username only.
func (s *Store) Register(ctx context.Context, id int64, username string) (*domain.UserProfile, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`INSERT INTO users (id, username) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET username = CASE WHEN EXCLUDED.username = '' THEN users.username ELSE EXCLUDED.username END
		 RETURNING id, username, registered_at, purchase_count`,
		id, username,
	)
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return row.profile(), nil
}

// GetUser loads a profile.
func (s *Store) GetUser(ctx context.Context, id int64) (*domain.UserProfile, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, username, registered_at, purchase_count FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.profile(), nil
}

type adminRow struct {
	ActorID   int64     `db:"actor_id"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CurrentAdmin reads the singleton administrator row.
func (s *Store) CurrentAdmin(ctx context.Context) (domain.AdminRecord, error) {
	var row adminRow
	err := s.db.GetContext(ctx, &row, `SELECT actor_id, version, updated_at FROM admin_identity WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AdminRecord{}, nil
	}
	if err != nil {
		return domain.AdminRecord{}, fmt.Errorf("get admin: %w", err)
	}
	return domain.AdminRecord(row), nil
}

// CompareAndSwapAdmin bumps the version only when it still equals expected.
func (s *Store) CompareAndSwapAdmin(ctx context.Context, expected int64, actorID int64) (domain.AdminRecord, error) {
	var row adminRow
	err := s.db.GetContext(ctx, &row,
		`UPDATE admin_identity SET actor_id = $2, version = version + 1, updated_at = now()
		 WHERE id = 1 AND version = $1
		 RETURNING actor_id, version, updated_at`,
		expected, actorID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		cur, curErr := s.CurrentAdmin(ctx)
		if curErr != nil {
			return domain.AdminRecord{}, curErr
		}
		return cur, domain.ErrConflict
	}
	if err != nil {
		return domain.AdminRecord{}, fmt.Errorf("swap admin: %w", err)
	}
	return domain.AdminRecord(row), nil
}
