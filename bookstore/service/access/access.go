// Package access owns the administrator identity: bootstrap claim, reassignment and checks.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/metrics"
	"github.com/m3rciful/bookbot/bookstore/storage"
	"github.com/m3rciful/bookbot/core/logger"
)

const component = "service.access"

// Service guards the versioned administrator record. mu serializes claims inside the process;
// the store's compare-and-swap settles races between processes.
type Service struct {
	store storage.Admins
	mu    sync.Mutex
}

// New constructs the access service.
func New(store storage.Admins) *Service {
	return &Service{store: store}
}

// AdminID returns the current administrator or 0.
func (s *Service) AdminID(ctx context.Context) (int64, error) {
	rec, err := s.store.CurrentAdmin(ctx)
	if err != nil {
		return 0, fmt.Errorf("load admin: %w", err)
	}
	return rec.ActorID, nil
}

// IsAdmin reports whether actorID is the administrator. Lookup errors read as false.
func (s *Service) IsAdmin(ctx context.Context, actorID int64) bool {
	id, err := s.AdminID(ctx)
	return err == nil && id != 0 && id == actorID
}

// Require returns domain.ErrUnauthorized unless actorID is the administrator.
func (s *Service) Require(ctx context.Context, actorID int64) error {
	id, err := s.AdminID(ctx)
	if err != nil {
		return err
	}
	if id == 0 || id != actorID {
		logger.Warn(ctx, component, "access.denied",
			slog.Int64("actor_id", actorID),
		)
		return domain.ErrUnauthorized
	}
	return nil
}

// Claim makes actorID the administrator when none is set. Only one of several concurrent
// claims wins; the rest get domain.ErrAdminAlreadySet, which matches domain.ErrUnauthorized.
// A claim by the sitting administrator is a no-op success.
func (s *Service) Claim(ctx context.Context, actorID int64) (domain.AdminRecord, error) {
	if actorID == 0 {
		return domain.AdminRecord{}, domain.Invalid("actor", "actor id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.CurrentAdmin(ctx)
	if err != nil {
		return domain.AdminRecord{}, fmt.Errorf("load admin: %w", err)
	}
	if rec.Set() {
		if rec.ActorID == actorID {
			return rec, nil
		}
		metrics.RecordClaim("rejected")
		logger.Warn(ctx, component, "admin.claim",
			slog.String("status", "fail"),
			slog.Int64("actor_id", actorID),
			slog.String("err_code", domain.ErrAdminAlreadySet.Code()),
		)
		return rec, domain.ErrAdminAlreadySet
	}

	next, err := s.store.CompareAndSwapAdmin(ctx, rec.Version, actorID)
	if errors.Is(err, domain.ErrConflict) {
		metrics.RecordClaim("conflict")
		logger.Warn(ctx, component, "admin.claim",
			slog.String("status", "fail"),
			slog.Int64("actor_id", actorID),
			slog.String("err_code", domain.ErrConflict.Code()),
		)
		if next.ActorID == actorID {
			return next, nil
		}
		return next, domain.ErrAdminAlreadySet
	}
	if err != nil {
		return domain.AdminRecord{}, fmt.Errorf("claim admin: %w", err)
	}
	metrics.RecordClaim("ok")
	logger.Info(ctx, component, "admin.claim",
		slog.String("status", "ok"),
		slog.Int64("actor_id", actorID),
		slog.Int64("version", next.Version),
	)
	return next, nil
}

// Reassign hands the role from the current administrator to newAdmin.
func (s *Service) Reassign(ctx context.Context, actorID, newAdmin int64) (domain.AdminRecord, error) {
	if newAdmin == 0 {
		return domain.AdminRecord{}, domain.Invalid("actor", "new administrator id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.CurrentAdmin(ctx)
	if err != nil {
		return domain.AdminRecord{}, fmt.Errorf("load admin: %w", err)
	}
	if !rec.Set() || rec.ActorID != actorID {
		metrics.RecordClaim("rejected")
		return rec, domain.ErrUnauthorized
	}
	next, err := s.store.CompareAndSwapAdmin(ctx, rec.Version, newAdmin)
	if errors.Is(err, domain.ErrConflict) {
		metrics.RecordClaim("conflict")
		return next, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.AdminRecord{}, fmt.Errorf("reassign admin: %w", err)
	}
	metrics.RecordClaim("reassigned")
	logger.Info(ctx, component, "admin.reassign",
		slog.String("status", "ok"),
		slog.Int64("actor_id", actorID),
		slog.Int64("new_admin", newAdmin),
		slog.Int64("version", next.Version),
	)
	return next, nil
}

// Seed installs a configured administrator when none is stored yet.
func (s *Service) Seed(ctx context.Context, actorID int64) error {
	if actorID == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.CurrentAdmin(ctx)
	if err != nil {
		return fmt.Errorf("load admin: %w", err)
	}
	if rec.Set() {
		return nil
	}
	if _, err := s.store.CompareAndSwapAdmin(ctx, rec.Version, actorID); err != nil && !errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info(ctx, component, "admin.seed",
		slog.String("status", "ok"),
		slog.Int64("actor_id", actorID),
	)
	return nil
}
