// Package catalog resolves item references and lists what buyers may purchase.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage"
	"github.com/m3rciful/bookbot/core/logger"
)

const component = "service.catalog"

// Match is the tag of a Resolution.
type Match int

const (
	NotFound Match = iota
	Exact
	Ambiguous
)

func (m Match) String() string {
	switch m {
	case Exact:
		return "exact"
	case Ambiguous:
		return "ambiguous"
	}
	return "not_found"
}

// Resolution is the outcome of resolving a free-form item reference.
// Unavailable marks a NotFound whose id or whole title named an item without content.
type Resolution struct {
	Match       Match
	Item        *domain.Item
	Candidates  []domain.Item
	Unavailable bool
}

// Err converts a non-exact resolution into the matching domain error.
func (r Resolution) Err(ref string) error {
	switch r.Match {
	case Exact:
		return nil
	case Ambiguous:
		return &domain.AmbiguousError{Reference: ref, Candidates: r.Candidates}
	}
	if r.Unavailable {
		return domain.ErrNotPurchasable
	}
	return domain.ErrItemNotFound
}

// Service reads the catalog on behalf of buyers.
type Service struct {
	items storage.Catalog
}

// New constructs the catalog service.
func New(items storage.Catalog) *Service {
	return &Service{items: items}
}

// Resolve looks a reference up by id, then by whole title, then by title fragment.
// Items without content are invisible to every stage; when nothing else matches and the
// id or whole title named one, the resolution is flagged Unavailable.
func (s *Service) Resolve(ctx context.Context, ref string) (Resolution, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Resolution{Match: NotFound}, nil
	}
	var hidden bool

	if id, err := strconv.ParseInt(strings.TrimPrefix(ref, "#"), 10, 64); err == nil && id > 0 {
		item, err := s.items.GetItem(ctx, id)
		switch {
		case err == nil && item.Purchasable():
			return s.found(ctx, ref, "id", item), nil
		case err == nil:
			hidden = true
		case err != nil && !errors.Is(err, domain.ErrItemNotFound):
			return Resolution{}, fmt.Errorf("get item %d: %w", id, err)
		}
	}

	exact, err := s.items.FindByTitle(ctx, ref)
	if err != nil {
		return Resolution{}, fmt.Errorf("find by title: %w", err)
	}
	hidden = hidden || len(exact) > 0
	exact = purchasable(exact)
	switch len(exact) {
	case 0:
	case 1:
		return s.found(ctx, ref, "title", &exact[0]), nil
	default:
		return s.ambiguous(ctx, ref, exact), nil
	}

	partial, err := s.items.SearchTitle(ctx, ref)
	if err != nil {
		return Resolution{}, fmt.Errorf("search title: %w", err)
	}
	partial = purchasable(partial)
	switch len(partial) {
	case 0:
		logger.Debug(ctx, component, "item.resolve",
			slog.String("status", "skip"),
			slog.String("outcome", NotFound.String()),
			slog.Bool("unavailable", hidden),
			slog.String("payload", logger.SanitizeLimit(ref, 64)),
		)
		return Resolution{Match: NotFound, Unavailable: hidden}, nil
	case 1:
		return s.found(ctx, ref, "partial", &partial[0]), nil
	}
	return s.ambiguous(ctx, ref, partial), nil
}

func (s *Service) found(ctx context.Context, ref, by string, item *domain.Item) Resolution {
	logger.Debug(ctx, component, "item.resolve",
		slog.String("status", "ok"),
		slog.String("op", by),
		slog.Int64("item_id", item.ID),
	)
	return Resolution{Match: Exact, Item: item}
}

func (s *Service) ambiguous(ctx context.Context, ref string, items []domain.Item) Resolution {
	logger.Debug(ctx, component, "item.resolve",
		slog.String("status", "skip"),
		slog.String("outcome", Ambiguous.String()),
		slog.Int("count", len(items)),
		slog.String("payload", logger.SanitizeLimit(ref, 64)),
	)
	return Resolution{Match: Ambiguous, Candidates: items}
}

// Lookup resolves a reference and converts anything but an exact match into an error.
func (s *Service) Lookup(ctx context.Context, ref string) (*domain.Item, error) {
	res, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := res.Err(ref); err != nil {
		return nil, err
	}
	return res.Item, nil
}

// Listing returns the purchasable items of one language, sorted by title.
func (s *Service) Listing(ctx context.Context, lang domain.Language) ([]domain.Item, error) {
	if !lang.Valid() {
		return nil, domain.Invalid("language", "unknown language %q", lang)
	}
	items, err := s.items.ListByLanguage(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items = purchasable(items)
	domain.SortItems(items)
	logger.Debug(ctx, component, "item.list",
		slog.String("lang", string(lang)),
		slog.Int("count", len(items)),
	)
	return items, nil
}

// Item returns any item by id, purchasable or not. Admin flows use it.
func (s *Service) Item(ctx context.Context, id int64) (*domain.Item, error) {
	return s.items.GetItem(ctx, id)
}

func purchasable(items []domain.Item) []domain.Item {
	out := items[:0:0]
	for i := range items {
		if items[i].Purchasable() {
			out = append(out, items[i])
		}
	}
	return out
}
