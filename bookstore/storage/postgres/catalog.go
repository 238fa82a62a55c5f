package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/bookbot/bookstore/domain"
)

type itemRow struct {
	ID         int64     `db:"id"`
	Title      string    `db:"title"`
	Language   string    `db:"language"`
	ContentRef string    `db:"content_ref"`
	CoverRef   string    `db:"cover_ref"`
	CreatedAt  time.Time `db:"created_at"`
}

type priceRow struct {
	ItemID   int64  `db:"item_id"`
	Currency string `db:"currency"`
	Amount   int64  `db:"amount"`
}

const itemColumns = `id, title, language, content_ref, cover_ref, created_at`

// CreateItem inserts the item and its prices in one transaction.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		row := tx.QueryRowxContext(ctx,
			`INSERT INTO items (title, language, content_ref, cover_ref, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			item.Title, string(item.Language), item.ContentRef, item.CoverRef, utc(item.CreatedAt),
		)
		if err := row.Scan(&item.ID, &item.CreatedAt); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		for i, p := range item.Prices {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO item_prices (item_id, position, currency, amount) VALUES ($1, $2, $3, $4)`,
				item.ID, i, p.Currency, p.Amount,
			); err != nil {
				if isUniqueViolation(err) {
					return domain.Invalid("price", "currency %s given twice", p.Currency)
				}
				return fmt.Errorf("insert price: %w", err)
			}
		}
		return nil
	})
}

// GetItem loads one item with its prices.
func (s *Store) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	items, err := s.attachPrices(ctx, []itemRow{row})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// FindByTitle matches whole titles case-insensitively.
func (s *Store) FindByTitle(ctx context.Context, title string) ([]domain.Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE lower(title) = lower($1) ORDER BY lower(title), id`,
		strings.TrimSpace(title))
}

// SearchTitle matches title fragments case-insensitively.
func (s *Store) SearchTitle(ctx context.Context, fragment string) ([]domain.Item, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, nil
	}
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE title ILIKE '%' || $1 || '%' ESCAPE '\' ORDER BY lower(title), id`,
		escapeLike(fragment))
}

// ListByLanguage returns the items of one locale.
func (s *Store) ListByLanguage(ctx context.Context, lang domain.Language) ([]domain.Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE language = $1 ORDER BY lower(title), id`,
		string(lang))
}

// SetContent attaches deliverable content.
func (s *Store) SetContent(ctx context.Context, id int64, ref string) error {
	return s.updateItem(ctx, `UPDATE items SET content_ref = $2 WHERE id = $1`, id, ref)
}

// SetCover attaches a preview image.
func (s *Store) SetCover(ctx context.Context, id int64, ref string) error {
	return s.updateItem(ctx, `UPDATE items SET cover_ref = $2 WHERE id = $1`, id, ref)
}

func (s *Store) updateItem(ctx context.Context, query string, id int64, ref string) error {
	res, err := s.db.ExecContext(ctx, query, id, ref)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return s.attachPrices(ctx, rows)
}

func (s *Store) attachPrices(ctx context.Context, rows []itemRow) ([]domain.Item, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var prices []priceRow
	if err := s.db.SelectContext(ctx, &prices,
		`SELECT item_id, currency, amount FROM item_prices WHERE item_id = ANY($1) ORDER BY item_id, position`,
		pq.Array(ids),
	); err != nil {
		return nil, fmt.Errorf("select prices: %w", err)
	}
	byItem := make(map[int64]domain.Prices, len(rows))
	for _, p := range prices {
		byItem[p.ItemID] = append(byItem[p.ItemID], domain.Price{Currency: strings.TrimSpace(p.Currency), Amount: p.Amount})
	}
	out := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Item{
			ID:         r.ID,
			Title:      r.Title,
			Language:   domain.Language(r.Language),
			Prices:     byItem[r.ID],
			ContentRef: r.ContentRef,
			CoverRef:   r.CoverRef,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
