package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage"
)

type orderRow struct {
	ID        string    `db:"id"`
	Seq       int64     `db:"seq"`
	BuyerID   int64     `db:"buyer_id"`
	ItemID    int64     `db:"item_id"`
	Status    string    `db:"status"`
	ProofRef  string    `db:"proof_ref"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r orderRow) order() domain.Order {
	return domain.Order{
		ID:        r.ID,
		Seq:       r.Seq,
		BuyerID:   r.BuyerID,
		ItemID:    r.ItemID,
		Status:    domain.OrderStatus(r.Status),
		ProofRef:  r.ProofRef,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const (
	orderInsertColumns = `id, buyer_id, item_id, status, proof_ref, created_at, updated_at`
	orderColumns       = `seq, ` + orderInsertColumns
)

// CreateOrder inserts a new order.
func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	if _, err := uuid.Parse(o.ID); err != nil {
		return fmt.Errorf("order id %q: %w", o.ID, err)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	created := utc(o.CreatedAt)
	updated := o.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	var seq int64
	err := s.db.GetContext(ctx, &seq,
		`INSERT INTO orders (`+orderInsertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING seq`,
		o.ID, o.BuyerID, o.ItemID, string(o.Status), o.ProofRef, created, utc(updated),
	)
	if isForeignKeyViolation(err) {
		return domain.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.Seq = seq
	o.CreatedAt, o.UpdatedAt = created, utc(updated)
	return nil
}

// GetOrder loads one order.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	var row orderRow
	err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	o := row.order()
	return &o, nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (s *Store) ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC, seq DESC`, buyerID)
}

// ListOpen returns non-terminal orders, oldest first.
func (s *Store) ListOpen(ctx context.Context) ([]domain.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status IN ('PENDING', 'PROOF_SUBMITTED') ORDER BY created_at, seq`)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.order())
	}
	return out, nil
}

// InTx runs fn in a transaction. Rows read through the OrderTx are locked FOR UPDATE.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.OrderTx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&orderTx{ctx: ctx, tx: tx})
	})
}

type orderTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *orderTx) OrderForUpdate(id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	var row orderRow
	err := t.tx.GetContext(t.ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	o := row.order()
	return &o, nil
}

func (t *orderTx) LatestOpenForBuyer(buyerID int64) (*domain.Order, error) {
	var row orderRow
	err := t.tx.GetContext(t.ctx, &row,
		`SELECT `+orderColumns+` FROM orders
		 WHERE buyer_id = $1 AND status IN ('PENDING', 'PROOF_SUBMITTED')
		 ORDER BY created_at DESC, seq DESC
		 LIMIT 1
		 FOR UPDATE`, buyerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoPendingOrder
	}
	if err != nil {
		return nil, fmt.Errorf("lock latest order: %w", err)
	}
	o := row.order()
	return &o, nil
}

func (t *orderTx) SaveOrder(o *domain.Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE orders SET status = $2, proof_ref = $3, updated_at = $4 WHERE id = $1`,
		o.ID, string(o.Status), o.ProofRef, utc(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (t *orderTx) IncrementPurchases(userID int64) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO users (id, purchase_count) VALUES ($1, 1)
		 ON CONFLICT (id) DO UPDATE SET purchase_count = users.purchase_count + 1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("increment purchases: %w", err)
	}
	return nil
}
