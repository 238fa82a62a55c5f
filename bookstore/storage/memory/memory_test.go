package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage"
)

func seedItem(t *testing.T, s *Store, title string) domain.Item {
	t.Helper()
	it := domain.Item{
		Title:      title,
		Language:   domain.LanguagePrimary,
		Prices:     domain.Prices{{Currency: "INR", Amount: 19900}},
		ContentRef: "doc-" + title,
	}
	require.NoError(t, s.CreateItem(context.Background(), &it))
	return it
}

func TestCatalogLookups(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	atlas := seedItem(t, s, "Atlas")
	seedItem(t, s, "Atlas of Birds")
	seedItem(t, s, "Zen")

	got, err := s.GetItem(ctx, atlas.ID)
	require.NoError(t, err)
	assert.Equal(t, "Atlas", got.Title)

	exact, err := s.FindByTitle(ctx, "atlas")
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, atlas.ID, exact[0].ID)

	partial, err := s.SearchTitle(ctx, "ATL")
	require.NoError(t, err)
	assert.Len(t, partial, 2)

	_, err = s.GetItem(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestOrdersRejectUnknownStatus(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	it := seedItem(t, s, "Atlas")

	bad := domain.Order{ID: "o-1", BuyerID: 5, ItemID: it.ID, Status: "SHIPPED"}
	require.Error(t, s.CreateOrder(ctx, &bad))
	_, err := s.GetOrder(ctx, "o-1")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	order := domain.Order{ID: "o-1", BuyerID: 5, ItemID: it.ID, Status: domain.StatusPending}
	require.NoError(t, s.CreateOrder(ctx, &order))
	err = s.InTx(ctx, func(tx storage.OrderTx) error {
		o, err := tx.OrderForUpdate("o-1")
		require.NoError(t, err)
		o.Status = "SHIPPED"
		return tx.SaveOrder(o)
	})
	require.Error(t, err)
	stored, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	it := seedItem(t, s, "Atlas")
	order := domain.Order{ID: "o-1", BuyerID: 5, ItemID: it.ID, Status: domain.StatusPending}
	require.NoError(t, s.CreateOrder(ctx, &order))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.OrderTx) error {
		o, err := tx.OrderForUpdate("o-1")
		require.NoError(t, err)
		require.NoError(t, o.Decide(domain.DecisionApprove, time.Now()))
		require.NoError(t, tx.SaveOrder(o))
		require.NoError(t, tx.IncrementPurchases(5))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	_, err = s.GetUser(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLatestOpenForBuyerUsesCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	it := seedItem(t, s, "Atlas")
	base := time.Unix(1000, 0)
	for i, id := range []string{"old", "new", "other"} {
		buyer := int64(5)
		if id == "other" {
			buyer = 6
		}
		o := domain.Order{ID: id, BuyerID: buyer, ItemID: it.ID, Status: domain.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateOrder(ctx, &o))
	}

	var picked string
	require.NoError(t, s.InTx(ctx, func(tx storage.OrderTx) error {
		o, err := tx.LatestOpenForBuyer(5)
		if err != nil {
			return err
		}
		picked = o.ID
		return nil
	}))
	assert.Equal(t, "new", picked)

	err := s.InTx(ctx, func(tx storage.OrderTx) error {
		_, err := tx.LatestOpenForBuyer(42)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNoPendingOrder)
}

func TestLatestOpenForBuyerBreaksTiesByInsertion(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	it := seedItem(t, s, "Atlas")
	at := time.Unix(1000, 0)

	ids := []string{"c", "a", "e", "b", "d"}
	for _, id := range ids {
		o := domain.Order{ID: id, BuyerID: 5, ItemID: it.ID, Status: domain.StatusPending, CreatedAt: at}
		require.NoError(t, s.CreateOrder(ctx, &o))
	}

	for i := 0; i < 20; i++ {
		var picked string
		require.NoError(t, s.InTx(ctx, func(tx storage.OrderTx) error {
			o, err := tx.LatestOpenForBuyer(5)
			if err != nil {
				return err
			}
			picked = o.ID
			return nil
		}))
		require.Equal(t, "d", picked)
	}

	open, err := s.ListOpen(ctx)
	require.NoError(t, err)
	got := make([]string, 0, len(open))
	for _, o := range open {
		got = append(got, o.ID)
	}
	assert.Equal(t, ids, got)
}

func TestCompareAndSwapAdmin(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	rec, err := s.CurrentAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, rec.Set())

	rec, err = s.CompareAndSwapAdmin(ctx, 0, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.ActorID)
	assert.Equal(t, int64(1), rec.Version)

	_, err = s.CompareAndSwapAdmin(ctx, 0, 12)
	assert.ErrorIs(t, err, domain.ErrConflict)
}
