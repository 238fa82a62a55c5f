package catalog

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage/memory"
)

func newCatalog(t *testing.T, titles map[string]bool) (*Service, map[string]int64) {
	t.Helper()
	store := memory.New(nil)
	ids := make(map[string]int64, len(titles))
	for title, withContent := range titles {
		it := domain.Item{
			Title:    title,
			Language: domain.LanguagePrimary,
			Prices:   domain.Prices{{Currency: "INR", Amount: 100}},
		}
		if withContent {
			it.ContentRef = "doc"
		}
		require.NoError(t, store.CreateItem(context.Background(), &it))
		ids[title] = it.ID
	}
	return New(store), ids
}

func TestResolvePrefersIDThenExactTitle(t *testing.T) {
	svc, ids := newCatalog(t, map[string]bool{"Atlas": true, "Atlas Deluxe": true})
	ctx := context.Background()

	res, err := svc.Resolve(ctx, strconv.FormatInt(ids["Atlas Deluxe"], 10))
	require.NoError(t, err)
	require.Equal(t, Exact, res.Match)
	assert.Equal(t, "Atlas Deluxe", res.Item.Title)

	res, err = svc.Resolve(ctx, "atlas")
	require.NoError(t, err)
	require.Equal(t, Exact, res.Match)
	assert.Equal(t, "Atlas", res.Item.Title)
}

func TestResolvePartial(t *testing.T) {
	svc, _ := newCatalog(t, map[string]bool{"Atlas of Birds": true, "Atlas of Fish": true, "Zen Garden": true})
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "zen")
	require.NoError(t, err)
	require.Equal(t, Exact, res.Match)
	assert.Equal(t, "Zen Garden", res.Item.Title)

	res, err = svc.Resolve(ctx, "atlas of")
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, res.Match)
	assert.Len(t, res.Candidates, 2)

	_, err = svc.Lookup(ctx, "atlas of")
	var amb *domain.AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Len(t, amb.Candidates, 2)

	res, err = svc.Resolve(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Match)
	assert.False(t, res.Unavailable)
	_, err = svc.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.NotErrorIs(t, err, domain.ErrNotPurchasable)
}

func TestResolveHidesItemsWithoutContent(t *testing.T) {
	svc, ids := newCatalog(t, map[string]bool{"Draft": false, "Drafting Basics": true})
	ctx := context.Background()

	_, err := svc.Lookup(ctx, strconv.FormatInt(ids["Draft"], 10))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.ErrorIs(t, err, domain.ErrNotPurchasable)

	item, err := svc.Lookup(ctx, "draft")
	require.NoError(t, err)
	assert.Equal(t, "Drafting Basics", item.Title)

	items, err := svc.Listing(ctx, domain.LanguagePrimary)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Drafting Basics", items[0].Title)
}

func TestResolveReportsItemsWithoutContent(t *testing.T) {
	svc, ids := newCatalog(t, map[string]bool{"Draft": false, "Atlas": true})
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "#"+strconv.FormatInt(ids["Draft"], 10))
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Match)
	assert.True(t, res.Unavailable)

	_, err = svc.Lookup(ctx, "DRAFT")
	assert.ErrorIs(t, err, domain.ErrNotPurchasable)

	_, err = svc.Lookup(ctx, "dra")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.NotErrorIs(t, err, domain.ErrNotPurchasable)

	_, err = svc.Lookup(ctx, "9999")
	assert.NotErrorIs(t, err, domain.ErrNotPurchasable)
}
