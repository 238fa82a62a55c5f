package access

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage/memory"
)

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(nil))

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
	)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(actor int64) {
			defer wg.Done()
			if _, err := svc.Claim(ctx, actor); err == nil {
				mu.Lock()
				winners = append(winners, actor)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			}
		}(int64(i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	admin, err := svc.AdminID(ctx)
	require.NoError(t, err)
	assert.Equal(t, winners[0], admin)

	for i := int64(1); i <= n; i++ {
		if i == admin {
			continue
		}
		_, err := svc.Claim(ctx, i)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.ErrorIs(t, err, domain.ErrAdminAlreadySet)
		assert.ErrorIs(t, svc.Require(ctx, i), domain.ErrUnauthorized)
	}
	assert.NoError(t, svc.Require(ctx, admin))
}

func TestReassign(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(nil))

	_, err := svc.Claim(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Reassign(ctx, 2, 3)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotErrorIs(t, err, domain.ErrAdminAlreadySet)

	rec, err := svc.Reassign(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.ActorID)
	assert.True(t, svc.IsAdmin(ctx, 2))
	assert.False(t, svc.IsAdmin(ctx, 1))

	_, err = svc.Claim(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSeedDoesNotOverrideClaim(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(nil))

	require.NoError(t, svc.Seed(ctx, 10))
	require.NoError(t, svc.Seed(ctx, 20))
	id, err := svc.AdminID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
}

func TestRequireWithoutAdmin(t *testing.T) {
	svc := New(memory.New(nil))
	assert.ErrorIs(t, svc.Require(context.Background(), 1), domain.ErrUnauthorized)
}
