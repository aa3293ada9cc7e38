package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/pkg/testutil"
)

func newSale(t *testing.T, ids domain.IDGenerator, number, branchID string) *domain.Sale {
	t.Helper()
	price := domain.MustMoney("10.00")
	res := domain.CreateSale(
		domain.Providers{IDs: ids, Clock: testutil.NewFixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))},
		domain.NewSaleParams{
			Number:   number,
			Customer: &domain.CustomerRef{ID: "c-1", Name: "Ana"},
			Branch:   &domain.BranchRef{ID: branchID, Name: "Branch " + branchID},
			Items: []domain.SaleItemInput{{
				Product:   &domain.ProductRef{ID: "p-1", Name: "Beer"},
				Quantity:  1,
				UnitPrice: &price,
			}},
		},
	)
	require.True(t, res.IsValid())
	return res.Value()
}

func TestAddIfNotExists(t *testing.T) {
	ctx := context.Background()
	repo := NewSaleRepository()
	ids := &testutil.SequenceIDs{}

	first := newSale(t, ids, "S-1", "b-1")
	created, persisted, err := repo.AddIfNotExists(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Same(t, first, persisted)

	duplicate := newSale(t, ids, "S-1", "b-1")
	created, persisted, err = repo.AddIfNotExists(ctx, duplicate)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, persisted)

	otherBranch := newSale(t, ids, "S-1", "b-2")
	created, _, err = repo.AddIfNotExists(ctx, otherBranch)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, repo.Count())
}

func TestAddIfNotExistsConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewSaleRepository()
	ids := &testutil.SequenceIDs{}

	const workers = 32
	candidates := make([]*domain.Sale, workers)
	for i := range candidates {
		candidates[i] = newSale(t, ids, "S-RACE", "b-1")
	}

	var inserted atomic.Int32
	persisted := make([]*domain.Sale, workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range candidates {
		g.Go(func() error {
			created, stored, err := repo.AddIfNotExists(gctx, candidates[i])
			if err != nil {
				return err
			}
			if created {
				inserted.Add(1)
			}
			persisted[i] = stored
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), inserted.Load())
	assert.Equal(t, 1, repo.Count())
	for _, stored := range persisted {
		assert.Same(t, persisted[0], stored)
	}
}

func TestUpdateReindexesKey(t *testing.T) {
	ctx := context.Background()
	repo := NewSaleRepository()

	original := newSale(t, testutil.FixedIDs("sale-1"), "S-1", "b-1")
	_, _, err := repo.AddIfNotExists(ctx, original)
	require.NoError(t, err)

	renumbered := newSale(t, testutil.FixedIDs("sale-1"), "S-2", "b-1")
	require.NoError(t, repo.Update(ctx, renumbered))

	old, err := repo.GetByNumberAndBranch(ctx, "S-1", "b-1")
	require.NoError(t, err)
	assert.Nil(t, old)

	current, err := repo.GetByNumberAndBranch(ctx, "S-2", "b-1")
	require.NoError(t, err)
	assert.Same(t, renumbered, current)

	byID, err := repo.GetByID(ctx, "sale-1")
	require.NoError(t, err)
	assert.Same(t, renumbered, byID)
	assert.Equal(t, 1, repo.Count())
}

func TestUpdateRefusesKeyHeldByAnotherSale(t *testing.T) {
	ctx := context.Background()
	repo := NewSaleRepository()

	first := newSale(t, testutil.FixedIDs("sale-1"), "S-1", "b-1")
	second := newSale(t, testutil.FixedIDs("sale-2"), "S-2", "b-1")
	for _, sale := range []*domain.Sale{first, second} {
		_, _, err := repo.AddIfNotExists(ctx, sale)
		require.NoError(t, err)
	}

	clash := newSale(t, testutil.FixedIDs("sale-2"), "S-1", "b-1")
	err := repo.Update(ctx, clash)
	assert.ErrorIs(t, err, ErrKeyConflict)

	holder, err := repo.GetByNumberAndBranch(ctx, "S-1", "b-1")
	require.NoError(t, err)
	assert.Same(t, first, holder)

	unchanged, err := repo.GetByNumberAndBranch(ctx, "S-2", "b-1")
	require.NoError(t, err)
	assert.Same(t, second, unchanged)

	byID, err := repo.GetByID(ctx, "sale-2")
	require.NoError(t, err)
	assert.Same(t, second, byID)
}

func TestDeleteRemovesBothIndexes(t *testing.T) {
	ctx := context.Background()
	repo := NewSaleRepository()
	sale := newSale(t, &testutil.SequenceIDs{}, "S-1", "b-1")
	_, _, err := repo.AddIfNotExists(ctx, sale)
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, sale.ID())
	require.NoError(t, err)
	assert.True(t, deleted)

	byKey, err := repo.GetByNumberAndBranch(ctx, "S-1", "b-1")
	require.NoError(t, err)
	assert.Nil(t, byKey)

	deleted, err = repo.Delete(ctx, sale.ID())
	require.NoError(t, err)
	assert.False(t, deleted)

	again := newSale(t, &testutil.SequenceIDs{Prefix: "again"}, "S-1", "b-1")
	created, _, err := repo.AddIfNotExists(ctx, again)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestListPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewSaleRepository()
	ids := &testutil.SequenceIDs{}
	for i := 1; i <= 5; i++ {
		_, _, err := repo.AddIfNotExists(ctx, newSale(t, ids, fmt.Sprintf("S-%d", i), "b-1"))
		require.NoError(t, err)
	}

	page, total, err := repo.List(ctx, domain.NewPagination(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "S-3", page[0].Number())
	assert.Equal(t, "S-4", page[1].Number())

	beyond, total, err := repo.List(ctx, domain.NewPagination(9, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, beyond)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSaleRepository().GetByID(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
