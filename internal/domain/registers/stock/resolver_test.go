package stock_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/storage/memory"
)

func TestResolver_CreatesNewBatchAtZero(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	r := stock.NewResolver(repo, nil)

	res, err := r.Resolve(ctx, "Buprenorphine 2mg", "bx-7", stock.Incoming{
		ExpiryDate:       "2027-06",
		CostPrice:        types.MustMoney("4.50"),
		MRP:              types.MustMoney("6.00"),
		ReceivedQuantity: 100,
		Category:         stock.CategoryOST,
		Supplier:         "Acme Pharma",
	})
	require.NoError(t, err)
	assert.True(t, res.IsNew)

	b, err := repo.GetByID(ctx, res.StockItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.CurrentStock)
	assert.Equal(t, "BX-7", b.BatchNo)
	assert.Equal(t, stock.Expiry("2027-06"), b.ExpiryDate)
	assert.Equal(t, stock.CategoryOST, b.Category)
	assert.True(t, types.MustMoney("6.00").Equal(b.MRP))
}

func TestResolver_ReturnsExistingUntouched(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	r := stock.NewResolver(repo, nil)
	existing := seedBatch(t, repo, "Buprenorphine 2mg", "BX-7", 12)

	res, err := r.Resolve(ctx, "  buprenorphine   2MG ", "bx-7", stock.Incoming{
		MRP: types.MustMoney("99.00"),
	})
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Equal(t, existing.ID, res.StockItemID)

	b, err := repo.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), b.CurrentStock)
	assert.True(t, b.MRP.IsZero())
}

func TestResolver_BlankBatchIsItsOwnIdentity(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	r := stock.NewResolver(repo, nil)
	withBatch := seedBatch(t, repo, "Diazepam 5mg", "D1", 5)

	res, err := r.Resolve(ctx, "Diazepam 5mg", "  ", stock.Incoming{})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.NotEqual(t, withBatch.ID, res.StockItemID)

	again, err := r.Resolve(ctx, "Diazepam 5mg", "", stock.Incoming{})
	require.NoError(t, err)
	assert.False(t, again.IsNew)
	assert.Equal(t, res.StockItemID, again.StockItemID)
}

func TestResolver_RequiresName(t *testing.T) {
	_, err := stock.NewResolver(memory.NewStore().Stock(), nil).
		Resolve(context.Background(), " -- ", "B1", stock.Incoming{})
	require.Error(t, err)
}

func TestResolver_ConcurrentResolveCreatesOneRow(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	r := stock.NewResolver(repo, nil)

	const workers = 20
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[id.ID]int)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve(ctx, "Olanzapine 10mg", "OZ1", stock.Incoming{})
			if err != nil {
				return
			}
			mu.Lock()
			ids[res.StockItemID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, ids, 1)
	for _, n := range ids {
		assert.Equal(t, workers, n)
	}

	all, err := repo.List(ctx, stock.ListFilter{MedicineKey: "olanzapine 10mg"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolver_Refresh(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	cache := &spyCache{}
	r := stock.NewResolver(repo, cache)

	b := stock.NewBatch("Clonazepam 0.5mg", "C1")
	b.CurrentStock = 8
	b.UnitPrice = types.MustMoney("1.00")
	b.MRP = types.MustMoney("2.00")
	b.ExpiryDate = "2027-01-31"
	require.NoError(t, repo.Create(ctx, b))

	refreshed, err := r.Refresh(ctx, b.ID, stock.Incoming{
		ExpiryDate: "N/A",
		CostPrice:  types.Zero(),
		MRP:        types.MustMoney("2.50"),
		Supplier:   "New Supplier",
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.Expiry("2027-01-31"), got.ExpiryDate, "valid expiry kept")
	assert.True(t, types.MustMoney("1.00").Equal(got.UnitPrice), "zero price ignored")
	assert.True(t, types.MustMoney("2.50").Equal(got.MRP))
	assert.Equal(t, "New Supplier", got.Supplier)
	assert.Equal(t, int64(8), got.CurrentStock)
	assert.Equal(t, []id.ID{b.ID}, cache.invalidated)
	assert.Equal(t, got.ExpiryDate, refreshed.ExpiryDate)
	assert.True(t, got.MRP.Equal(refreshed.MRP))
}

func TestResolver_RefreshNothingToChange(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	cache := &spyCache{}
	r := stock.NewResolver(repo, cache)
	b := seedBatch(t, repo, "Clonazepam 0.5mg", "C1", 1)

	got, err := r.Refresh(ctx, b.ID, stock.Incoming{})
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Empty(t, cache.invalidated)
}
