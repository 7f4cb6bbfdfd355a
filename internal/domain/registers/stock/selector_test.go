package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/storage/memory"
)

func seedDated(t *testing.T, repo stock.Repository, name, batchNo string, qty int64, expiry stock.Expiry) *stock.Batch {
	t.Helper()
	b := stock.NewBatch(name, batchNo)
	b.CurrentStock = qty
	b.ExpiryDate = expiry
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestSelector_PicksEarliestExpiryWithStock(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	seedDated(t, repo, "Tramadol 50mg", "LATE", 40, "2028-01-31")
	seedDated(t, repo, "Tramadol 50mg", "EMPTY", 0, "2026-12-31")
	early := seedDated(t, repo, "Tramadol 50mg", "EARLY", 5, "2027-03")
	seedDated(t, repo, "Tramadol 50mg", "UNDATED", 100, "N/A")

	sel := stock.NewSelector(repo, stock.MatchPolicy{})
	b, found, err := sel.SelectBatch(ctx, " TRAMADOL 50mg")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, early.ID, b.ID)

	candidates, err := sel.Candidates(ctx, "Tramadol 50mg")
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, []string{"EARLY", "LATE", "UNDATED"},
		[]string{candidates[0].BatchNo, candidates[1].BatchNo, candidates[2].BatchNo})
}

func TestSelector_FuzzyOnlyWithoutExactMatch(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	combo := seedDated(t, repo, "Tramadol Paracetamol", "TP1", 10, "2027-01-31")

	strict := stock.NewSelector(repo, stock.MatchPolicy{})
	_, found, err := strict.SelectBatch(ctx, "Tramadol")
	require.NoError(t, err)
	assert.False(t, found)

	fuzzy := stock.NewSelector(repo, stock.MatchPolicy{Fuzzy: true})
	b, found, err := fuzzy.SelectBatch(ctx, "Tramadol")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, combo.ID, b.ID)

	exact := seedDated(t, repo, "Tramadol", "T1", 3, "2029-01-31")
	b, found, err = fuzzy.SelectBatch(ctx, "Tramadol")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, exact.ID, b.ID, "exact match beats an earlier fuzzy one")
}

func TestSelector_NoStock(t *testing.T) {
	repo := memory.NewStore().Stock()
	seedDated(t, repo, "Lorazepam 1mg", "L1", 0, "2027-01-31")

	_, found, err := stock.NewSelector(repo, stock.MatchPolicy{Fuzzy: true}).
		SelectBatch(context.Background(), "Lorazepam 1mg")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSelector_MovesToNextBatchAsEachRunsOut(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	b1 := seedDated(t, repo, "Methadone 10mg", "B1", 5, "2025-01-01")
	b2 := seedDated(t, repo, "Methadone 10mg", "B2", 5, "2025-06-01")
	b3 := seedDated(t, repo, "Methadone 10mg", "B3", 5, "N/A")

	sel := stock.NewSelector(repo, stock.MatchPolicy{})
	ledger := stock.NewLedger(repo, nil, stock.ModeAtomic)

	for _, want := range []*stock.Batch{b1, b2, b3} {
		b, found, err := sel.SelectBatch(ctx, "Methadone 10mg")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, want.BatchNo, b.BatchNo)

		left, err := ledger.Decrement(ctx, b.ID, 5, testRecorder)
		require.NoError(t, err)
		assert.Zero(t, left)
	}

	_, found, err := sel.SelectBatch(ctx, "Methadone 10mg")
	require.NoError(t, err)
	assert.False(t, found, "all batches exhausted")
}
