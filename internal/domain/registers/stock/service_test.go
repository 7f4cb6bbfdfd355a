package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/storage/memory"
)

func newStockService(repo stock.Repository) *stock.Service {
	ledger := stock.NewLedger(repo, nil, stock.ModeAtomic)
	return stock.NewService(repo, nil, ledger, stock.NewSelector(repo, stock.MatchPolicy{}))
}

func TestService_CreateJournalsOpeningStock(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	svc := newStockService(repo)

	b, err := svc.Create(ctx, stock.CreateInput{
		MedicineName: "Naltrexone 50mg",
		BatchNo:      "nx1",
		Category:     stock.CategoryOST,
		OpeningStock: 25,
		MRP:          types.MustMoney("12.00"),
		ExpiryDate:   "2027-08",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), b.CurrentStock)
	assert.Equal(t, "NX1", b.BatchNo)

	moves, err := svc.Movements(ctx, b.ID, 0)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, entity.RecorderAdjustment, moves[0].Recorder.Type)
	assert.Equal(t, int64(25), moves[0].Delta)

	_, err = svc.Create(ctx, stock.CreateInput{MedicineName: "naltrexone 50MG", BatchNo: "NX1"})
	assert.True(t, apperror.IsDuplicate(err))
}

func TestService_CreateValidation(t *testing.T) {
	svc := newStockService(memory.NewStore().Stock())

	_, err := svc.Create(context.Background(), stock.CreateInput{MedicineName: "X", OpeningStock: -1})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.Create(context.Background(), stock.CreateInput{MedicineName: "  "})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestService_Adjust(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	svc := newStockService(repo)
	b := seedBatch(t, repo, "Diazepam 5mg", "D1", 2)

	got, err := svc.Adjust(ctx, b.ID, -3, "breakage")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), got.CurrentStock)

	_, err = svc.Adjust(ctx, b.ID, 1, " ")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.Adjust(ctx, b.ID, 0, "noop")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestService_ListExpiring(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	svc := newStockService(repo)
	soon := seedDated(t, repo, "Diazepam 5mg", "SOON", 4, "2026-11-15")
	seedDated(t, repo, "Diazepam 5mg", "LATER", 4, "2027-06-30")
	seedDated(t, repo, "Diazepam 5mg", "GONE", 0, "2026-11-01")
	seedDated(t, repo, "Diazepam 5mg", "NA", 4, "N/A")

	days := 30
	got, err := svc.List(ctx, stock.Query{
		ExpiringWithinDays: &days,
		Now:                time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, soon.ID, got[0].ID)
}

func TestService_ListLowStock(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Stock()
	svc := newStockService(repo)

	low := stock.NewBatch("Lithium 300mg", "L1")
	low.CurrentStock = 3
	low.MinimumStock = 5
	require.NoError(t, repo.Create(ctx, low))
	seedBatch(t, repo, "Lithium 300mg", "L2", 50)

	got, err := svc.List(ctx, stock.Query{ListFilter: stock.ListFilter{LowStockOnly: true}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, low.ID, got[0].ID)
}

func TestService_SelectBatchNotFound(t *testing.T) {
	svc := newStockService(memory.NewStore().Stock())

	_, err := svc.SelectBatch(context.Background(), "Unknown")
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.SelectBatch(context.Background(), "")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
