package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/registers/stock"
)

var errAbort = errors.New("abort")

func seedBatch(t *testing.T, s *Store, name string, qty int64) *stock.Batch {
	t.Helper()
	b := stock.NewBatch(name, "B1")
	b.CurrentStock = qty
	require.NoError(t, s.Stock().Create(context.Background(), b))
	return b
}

func TestTxManager_RollbackUndoesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Stock()
	b := seedBatch(t, s, "Diazepam 5mg", 10)
	created := stock.NewBatch("Lorazepam 1mg", "L1")
	inv := invoice.NewInvoice(types.MustDate("2026-10-10"), invoice.PaymentCash)

	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		qty, ok, err := repo.SubtractIfAvailable(ctx, b.ID, 4)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, repo.RecordMovement(ctx, entity.NewStockMovement(b.ID, entity.Recorder{Ref: "INV-1"}, -4, qty)))
		require.NoError(t, repo.Create(ctx, created))
		require.NoError(t, repo.UpdateAttributes(ctx, b.ID, stock.Attributes{ExpiryDate: ptr(stock.Expiry("2030-01-31"))}))
		require.NoError(t, s.Invoices().Create(ctx, inv))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.CurrentStock)
	assert.Equal(t, stock.Expiry(""), got.ExpiryDate)

	moves, err := repo.ListMovements(ctx, b.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, moves)

	_, err = repo.GetByID(ctx, created.ID)
	assert.Error(t, err)
	_, err = s.Invoices().GetByID(ctx, inv.ID)
	assert.Error(t, err)
}

func TestTxManager_RollbackKeepsWritesMadeOutside(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Stock()
	b := seedBatch(t, s, "Buprenorphine 2mg", 0)

	err := s.TxManager().RunInTransaction(ctx, func(txCtx context.Context) error {
		done := make(chan error)
		go func() {
			// Another terminal's receipt, not part of this transaction.
			_, err := repo.AddStock(ctx, b.ID, 100)
			done <- err
		}()
		require.NoError(t, <-done)

		_, ok, err := repo.SubtractIfAvailable(txCtx, b.ID, 30)
		require.NoError(t, err)
		require.True(t, ok)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	qty, err := repo.GetCurrentStock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), qty)
}

func TestTxManager_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Stock()
	b := seedBatch(t, s, "Naltrexone 50mg", 5)

	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.AddStock(ctx, b.ID, 7)
		return err
	})
	require.NoError(t, err)

	qty, err := repo.GetCurrentStock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), qty)
}

func ptr[T any](v T) *T { return &v }
