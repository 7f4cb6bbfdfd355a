package invoice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/numerator"
	"clinicrx/internal/infrastructure/storage/memory"
)

type fixture struct {
	store *memory.Store
	stock *memory.StockRepo
	repo  *memory.InvoiceRepo
	svc   *invoice.Service
}

func newFixture(fuzzy bool) *fixture {
	store := memory.NewStore()
	st := store.Stock()
	f := &fixture{store: store, stock: st, repo: store.Invoices()}
	f.svc = invoice.NewService(invoice.ServiceConfig{
		Repo:      f.repo,
		StockRepo: st,
		Selector:  stock.NewSelector(st, stock.MatchPolicy{Fuzzy: fuzzy}),
		Ledger:    stock.NewLedger(st, nil, stock.ModeAtomic),
		TxManager: store.TxManager(),
		Numerator: numerator.NewMemory(),
	})
	return f
}

func (f *fixture) batch(t *testing.T, name, batchNo string, qty int64, expiry stock.Expiry, mrp string) *stock.Batch {
	t.Helper()
	b := stock.NewBatch(name, batchNo)
	b.CurrentStock = qty
	b.ExpiryDate = expiry
	b.MRP = types.MustMoney(mrp)
	b.Category = stock.CategoryOST
	require.NoError(t, f.stock.Create(context.Background(), b))
	return b
}

func (f *fixture) qty(t *testing.T, itemID id.ID) int64 {
	t.Helper()
	q, err := f.stock.GetCurrentStock(context.Background(), itemID)
	require.NoError(t, err)
	return q
}

var day = types.MustDate("2026-10-10")

func TestCreate_UndatedInvoiceUsesBusinessDay(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	st := store.Stock()
	east := time.FixedZone("UTC+14", 14*60*60)
	west := time.FixedZone("UTC-12", -12*60*60)
	svc := invoice.NewService(invoice.ServiceConfig{
		Repo:      store.Invoices(),
		StockRepo: st,
		Selector:  stock.NewSelector(st, stock.MatchPolicy{}),
		Ledger:    stock.NewLedger(st, nil, stock.ModeAtomic),
		TxManager: store.TxManager(),
		Numerator: numerator.NewMemory(),
		Location:  east,
	})
	b := stock.NewBatch("Naltrexone 50mg", "N1")
	b.CurrentStock = 5
	b.MRP = types.MustMoney("3.00")
	require.NoError(t, st.Create(ctx, b))

	before := types.Today(east)
	inv, err := svc.Create(ctx, invoice.CreateInput{
		Lines: []invoice.Line{{MedicineName: "Naltrexone 50mg", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Contains(t, []types.Date{before, types.Today(east)}, inv.Date)
	assert.NotEqual(t, types.Today(west), inv.Date)
}

func TestCreate_AssignsFIFOBatchAndPricesAtMRP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	late := f.batch(t, "Buprenorphine 2mg", "LATE", 50, "2028-01-31", "8.00")
	early := f.batch(t, "Buprenorphine 2mg", "EARLY", 10, "2027-02", "7.50")

	inv, err := f.svc.Create(ctx, invoice.CreateInput{
		Date:  day,
		Lines: []invoice.Line{{MedicineName: "buprenorphine 2MG", Quantity: 4}},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-00001", inv.Number)
	require.Len(t, inv.Lines, 1)
	l := inv.Lines[0]
	assert.Equal(t, early.ID, *l.StockItemID)
	assert.True(t, l.AutoAssigned)
	assert.Equal(t, "EARLY", l.BatchNo)
	assert.Equal(t, stock.CategoryOST, l.Category)
	assert.True(t, types.MustMoney("30.00").Equal(l.Amount))
	assert.True(t, types.MustMoney("30.00").Equal(inv.TotalAmount))

	assert.Equal(t, int64(6), f.qty(t, early.ID))
	assert.Equal(t, int64(50), f.qty(t, late.ID))
}

func TestCreate_FIFOMovesToNextBatchAcrossLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	late := f.batch(t, "Methadone 10mg", "LATE", 20, "2028-01-31", "1.00")
	early := f.batch(t, "Methadone 10mg", "EARLY", 3, "2027-01-31", "1.00")

	inv, err := f.svc.Create(ctx, invoice.CreateInput{
		Date: day,
		Lines: []invoice.Line{
			{MedicineName: "Methadone 10mg", Quantity: 3},
			{MedicineName: "Methadone 10mg", Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, early.ID, *inv.Lines[0].StockItemID)
	assert.Equal(t, late.ID, *inv.Lines[1].StockItemID)
	assert.Equal(t, int64(0), f.qty(t, early.ID))
	assert.Equal(t, int64(18), f.qty(t, late.ID))
}

func TestCreate_InsufficientStockChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	ok := f.batch(t, "Naltrexone 50mg", "N1", 10, "2027-01-31", "4.00")
	short := f.batch(t, "Diazepam 5mg", "D1", 2, "2027-01-31", "1.00")

	_, err := f.svc.Create(ctx, invoice.CreateInput{
		Date: day,
		Lines: []invoice.Line{
			{StockItemID: &ok.ID, Quantity: 5},
			{StockItemID: &short.ID, Quantity: 3},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(3), appErr.Details["requested"])
	assert.Equal(t, int64(2), appErr.Details["available"])

	assert.Equal(t, int64(10), f.qty(t, ok.ID))
	assert.Equal(t, int64(2), f.qty(t, short.ID))

	list, err := f.svc.List(ctx, invoice.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestCreate_DemandIsAggregatedPerBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	b := f.batch(t, "Diazepam 5mg", "D1", 5, "2027-01-31", "1.00")

	_, err := f.svc.Create(ctx, invoice.CreateInput{
		Date: day,
		Lines: []invoice.Line{
			{StockItemID: &b.ID, Quantity: 3},
			{StockItemID: &b.ID, Quantity: 3},
		},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(5), f.qty(t, b.ID))
}

func TestCreate_NoStockAnywhere(t *testing.T) {
	f := newFixture(true)
	f.batch(t, "Lorazepam 1mg", "L1", 0, "2027-01-31", "1.00")

	_, err := f.svc.Create(context.Background(), invoice.CreateInput{
		Date:  day,
		Lines: []invoice.Line{{MedicineName: "Lorazepam 1mg", Quantity: 1}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestCreate_ExplicitBatchNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	f.batch(t, "Olanzapine 10mg", "O1", 5, "2027-01-31", "2.00")
	o2 := f.batch(t, "Olanzapine 10mg", "O2", 5, "2028-01-31", "2.00")

	inv, err := f.svc.Create(ctx, invoice.CreateInput{
		Date:        day,
		PaymentMode: invoice.PaymentDigital,
		Lines: []invoice.Line{{
			MedicineName: "Olanzapine 10mg",
			BatchNo:      "o2",
			Quantity:     2,
			UnitPrice:    types.MustMoney("1.50"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, o2.ID, *inv.Lines[0].StockItemID)
	assert.False(t, inv.Lines[0].AutoAssigned)
	assert.True(t, types.MustMoney("3.00").Equal(inv.TotalAmount))
	assert.Equal(t, int64(3), f.qty(t, o2.ID))

	_, err = f.svc.Create(ctx, invoice.CreateInput{
		Date:  day,
		Lines: []invoice.Line{{MedicineName: "Olanzapine 10mg", BatchNo: "O9", Quantity: 1}},
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(false)

	_, err := f.svc.Create(context.Background(), invoice.CreateInput{Date: day})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = f.svc.Create(context.Background(), invoice.CreateInput{
		Date:  day,
		Lines: []invoice.Line{{MedicineName: "X", Quantity: 0}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = f.svc.Create(context.Background(), invoice.CreateInput{
		Date:        day,
		PaymentMode: "cheque",
		Lines:       []invoice.Line{{MedicineName: "X", Quantity: 1}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestSalesAggregates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	b := f.batch(t, "Buprenorphine 2mg", "B1", 100, "2027-01-31", "2.00")

	_, err := f.svc.Create(ctx, invoice.CreateInput{
		Date:  day,
		Lines: []invoice.Line{{StockItemID: &b.ID, Quantity: 7}},
	})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, invoice.CreateInput{
		Date:  day.AddDays(1),
		Lines: []invoice.Line{{StockItemID: &b.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	sold, err := f.repo.SumSoldQuantity(ctx, day, []id.ID{b.ID}, b.MedicineKey)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sold)

	byCat, err := f.repo.SalesByCategory(ctx, day)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("14.00").Equal(byCat[stock.CategoryOST]))
}
