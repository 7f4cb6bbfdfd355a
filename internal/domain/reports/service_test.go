package reports_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/domain/reports"
	"clinicrx/internal/infrastructure/numerator"
	"clinicrx/internal/infrastructure/storage/memory"
)

type fixture struct {
	stock    *memory.StockRepo
	ledger   *stock.Ledger
	invoices *invoice.Service
	receiver *purchase_order.Receiver
	orders   *purchase_order.Service
	svc      *reports.Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	st := store.Stock()
	gen := numerator.NewMemory()
	ledger := stock.NewLedger(st, nil, stock.ModeAtomic)

	return &fixture{
		stock:  st,
		ledger: ledger,
		invoices: invoice.NewService(invoice.ServiceConfig{
			Repo:      store.Invoices(),
			StockRepo: st,
			Selector:  stock.NewSelector(st, stock.MatchPolicy{}),
			Ledger:    ledger,
			TxManager: store.TxManager(),
			Numerator: gen,
		}),
		orders: purchase_order.NewService(store.PurchaseOrders(), st, gen),
		receiver: purchase_order.NewReceiver(purchase_order.ReceiverConfig{
			Repo:      store.PurchaseOrders(),
			StockRepo: st,
			Resolver:  stock.NewResolver(st, nil),
			Ledger:    ledger,
			Numerator: gen,
		}),
		svc: reports.NewService(store.DayReports(), st, store.Invoices(), store.PurchaseOrders()).
			WithSnapshot(store.TxManager()),
	}
}

func (f *fixture) batch(t *testing.T, name, batchNo string, qty int64, category stock.Category, mrp string) *stock.Batch {
	t.Helper()
	b := stock.NewBatch(name, batchNo)
	b.CurrentStock = qty
	b.Category = category
	b.MRP = types.MustMoney(mrp)
	b.ExpiryDate = "2028-01-31"
	require.NoError(t, f.stock.Create(context.Background(), b))
	return b
}

func (f *fixture) sell(t *testing.T, date types.Date, itemID id.ID, qty int64) {
	t.Helper()
	_, err := f.invoices.Create(context.Background(), invoice.CreateInput{
		Date:  date,
		Lines: []invoice.Line{{StockItemID: &itemID, Quantity: qty}},
	})
	require.NoError(t, err)
}

var day = types.MustDate("2026-10-12")

func TestOpening_FrozenOnFirstRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.batch(t, "Buprenorphine 2mg", "B1", 40, stock.CategoryOST, "2.00")
	f.batch(t, "Buprenorphine 2mg", "B2", 10, stock.CategoryOST, "2.00")

	opening, err := f.svc.GetOrCreateOpening(ctx, "buprenorphine 2MG", day)
	require.NoError(t, err)
	assert.Equal(t, int64(50), opening)

	_, err = f.ledger.ApplyDelta(ctx, b.ID, -15, entity.Recorder{Type: entity.RecorderAdjustment, Ref: "spill"})
	require.NoError(t, err)

	again, err := f.svc.GetOrCreateOpening(ctx, "Buprenorphine 2mg", day)
	require.NoError(t, err)
	assert.Equal(t, int64(50), again, "opening must not follow later stock changes")

	next, err := f.svc.GetOrCreateOpening(ctx, "Buprenorphine 2mg", day.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, int64(35), next)
}

func TestOpening_RequiresName(t *testing.T) {
	_, err := newFixture().svc.GetOrCreateOpening(context.Background(), " ", day)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestClosing_OpeningMinusSoldPlusReceived(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.batch(t, "Methadone 10mg", "M1", 100, stock.CategoryOST, "1.00")

	_, err := f.svc.GetOrCreateOpening(ctx, "Methadone 10mg", day)
	require.NoError(t, err)

	f.sell(t, day, b.ID, 30)
	f.sell(t, day, b.ID, 5)
	f.sell(t, day.AddDays(1), b.ID, 1)

	po, err := f.orders.Create(ctx, purchase_order.CreateInput{
		Supplier:  "Acme",
		OrderDate: day.AddDays(-3),
		Items:     []purchase_order.Item{{StockItemID: b.ID, OrderedQuantity: 60}},
	})
	require.NoError(t, err)
	_, err = f.receiver.Receive(ctx, po.ID, purchase_order.GRN{
		GRNDate: day,
		Lines:   []purchase_order.GRNLine{{LineNo: 1, ReceivedQuantity: 60, BatchNo: "M2"}},
	})
	require.NoError(t, err)

	c, err := f.svc.ComputeClosing(ctx, "Methadone 10mg", day)
	require.NoError(t, err)
	assert.Equal(t, int64(100), c.Opening)
	assert.Equal(t, int64(35), c.Sold)
	assert.Equal(t, int64(60), c.Received, "receipts into a new batch of the same medicine count")
	assert.Equal(t, int64(125), c.Closing)

	total, err := f.stock.SumStockByMedicine(ctx, b.MedicineKey)
	require.NoError(t, err)
	assert.Equal(t, int64(124), total, "live stock also reflects the next day's sale")
}

func TestClosing_RecomputedOnEveryRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.batch(t, "Diazepam 5mg", "D1", 20, stock.CategoryPsychiatric, "1.00")

	first, err := f.svc.ComputeClosing(ctx, "Diazepam 5mg", day)
	require.NoError(t, err)
	assert.Equal(t, int64(20), first.Closing)

	f.sell(t, day, b.ID, 4)

	second, err := f.svc.ComputeClosing(ctx, "Diazepam 5mg", day)
	require.NoError(t, err)
	assert.Equal(t, int64(20), second.Opening)
	assert.Equal(t, int64(16), second.Closing)
}

func TestCaptureOpenings(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.batch(t, "Diazepam 5mg", "D1", 20, stock.CategoryPsychiatric, "1.00")
	f.batch(t, "Methadone 10mg", "M1", 7, stock.CategoryOST, "1.00")

	n, err := f.svc.CaptureOpenings(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.CaptureOpenings(ctx, day)
	require.NoError(t, err)
	assert.Zero(t, n)

	lines, err := f.svc.DayStock(ctx, day)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "diazepam 5mg", lines[0].MedicineKey)
	assert.Equal(t, int64(20), lines[0].Opening)
	assert.Equal(t, "Methadone 10mg", lines[1].MedicineName)
}

// countingRepo counts single-opening reads.
type countingRepo struct {
	reports.Repository
	getOpening int
}

func (r *countingRepo) GetOpening(ctx context.Context, date types.Date, medicineKey string) (int64, bool, error) {
	r.getOpening++
	return r.Repository.GetOpening(ctx, date, medicineKey)
}

func TestDayStock_UsesStoredOpeningsAndFreezesMissing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	st := store.Stock()
	repo := &countingRepo{Repository: store.DayReports()}
	svc := reports.NewService(repo, st, store.Invoices(), store.PurchaseOrders())
	ledger := stock.NewLedger(st, nil, stock.ModeAtomic)

	d := stock.NewBatch("Diazepam 5mg", "D1")
	d.CurrentStock = 20
	require.NoError(t, st.Create(ctx, d))
	_, err := svc.CaptureOpenings(ctx, day)
	require.NoError(t, err)

	_, err = ledger.ApplyDelta(ctx, d.ID, 5, entity.Recorder{Type: entity.RecorderAdjustment, Ref: "recount"})
	require.NoError(t, err)
	m := stock.NewBatch("Methadone 10mg", "M1")
	m.CurrentStock = 7
	require.NoError(t, st.Create(ctx, m))
	repo.getOpening = 0

	lines, err := svc.DayStock(ctx, day)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(20), lines[0].Opening, "stored opening is reused")
	assert.Equal(t, int64(7), lines[1].Opening, "missing opening frozen from current stock")
	assert.Equal(t, 1, repo.getOpening, "only the missing opening is read one by one")

	again, err := svc.GetOrCreateOpening(ctx, "Methadone 10mg", day)
	require.NoError(t, err)
	assert.Equal(t, int64(7), again)
}

func TestReconcileCash(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ost := f.batch(t, "Buprenorphine 2mg", "B1", 100, stock.CategoryOST, "10.00")
	psy := f.batch(t, "Olanzapine 10mg", "O1", 100, stock.CategoryPsychiatric, "4.00")

	f.sell(t, day, ost.ID, 10) // 100.00
	f.sell(t, day, psy.ID, 5)  // 20.00

	opening := types.MustMoney("500.00")
	require.NoError(t, f.svc.SaveCashCount(ctx, day, reports.CashCount{
		Denominations:     map[string]int64{"50": 1, "20": 2, "0.50": 4},
		DigitalPayments:   types.MustMoney("30.00"),
		FeesCollected:     types.MustMoney("50.00"),
		BankDeposits:      types.MustMoney("200.00"),
		OpeningCashInHand: &opening,
	}))

	r, err := f.svc.ReconcileCash(ctx, day)
	require.NoError(t, err)

	assert.True(t, types.MustMoney("100.00").Equal(r.SalesByCategory[stock.CategoryOST]))
	assert.True(t, types.MustMoney("20.00").Equal(r.SalesByCategory[stock.CategoryPsychiatric]))
	assert.True(t, types.MustMoney("120.00").Equal(r.TotalSales))
	assert.True(t, types.MustMoney("170.00").Equal(r.TotalSaleValue))
	assert.True(t, types.MustMoney("92.00").Equal(r.CashCounted))
	// 170 - 92 - 30
	assert.True(t, types.MustMoney("48.00").Equal(r.Difference), r.Difference.String())
	assert.True(t, r.HasDiscrepancy)
	assert.False(t, r.OpeningCarriedForward)
	// 500 + 92 - 200
	assert.True(t, types.MustMoney("392.00").Equal(r.ClosingCashInHand))
}

func TestReconcileCash_BalancedDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.batch(t, "Buprenorphine 2mg", "B1", 100, stock.CategoryOST, "10.00")
	f.sell(t, day, b.ID, 3)

	require.NoError(t, f.svc.SaveCashCount(ctx, day, reports.CashCount{
		Denominations:   map[string]int64{"10": 2},
		DigitalPayments: types.MustMoney("10"),
	}))

	r, err := f.svc.ReconcileCash(ctx, day)
	require.NoError(t, err)
	assert.True(t, r.Difference.IsZero())
	assert.False(t, r.HasDiscrepancy)
}

func TestReconcileCash_CarriesPreviousClosingForward(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	prev := day.AddDays(-1)

	prevOpening := types.MustMoney("100.00")
	require.NoError(t, f.svc.SaveCashCount(ctx, prev, reports.CashCount{
		Denominations:     map[string]int64{"100": 3},
		BankDeposits:      types.MustMoney("50.00"),
		OpeningCashInHand: &prevOpening,
	}))
	require.NoError(t, f.svc.SaveCashCount(ctx, day, reports.CashCount{
		Denominations: map[string]int64{"10": 1},
	}))

	r, err := f.svc.ReconcileCash(ctx, day)
	require.NoError(t, err)
	assert.True(t, r.OpeningCarriedForward)
	// previous: 100 + 300 - 50
	assert.True(t, types.MustMoney("350.00").Equal(r.OpeningCashInHand), r.OpeningCashInHand.String())
	assert.True(t, types.MustMoney("360.00").Equal(r.ClosingCashInHand))
}

func TestReconcileCash_NothingRecorded(t *testing.T) {
	r, err := newFixture().svc.ReconcileCash(context.Background(), day)
	require.NoError(t, err)
	assert.False(t, r.CashRecorded)
	assert.True(t, r.OpeningCashInHand.IsZero())
	assert.True(t, r.Difference.IsZero())
	assert.Empty(t, r.SalesByCategory)
}

func TestSaveCashCount_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newFixture().svc

	err := svc.SaveCashCount(ctx, day, reports.CashCount{Denominations: map[string]int64{"abc": 1}})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = svc.SaveCashCount(ctx, day, reports.CashCount{Denominations: map[string]int64{"10": -1}})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = svc.SaveCashCount(ctx, day, reports.CashCount{BankDeposits: types.MustMoney("-1")})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.GetCashCount(ctx, day)
	assert.True(t, apperror.IsNotFound(err))
}
