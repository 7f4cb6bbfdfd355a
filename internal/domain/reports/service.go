package reports

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/tx"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/pkg/logger"
)

// Service builds day reports.
type Service struct {
	repo     Repository
	stock    StockReader
	sales    SalesReader
	receipts ReceiptReader
	snapshot tx.ReadOnlyManager
}

// NewService creates a day report service.
func NewService(repo Repository, stockReader StockReader, sales SalesReader, receipts ReceiptReader) *Service {
	return &Service{
		repo:     repo,
		stock:    stockReader,
		sales:    sales,
		receipts: receipts,
	}
}

// WithSnapshot makes ReconcileCash read all its figures in one read-only transaction.
func (s *Service) WithSnapshot(txm tx.ReadOnlyManager) *Service {
	s.snapshot = txm
	return s
}

// GetOrCreateOpening returns the frozen opening stock of a medicine for date.
// The first call for a (date, medicine) pair stores the current total stock;
// later calls return the stored value no matter how stock moved since.
func (s *Service) GetOrCreateOpening(ctx context.Context, medicineName string, date types.Date) (int64, error) {
	key, err := medicineKey(medicineName)
	if err != nil {
		return 0, err
	}
	qty, _, err := s.openingByKey(ctx, key, date)
	return qty, err
}

func (s *Service) openingByKey(ctx context.Context, key string, date types.Date) (qty int64, created bool, err error) {
	qty, found, err := s.repo.GetOpening(ctx, date, key)
	if err != nil {
		return 0, false, err
	}
	if found {
		return qty, false, nil
	}

	current, err := s.stock.SumStockByMedicine(ctx, key)
	if err != nil {
		return 0, false, err
	}
	stored, err := s.repo.SaveOpeningIfAbsent(ctx, date, key, current)
	if err != nil {
		return 0, false, err
	}
	return stored, true, nil
}

// ComputeClosing returns opening, sold, received and closing of a medicine for date.
func (s *Service) ComputeClosing(ctx context.Context, medicineName string, date types.Date) (*Closing, error) {
	key, err := medicineKey(medicineName)
	if err != nil {
		return nil, err
	}
	c, err := s.closingByKey(ctx, key, date)
	if err != nil {
		return nil, err
	}
	c.MedicineName = strings.TrimSpace(medicineName)
	return c, nil
}

func (s *Service) closingByKey(ctx context.Context, key string, date types.Date) (*Closing, error) {
	opening, _, err := s.openingByKey(ctx, key, date)
	if err != nil {
		return nil, err
	}
	return s.closingFrom(ctx, key, date, opening)
}

func (s *Service) closingFrom(ctx context.Context, key string, date types.Date, opening int64) (*Closing, error) {
	itemIDs, err := s.stock.ItemIDsByMedicine(ctx, key)
	if err != nil {
		return nil, err
	}

	sold, err := s.sales.SumSoldQuantity(ctx, date, itemIDs, key)
	if err != nil {
		return nil, err
	}

	var received int64
	if len(itemIDs) > 0 {
		received, err = s.receipts.SumReceivedQuantity(ctx, date, itemIDs)
		if err != nil {
			return nil, err
		}
	}

	return &Closing{
		Date:        date,
		MedicineKey: key,
		Opening:     opening,
		Sold:        sold,
		Received:    received,
		Closing:     opening - sold + received,
	}, nil
}

// DayStock computes the closing line of every known medicine for date.
// Stored openings are loaded in one read; missing ones are frozen on the way.
func (s *Service) DayStock(ctx context.Context, date types.Date) ([]Closing, error) {
	medicines, err := s.stock.ListMedicines(ctx)
	if err != nil {
		return nil, err
	}
	openings, err := s.repo.ListOpenings(ctx, date)
	if err != nil {
		return nil, err
	}

	out := make([]Closing, 0, len(medicines))
	for _, m := range medicines {
		opening, ok := openings[m.Key]
		if !ok {
			if opening, _, err = s.openingByKey(ctx, m.Key, date); err != nil {
				return nil, err
			}
		}
		c, err := s.closingFrom(ctx, m.Key, date, opening)
		if err != nil {
			return nil, err
		}
		c.MedicineName = m.Name
		out = append(out, *c)
	}
	sortClosings(out)
	return out, nil
}

// CaptureOpenings freezes the opening of every medicine that does not have
// one yet for date. It returns the number of newly stored snapshots.
func (s *Service) CaptureOpenings(ctx context.Context, date types.Date) (int, error) {
	medicines, err := s.stock.ListMedicines(ctx)
	if err != nil {
		return 0, err
	}

	existing, err := s.repo.ListOpenings(ctx, date)
	if err != nil {
		return 0, err
	}

	captured := 0
	for _, m := range medicines {
		if _, ok := existing[m.Key]; ok {
			continue
		}
		_, created, err := s.openingByKey(ctx, m.Key, date)
		if err != nil {
			return captured, err
		}
		if created {
			captured++
		}
	}

	if captured > 0 {
		logger.Info(ctx, "opening stock captured", "date", date.String(), "medicines", captured)
	}
	return captured, nil
}

// SaveCashCount stores the manually entered cash data for date, replacing any previous entry.
func (s *Service) SaveCashCount(ctx context.Context, date types.Date, cash CashCount) error {
	if date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if err := cash.Validate(ctx); err != nil {
		return err
	}
	return s.repo.SaveCash(ctx, date, cash)
}

// GetCashCount returns the stored cash entry for date or NotFound.
func (s *Service) GetCashCount(ctx context.Context, date types.Date) (*CashCount, error) {
	cash, err := s.repo.GetCash(ctx, date)
	if err != nil {
		return nil, err
	}
	if cash == nil {
		return nil, apperror.NewNotFound("cash count", date.String())
	}
	return cash, nil
}

// ReconcileCash computes the cash reconciliation of date. Opening cash in hand
// is the stored override, else the previous day's closing cash in hand. The
// previous day is looked up one level only: its own opening is its override or zero.
func (s *Service) ReconcileCash(ctx context.Context, date types.Date) (*Reconciliation, error) {
	if s.snapshot == nil {
		return s.reconcileCash(ctx, date)
	}
	var r *Reconciliation
	err := s.snapshot.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.reconcileCash(ctx, date)
		return err
	})
	return r, err
}

func (s *Service) reconcileCash(ctx context.Context, date types.Date) (*Reconciliation, error) {
	cash, err := s.repo.GetCash(ctx, date)
	if err != nil {
		return nil, err
	}

	var opening types.Money
	carried := false
	if cash != nil && cash.OpeningCashInHand != nil {
		opening = *cash.OpeningCashInHand
	} else {
		prevCash, err := s.repo.GetCash(ctx, date.AddDays(-1))
		if err != nil {
			return nil, err
		}
		if prevCash != nil {
			prev, err := s.reconcile(ctx, date.AddDays(-1), prevCash, openingOverride(prevCash))
			if err != nil {
				return nil, err
			}
			opening = prev.ClosingCashInHand
			carried = true
		}
	}

	r, err := s.reconcile(ctx, date, cash, opening)
	if err != nil {
		return nil, err
	}
	r.OpeningCarriedForward = carried

	if r.HasDiscrepancy {
		logger.Warn(ctx, "cash discrepancy",
			"date", date.String(),
			"difference", r.Difference.StringFixed(2),
		)
	}
	return r, nil
}

func (s *Service) reconcile(ctx context.Context, date types.Date, cash *CashCount, opening types.Money) (*Reconciliation, error) {
	byCategory, err := s.sales.SalesByCategory(ctx, date)
	if err != nil {
		return nil, err
	}
	if byCategory == nil {
		byCategory = make(map[stock.Category]types.Money)
	}

	r := &Reconciliation{
		Date:              date,
		SalesByCategory:   byCategory,
		TotalSales:        decimal.Zero,
		FeesCollected:     decimal.Zero,
		CashCounted:       decimal.Zero,
		DigitalPayments:   decimal.Zero,
		BankDeposits:      decimal.Zero,
		OpeningCashInHand: opening,
		CashRecorded:      cash != nil,
	}
	for _, v := range byCategory {
		r.TotalSales = r.TotalSales.Add(v)
	}

	if cash != nil {
		counted, err := cash.CountedCash()
		if err != nil {
			return nil, apperror.NewValidation(err.Error()).WithDetail("field", "denominations")
		}
		r.CashCounted = counted
		r.FeesCollected = cash.FeesCollected
		r.DigitalPayments = cash.DigitalPayments
		r.BankDeposits = cash.BankDeposits
	}

	r.TotalSaleValue = r.TotalSales.Add(r.FeesCollected)
	r.Difference = r.TotalSaleValue.Sub(r.CashCounted).Sub(r.DigitalPayments)
	r.HasDiscrepancy = !r.Difference.IsZero()
	r.ClosingCashInHand = r.OpeningCashInHand.Add(r.CashCounted).Sub(r.BankDeposits)
	return r, nil
}

func openingOverride(c *CashCount) types.Money {
	if c != nil && c.OpeningCashInHand != nil {
		return *c.OpeningCashInHand
	}
	return decimal.Zero
}

func medicineKey(name string) (string, error) {
	key := stock.NormalizeName(name)
	if key == "" {
		return "", apperror.NewValidation("medicine name is required").WithDetail("field", "medicineName")
	}
	return key, nil
}
