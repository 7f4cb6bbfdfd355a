// Package reports provides the daily stock snapshot and the cash
// reconciliation of a clinic day.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
)

// Closing is the stock movement of one medicine over one day.
// Closing = Opening - Sold + Received, recomputed on every read.
type Closing struct {
	Date         types.Date `json:"date"`
	MedicineName string     `json:"medicineName"`
	MedicineKey  string     `json:"medicineKey"`
	Opening      int64      `json:"opening"`
	Sold         int64      `json:"sold"`
	Received     int64      `json:"received"`
	Closing      int64      `json:"closing"`
}

// CashCount is the manually entered cash side of a day.
type CashCount struct {
	// Denominations maps face value ("500", "0.50") to number of notes/coins.
	Denominations   map[string]int64 `json:"denominations"`
	BankDeposits    types.Money      `json:"bankDeposits"`
	DigitalPayments types.Money      `json:"digitalPayments"`
	FeesCollected   types.Money      `json:"feesCollected"`
	// OpeningCashInHand overrides the value carried forward from the previous day.
	OpeningCashInHand *types.Money `json:"openingCashInHand,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// CountedCash sums face value * count over all denominations.
func (c *CashCount) CountedCash() (types.Money, error) {
	total := decimal.Zero
	for face, count := range c.Denominations {
		v, err := decimal.NewFromString(strings.TrimSpace(face))
		if err != nil {
			return decimal.Zero, fmt.Errorf("denomination %q: %w", face, err)
		}
		total = total.Add(v.Mul(decimal.NewFromInt(count)))
	}
	return total, nil
}

// Validate checks field invariants.
func (c *CashCount) Validate(_ context.Context) error {
	for face, count := range c.Denominations {
		v, err := decimal.NewFromString(strings.TrimSpace(face))
		if err != nil || !v.IsPositive() {
			return apperror.NewValidation("denomination must be a positive amount").
				WithDetail("field", "denominations").
				WithDetail("value", face)
		}
		if count < 0 {
			return apperror.NewValidation("denomination count cannot be negative").
				WithDetail("field", "denominations").
				WithDetail("value", face)
		}
	}
	for field, v := range map[string]types.Money{
		"bankDeposits":    c.BankDeposits,
		"digitalPayments": c.DigitalPayments,
		"feesCollected":   c.FeesCollected,
	} {
		if v.IsNegative() {
			return apperror.NewValidation("amount cannot be negative").WithDetail("field", field)
		}
	}
	return nil
}

// Reconciliation compares what the day should have brought in with what was counted.
// A non-zero Difference is a discrepancy for human review, not an error.
type Reconciliation struct {
	Date types.Date `json:"date"`

	SalesByCategory map[stock.Category]types.Money `json:"salesByCategory"`
	TotalSales      types.Money                    `json:"totalSales"`
	FeesCollected   types.Money                    `json:"feesCollected"`
	// TotalSaleValue = TotalSales + FeesCollected
	TotalSaleValue types.Money `json:"totalSaleValue"`

	CashCounted     types.Money `json:"cashCounted"`
	DigitalPayments types.Money `json:"digitalPayments"`
	BankDeposits    types.Money `json:"bankDeposits"`

	// Difference = TotalSaleValue - CashCounted - DigitalPayments
	Difference     types.Money `json:"difference"`
	HasDiscrepancy bool        `json:"hasDiscrepancy"`

	OpeningCashInHand     types.Money `json:"openingCashInHand"`
	OpeningCarriedForward bool        `json:"openingCarriedForward"`
	// ClosingCashInHand = OpeningCashInHand + CashCounted - BankDeposits
	ClosingCashInHand types.Money `json:"closingCashInHand"`

	CashRecorded bool `json:"cashRecorded"`
}

// Repository stores day reports: the frozen opening snapshot per medicine and
// the cash count, keyed by calendar date.
type Repository interface {
	GetOpening(ctx context.Context, date types.Date, medicineKey string) (qty int64, found bool, err error)

	// SaveOpeningIfAbsent stores qty unless an opening already exists for
	// (date, medicineKey) and returns the value that is stored afterwards.
	SaveOpeningIfAbsent(ctx context.Context, date types.Date, medicineKey string, qty int64) (int64, error)

	ListOpenings(ctx context.Context, date types.Date) (map[string]int64, error)

	// GetCash returns nil without error when nothing was entered for date.
	GetCash(ctx context.Context, date types.Date) (*CashCount, error)
	SaveCash(ctx context.Context, date types.Date, cash CashCount) error
}

// StockReader is the part of the stock register the report reads.
type StockReader interface {
	SumStockByMedicine(ctx context.Context, medicineKey string) (int64, error)
	ItemIDsByMedicine(ctx context.Context, medicineKey string) ([]id.ID, error)
	ListMedicines(ctx context.Context) ([]stock.Medicine, error)
}

// SalesReader reads dispensing activity.
type SalesReader interface {
	SumSoldQuantity(ctx context.Context, date types.Date, itemIDs []id.ID, medicineKey string) (int64, error)
	SalesByCategory(ctx context.Context, date types.Date) (map[stock.Category]types.Money, error)
}

// ReceiptReader reads receiving activity.
type ReceiptReader interface {
	SumReceivedQuantity(ctx context.Context, date types.Date, itemIDs []id.ID) (int64, error)
}

func sortClosings(cs []Closing) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].MedicineKey < cs[j].MedicineKey })
}
