package stock

import (
	"context"

	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
)

// Repository defines storage operations for the stock register.
// Implementations: storage/postgres/register_repo and storage/memory.
type Repository interface {
	// Create inserts a new batch row. A row with the same (medicine_key, batch_no)
	// yields apperror CodeDuplicate.
	Create(ctx context.Context, b *Batch) error

	GetByID(ctx context.Context, itemID id.ID) (*Batch, error)

	// FindByKey looks a batch up by its business key (normalized name, batch no).
	FindByKey(ctx context.Context, medicineKey, batchNo string) (*Batch, error)

	List(ctx context.Context, filter ListFilter) ([]*Batch, error)

	// UpdateAttributes writes descriptive fields only; current_stock is untouched.
	UpdateAttributes(ctx context.Context, itemID id.ID, attrs Attributes) error

	// Quantity operations

	// GetCurrentStock reads current_stock directly from the store, bypassing caches.
	GetCurrentStock(ctx context.Context, itemID id.ID) (int64, error)

	// SetCurrentStock overwrites current_stock (re-read-then-write mode).
	SetCurrentStock(ctx context.Context, itemID id.ID, qty int64) error

	// AddStock applies delta in a single statement and returns the new quantity.
	AddStock(ctx context.Context, itemID id.ID, delta int64) (int64, error)

	// SubtractIfAvailable removes qty only when current_stock >= qty.
	// ok is false (and nothing is written) when stock is short.
	SubtractIfAvailable(ctx context.Context, itemID id.ID, qty int64) (newQty int64, ok bool, err error)

	// Journal

	RecordMovement(ctx context.Context, m entity.StockMovement) error
	ListMovements(ctx context.Context, itemID id.ID, limit int) ([]entity.StockMovement, error)

	// Aggregates

	// SumStockByMedicine totals current_stock over all batches of a medicine.
	SumStockByMedicine(ctx context.Context, medicineKey string) (int64, error)

	// ListMedicines returns distinct medicines that have at least one batch row.
	ListMedicines(ctx context.Context) ([]Medicine, error)

	// ItemIDsByMedicine returns ids of every batch of a medicine, including empty ones.
	ItemIDsByMedicine(ctx context.Context, medicineKey string) ([]id.ID, error)
}

// ListFilter for batch listings.
type ListFilter struct {
	IDs []id.ID
	// MedicineKey filters on the normalized name exactly.
	MedicineKey string
	// NameContains is a case-insensitive substring filter on the display name.
	NameContains string
	InStockOnly  bool
	// LowStockOnly keeps rows with minimum_stock > 0 and current_stock <= minimum_stock.
	LowStockOnly bool
	Limit        int
	Offset       int
}
