// Package stock provides the batch-level stock register: one row per
// (medicine, batch number), its ledger of quantity changes and the rules that
// decide which batch receives or gives stock.
package stock

import (
	"context"
	"strings"
	"time"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
)

// Category is the clinical class of a medicine, used for sales reporting.
type Category string

const (
	CategoryOST         Category = "ost"         // opioid substitution therapy
	CategoryPsychiatric Category = "psychiatric" // psychiatric medication
	CategoryGeneral     Category = "general"
)

// Categories lists all known categories in report order.
var Categories = []Category{CategoryOST, CategoryPsychiatric, CategoryGeneral}

// ParseCategory maps free text to a Category, defaulting to general.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryOST:
		return CategoryOST
	case CategoryPsychiatric, "psych":
		return CategoryPsychiatric
	default:
		return CategoryGeneral
	}
}

// Batch is one physical lot of one medicine.
type Batch struct {
	ID           id.ID    `db:"id" json:"id"`
	MedicineName string   `db:"medicine_name" json:"medicineName"`
	MedicineKey  string   `db:"medicine_key" json:"-"`
	BatchNo      string   `db:"batch_no" json:"batchNo"`
	Category     Category `db:"category" json:"category"`

	// CurrentStock is the only mutable quantity; it changes through Ledger only.
	CurrentStock int64 `db:"current_stock" json:"currentStock"`
	MinimumStock int64 `db:"minimum_stock" json:"minimumStock"`

	UnitPrice  types.Money `db:"unit_price" json:"unitPrice"`
	MRP        types.Money `db:"mrp" json:"mrp"`
	ExpiryDate Expiry      `db:"expiry_date" json:"expiryDate"`
	Supplier   string      `db:"supplier" json:"supplier,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBatch builds a row with zero stock and normalized keys.
func NewBatch(medicineName, batchNo string) *Batch {
	now := time.Now().UTC()
	return &Batch{
		ID:           id.New(),
		MedicineName: strings.TrimSpace(medicineName),
		MedicineKey:  NormalizeName(medicineName),
		BatchNo:      NormalizeBatchNo(batchNo),
		Category:     CategoryGeneral,
		UnitPrice:    types.Zero(),
		MRP:          types.Zero(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks field invariants.
func (b *Batch) Validate(_ context.Context) error {
	if b.MedicineKey == "" {
		return apperror.NewValidation("medicine name is required").WithDetail("field", "medicineName")
	}
	if b.CurrentStock < 0 {
		return apperror.NewValidation("current stock cannot be negative").WithDetail("field", "currentStock")
	}
	if b.MinimumStock < 0 {
		return apperror.NewValidation("minimum stock cannot be negative").WithDetail("field", "minimumStock")
	}
	if b.UnitPrice.IsNegative() || b.MRP.IsNegative() {
		return apperror.NewValidation("prices cannot be negative")
	}
	return nil
}

// IsLowStock reports stock at or under the reorder threshold.
func (b *Batch) IsLowStock() bool {
	return b.MinimumStock > 0 && b.CurrentStock <= b.MinimumStock
}

// Attributes are the mutable descriptive fields of a batch. Nil means "keep".
type Attributes struct {
	UnitPrice    *types.Money
	MRP          *types.Money
	ExpiryDate   *Expiry
	Supplier     *string
	Category     *Category
	MinimumStock *int64
}

// IsEmpty reports whether there is nothing to update.
func (a Attributes) IsEmpty() bool {
	return a.UnitPrice == nil && a.MRP == nil && a.ExpiryDate == nil &&
		a.Supplier == nil && a.Category == nil && a.MinimumStock == nil
}

// Apply copies non-nil attributes onto b.
func (a Attributes) Apply(b *Batch) {
	if a.UnitPrice != nil {
		b.UnitPrice = *a.UnitPrice
	}
	if a.MRP != nil {
		b.MRP = *a.MRP
	}
	if a.ExpiryDate != nil {
		b.ExpiryDate = *a.ExpiryDate
	}
	if a.Supplier != nil {
		b.Supplier = *a.Supplier
	}
	if a.Category != nil {
		b.Category = *a.Category
	}
	if a.MinimumStock != nil {
		b.MinimumStock = *a.MinimumStock
	}
}

// Medicine is a distinct medicine name present in the register.
type Medicine struct {
	Key  string `db:"medicine_key" json:"key"`
	Name string `db:"medicine_name" json:"name"`
}
