package stock

import (
	"context"
	"strings"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/pkg/logger"
)

// Incoming carries the attributes of a receipt line used to seed or refresh a batch.
type Incoming struct {
	ExpiryDate       Expiry
	CostPrice        types.Money
	MRP              types.Money
	ReceivedQuantity int64
	Category         Category
	Supplier         string
	MinimumStock     int64
}

// Resolution is the outcome of batch identity resolution.
type Resolution struct {
	StockItemID id.ID
	IsNew       bool
}

// Resolver maps (medicine name, batch no) to a batch row, creating it on first receipt.
type Resolver struct {
	repo  Repository
	cache Cache
}

func NewResolver(repo Repository, cache Cache) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	return &Resolver{repo: repo, cache: cache}
}

// Resolve returns the id of the batch keyed by (medicineName, batchNo).
// Names compare by NormalizeName; a blank batchNo is its own identity.
// An existing row is returned untouched (see Refresh). A new row starts at
// zero stock seeded from in. Store failures are returned, never papered over.
func (r *Resolver) Resolve(ctx context.Context, medicineName, batchNo string, in Incoming) (Resolution, error) {
	key := NormalizeName(medicineName)
	if key == "" {
		return Resolution{}, apperror.NewValidation("medicine name is required").WithDetail("field", "medicineName")
	}
	batchNo = NormalizeBatchNo(batchNo)

	existing, err := r.repo.FindByKey(ctx, key, batchNo)
	if err == nil {
		return Resolution{StockItemID: existing.ID}, nil
	}
	if !apperror.IsNotFound(err) {
		return Resolution{}, err
	}

	b := NewBatch(medicineName, batchNo)
	b.UnitPrice = in.CostPrice
	b.MRP = in.MRP
	b.ExpiryDate = NormalizeExpiry(string(in.ExpiryDate))
	b.Supplier = strings.TrimSpace(in.Supplier)
	b.MinimumStock = in.MinimumStock
	if in.Category != "" {
		b.Category = in.Category
	}
	if err := b.Validate(ctx); err != nil {
		return Resolution{}, err
	}

	if err := r.repo.Create(ctx, b); err != nil {
		if !apperror.IsDuplicate(err) {
			return Resolution{}, err
		}
		// Another terminal created the same batch between our read and insert.
		existing, err = r.repo.FindByKey(ctx, key, batchNo)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{StockItemID: existing.ID}, nil
	}

	logger.Info(ctx, "created stock batch",
		"stock_item_id", b.ID,
		"medicine", b.MedicineName,
		"batch_no", b.BatchNo,
		"expiry", b.ExpiryDate,
	)
	return Resolution{StockItemID: b.ID, IsNew: true}, nil
}

// Refresh updates price, expiry and supplier of an existing batch from a
// receipt line and returns the batch as stored afterwards. Prices change only
// when the incoming value is positive; a valid stored expiry is never replaced
// by an invalid one. On update failure the unchanged batch is returned with
// the error.
func (r *Resolver) Refresh(ctx context.Context, itemID id.ID, in Incoming) (*Batch, error) {
	b, err := r.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var attrs Attributes
	if in.CostPrice.IsPositive() && !in.CostPrice.Equal(b.UnitPrice) {
		attrs.UnitPrice = &in.CostPrice
	}
	if in.MRP.IsPositive() && !in.MRP.Equal(b.MRP) {
		attrs.MRP = &in.MRP
	}
	if exp := PreferValid(in.ExpiryDate, b.ExpiryDate); exp != b.ExpiryDate {
		attrs.ExpiryDate = &exp
	}
	if s := strings.TrimSpace(in.Supplier); s != "" && s != b.Supplier {
		attrs.Supplier = &s
	}
	if attrs.IsEmpty() {
		return b, nil
	}

	if err := r.repo.UpdateAttributes(ctx, itemID, attrs); err != nil {
		return b, err
	}
	r.cache.Invalidate(ctx, itemID)

	updated := *b
	attrs.Apply(&updated)
	return &updated, nil
}
