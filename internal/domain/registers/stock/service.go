package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/pkg/logger"
)

// Service exposes the stock register to the HTTP layer and the day report.
type Service struct {
	repo     Repository
	cache    Cache
	reader   *Reader
	ledger   *Ledger
	selector *Selector
}

// NewService creates a new stock register service.
func NewService(repo Repository, cache Cache, ledger *Ledger, selector *Selector) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		reader:   NewReader(repo, cache),
		ledger:   ledger,
		selector: selector,
	}
}

// CreateInput describes a manually registered batch (opening inventory, donations).
type CreateInput struct {
	MedicineName string
	BatchNo      string
	Category     Category
	OpeningStock int64
	MinimumStock int64
	UnitPrice    types.Money
	MRP          types.Money
	ExpiryDate   Expiry
	Supplier     string
}

// Create registers a batch. Opening stock goes through the ledger so that it
// appears in the movement journal like any other change.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Batch, error) {
	if in.OpeningStock < 0 {
		return nil, apperror.NewValidation("opening stock cannot be negative").WithDetail("field", "openingStock")
	}

	b := NewBatch(in.MedicineName, in.BatchNo)
	b.Category = in.Category
	if b.Category == "" {
		b.Category = CategoryGeneral
	}
	b.MinimumStock = in.MinimumStock
	b.UnitPrice = in.UnitPrice
	b.MRP = in.MRP
	b.ExpiryDate = NormalizeExpiry(string(in.ExpiryDate))
	b.Supplier = strings.TrimSpace(in.Supplier)

	if err := b.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	if in.OpeningStock > 0 {
		rec := entity.Recorder{Type: entity.RecorderAdjustment, Ref: "opening stock"}
		if _, err := s.ledger.ApplyDelta(ctx, b.ID, in.OpeningStock, rec); err != nil {
			return nil, fmt.Errorf("apply opening stock: %w", err)
		}
	}

	logger.Info(ctx, "registered stock batch",
		"stock_item_id", b.ID,
		"medicine", b.MedicineName,
		"batch_no", b.BatchNo,
		"opening_stock", in.OpeningStock,
	)
	return s.repo.GetByID(ctx, b.ID)
}

// Get returns a batch through the read-through cache.
func (s *Service) Get(ctx context.Context, itemID id.ID) (*Batch, error) {
	return s.reader.Get(ctx, itemID)
}

// Query extends ListFilter with filters evaluated on parsed expiry dates.
type Query struct {
	ListFilter
	// ExpiringWithinDays keeps batches with a valid expiry within N days of Now.
	ExpiringWithinDays *int
	Now                time.Time
}

// List returns batches matching q ordered by medicine then dispensing order.
func (s *Service) List(ctx context.Context, q Query) ([]*Batch, error) {
	f := q.ListFilter
	if q.ExpiringWithinDays != nil {
		// expiry is text; pagination happens after the date filter
		f.Limit, f.Offset = 0, 0
	}

	batches, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	if q.ExpiringWithinDays == nil {
		return batches, nil
	}

	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	horizon := now.AddDate(0, 0, *q.ExpiringWithinDays)
	expiring := filterBatches(batches, func(b *Batch) bool {
		return b.CurrentStock > 0 && b.ExpiryDate.ExpiresBefore(horizon)
	})
	SortFIFO(expiring)
	return paginate(expiring, q.Limit, q.Offset), nil
}

// Adjust applies a manual correction. Negative results are allowed and
// journaled as anomalies.
func (s *Service) Adjust(ctx context.Context, itemID id.ID, delta int64, reason string) (*Batch, error) {
	if delta == 0 {
		return nil, apperror.NewValidation("delta must be non-zero").WithDetail("field", "delta")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.NewValidation("reason is required").WithDetail("field", "reason")
	}
	if _, err := s.repo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	rec := entity.Recorder{Type: entity.RecorderAdjustment, Ref: reason}
	newQty, err := s.ledger.ApplyDelta(ctx, itemID, delta, rec)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjusted",
		"stock_item_id", itemID,
		"delta", delta,
		"quantity", newQty,
		"reason", reason,
	)
	return s.repo.GetByID(ctx, itemID)
}

// SelectBatch returns the batch FIFO would dispense from.
func (s *Service) SelectBatch(ctx context.Context, medicineName string) (*Batch, error) {
	if NormalizeName(medicineName) == "" {
		return nil, apperror.NewValidation("medicine name is required").WithDetail("field", "medicine")
	}
	b, found, err := s.selector.SelectBatch(ctx, medicineName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NewNotFound("stock batch", medicineName).
			WithDetail("reason", "no batch with stock")
	}
	return b, nil
}

// Movements returns the journal of a batch, newest first.
func (s *Service) Movements(ctx context.Context, itemID id.ID, limit int) ([]entity.StockMovement, error) {
	if _, err := s.repo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListMovements(ctx, itemID, limit)
}

func paginate(in []*Batch, limit, offset int) []*Batch {
	if offset > 0 {
		if offset >= len(in) {
			return []*Batch{}
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
