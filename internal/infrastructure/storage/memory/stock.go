package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/domain/registers/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	s *Store
}

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) Create(ctx context.Context, b *stock.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.batches {
		if existing.MedicineKey == b.MedicineKey && existing.BatchNo == b.BatchNo {
			return apperror.NewDuplicate("stock batch", "medicine_key,batch_no", b.MedicineKey+"/"+b.BatchNo)
		}
	}
	if _, ok := r.s.batches[b.ID]; ok {
		return apperror.NewDuplicate("stock batch", "id", b.ID.String())
	}
	r.s.batches[b.ID] = cloneBatch(b)
	onRollback(ctx, func() { delete(r.s.batches, b.ID) })
	return nil
}

func (r *StockRepo) GetByID(_ context.Context, itemID id.ID) (*stock.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.batches[itemID]
	if !ok {
		return nil, apperror.NewNotFound("stock item", itemID.String())
	}
	return cloneBatch(b), nil
}

func (r *StockRepo) FindByKey(_ context.Context, medicineKey, batchNo string) (*stock.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.batches {
		if b.MedicineKey == medicineKey && b.BatchNo == batchNo {
			return cloneBatch(b), nil
		}
	}
	return nil, apperror.NewNotFound("stock batch", medicineKey+"/"+batchNo)
}

func (r *StockRepo) List(_ context.Context, f stock.ListFilter) ([]*stock.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids map[id.ID]struct{}
	if len(f.IDs) > 0 {
		ids = make(map[id.ID]struct{}, len(f.IDs))
		for _, v := range f.IDs {
			ids[v] = struct{}{}
		}
	}
	contains := strings.ToLower(strings.TrimSpace(f.NameContains))

	out := make([]*stock.Batch, 0)
	for _, b := range r.s.batches {
		if ids != nil {
			if _, ok := ids[b.ID]; !ok {
				continue
			}
		}
		if f.MedicineKey != "" && b.MedicineKey != f.MedicineKey {
			continue
		}
		if contains != "" && !strings.Contains(strings.ToLower(b.MedicineName), contains) {
			continue
		}
		if f.InStockOnly && b.CurrentStock <= 0 {
			continue
		}
		if f.LowStockOnly && !b.IsLowStock() {
			continue
		}
		out = append(out, cloneBatch(b))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MedicineKey != out[j].MedicineKey {
			return out[i].MedicineKey < out[j].MedicineKey
		}
		return out[i].BatchNo < out[j].BatchNo
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*stock.Batch{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *StockRepo) UpdateAttributes(ctx context.Context, itemID id.ID, attrs stock.Attributes) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.batches[itemID]
	if !ok {
		return apperror.NewNotFound("stock item", itemID.String())
	}
	prev := cloneBatch(b)
	attrs.Apply(b)
	b.UpdatedAt = time.Now().UTC()
	onRollback(ctx, func() {
		if cur, ok := r.s.batches[itemID]; ok {
			restoreAttributes(cur, prev)
		}
	})
	return nil
}

// restoreAttributes puts back everything but the stock counter.
func restoreAttributes(b, prev *stock.Batch) {
	qty := b.CurrentStock
	*b = *prev
	b.CurrentStock = qty
}

func (r *StockRepo) GetCurrentStock(_ context.Context, itemID id.ID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.batches[itemID]
	if !ok {
		return 0, apperror.NewNotFound("stock item", itemID.String())
	}
	return b.CurrentStock, nil
}

func (r *StockRepo) SetCurrentStock(ctx context.Context, itemID id.ID, qty int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.batches[itemID]
	if !ok {
		return apperror.NewNotFound("stock item", itemID.String())
	}
	r.compensate(ctx, itemID, qty-b.CurrentStock)
	b.CurrentStock = qty
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *StockRepo) AddStock(ctx context.Context, itemID id.ID, delta int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.batches[itemID]
	if !ok {
		return 0, apperror.NewNotFound("stock item", itemID.String())
	}
	b.CurrentStock += delta
	b.UpdatedAt = time.Now().UTC()
	r.compensate(ctx, itemID, delta)
	return b.CurrentStock, nil
}

func (r *StockRepo) SubtractIfAvailable(ctx context.Context, itemID id.ID, qty int64) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.batches[itemID]
	if !ok {
		return 0, false, apperror.NewNotFound("stock item", itemID.String())
	}
	if b.CurrentStock < qty {
		return b.CurrentStock, false, nil
	}
	b.CurrentStock -= qty
	b.UpdatedAt = time.Now().UTC()
	r.compensate(ctx, itemID, -qty)
	return b.CurrentStock, true, nil
}

// compensate registers the inverse of a stock change made in a transaction.
func (r *StockRepo) compensate(ctx context.Context, itemID id.ID, delta int64) {
	onRollback(ctx, func() {
		if b, ok := r.s.batches[itemID]; ok {
			b.CurrentStock -= delta
		}
	})
}

func (r *StockRepo) RecordMovement(ctx context.Context, m entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.movements = append(r.s.movements, m)
	onRollback(ctx, func() {
		for i := len(r.s.movements) - 1; i >= 0; i-- {
			if r.s.movements[i].LineID == m.LineID {
				r.s.movements = append(r.s.movements[:i], r.s.movements[i+1:]...)
				return
			}
		}
	})
	return nil
}

// ListMovements returns the newest movements first.
func (r *StockRepo) ListMovements(_ context.Context, itemID id.ID, limit int) ([]entity.StockMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]entity.StockMovement, 0)
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		if r.s.movements[i].StockItemID != itemID {
			continue
		}
		out = append(out, r.s.movements[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *StockRepo) SumStockByMedicine(_ context.Context, medicineKey string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var total int64
	for _, b := range r.s.batches {
		if b.MedicineKey == medicineKey {
			total += b.CurrentStock
		}
	}
	return total, nil
}

func (r *StockRepo) ListMedicines(_ context.Context) ([]stock.Medicine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := make(map[string]stock.Medicine)
	first := make(map[string]time.Time)
	for _, b := range r.s.batches {
		// the earliest created row names the medicine
		if t, ok := first[b.MedicineKey]; !ok || b.CreatedAt.Before(t) {
			first[b.MedicineKey] = b.CreatedAt
			seen[b.MedicineKey] = stock.Medicine{Key: b.MedicineKey, Name: b.MedicineName}
		}
	}

	out := make([]stock.Medicine, 0, len(seen))
	for _, m := range seen {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *StockRepo) ItemIDsByMedicine(_ context.Context, medicineKey string) ([]id.ID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]id.ID, 0)
	for _, b := range r.s.batches {
		if b.MedicineKey == medicineKey {
			out = append(out, b.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
