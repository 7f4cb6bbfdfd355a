package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/documents/purchase_order"
)

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	s *Store
}

var _ purchase_order.Repository = (*PurchaseOrderRepo)(nil)

func (r *PurchaseOrderRepo) Create(ctx context.Context, po *purchase_order.PurchaseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.orders {
		if existing.Number == po.Number {
			return apperror.NewDuplicate("purchase order", "number", po.Number)
		}
	}
	r.s.orders[po.ID] = clonePurchaseOrder(po)
	onRollback(ctx, func() { delete(r.s.orders, po.ID) })
	return nil
}

func (r *PurchaseOrderRepo) GetByID(_ context.Context, poID id.ID) (*purchase_order.PurchaseOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	po, ok := r.s.orders[poID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", poID.String())
	}
	return clonePurchaseOrder(po), nil
}

func (r *PurchaseOrderRepo) List(_ context.Context, f purchase_order.ListFilter) (domain.ListResult[*purchase_order.PurchaseOrder], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	supplier := strings.ToLower(strings.TrimSpace(f.Supplier))

	items := make([]*purchase_order.PurchaseOrder, 0)
	for _, po := range r.s.orders {
		if f.Status != nil && po.Status != *f.Status {
			continue
		}
		if supplier != "" && strings.ToLower(po.Supplier) != supplier {
			continue
		}
		if f.DateFrom != nil && po.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && po.Date.After(*f.DateTo) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(po.Number), search) &&
			!strings.Contains(strings.ToLower(po.Supplier), search) {
			continue
		}
		items = append(items, clonePurchaseOrder(po))
	}

	asc := f.OrderBy == "date"
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date) == asc
		}
		return (a.Number < b.Number) == asc
	})

	return page(items, f.ListFilter), nil
}

func (r *PurchaseOrderRepo) GetStatus(_ context.Context, poID id.ID) (purchase_order.Status, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	po, ok := r.s.orders[poID]
	if !ok {
		return "", apperror.NewNotFound("purchase order", poID.String())
	}
	return po.Status, nil
}

func (r *PurchaseOrderRepo) SaveReceivedLines(ctx context.Context, poID id.ID, lines []purchase_order.ReceivedLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	po, ok := r.s.orders[poID]
	if !ok {
		return apperror.NewNotFound("purchase order", poID.String())
	}
	for _, l := range lines {
		item, ok := po.Item(l.LineNo)
		if !ok {
			return apperror.NewNotFound("purchase order line", l.LineNo)
		}
		prev := item.Received
		rl := l
		item.Received = &rl
		onRollback(ctx, func() { item.Received = prev })
	}
	return nil
}

func (r *PurchaseOrderRepo) MarkReceived(ctx context.Context, poID id.ID, grnNumber string, grnDate types.Date) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	po, ok := r.s.orders[poID]
	if !ok {
		return false, apperror.NewNotFound("purchase order", poID.String())
	}
	if po.Status != purchase_order.StatusPending {
		return false, nil
	}
	prev := *po
	onRollback(ctx, func() {
		po.Status = prev.Status
		po.GRNNumber = prev.GRNNumber
		po.GRNDate = prev.GRNDate
		po.ReceivedAt = prev.ReceivedAt
		po.UpdatedAt = prev.UpdatedAt
	})
	now := time.Now().UTC()
	po.Status = purchase_order.StatusReceived
	po.GRNNumber = grnNumber
	po.GRNDate = grnDate
	po.ReceivedAt = &now
	po.UpdatedAt = now
	return true, nil
}

func (r *PurchaseOrderRepo) SumReceivedQuantity(_ context.Context, date types.Date, itemIDs []id.ID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := idSet(itemIDs)
	var total int64
	for _, po := range r.s.orders {
		if po.Status != purchase_order.StatusReceived || !po.GRNDate.Equal(date) {
			continue
		}
		for _, it := range po.Items {
			if it.Received == nil {
				continue
			}
			if _, ok := want[it.Received.StockItemID]; ok {
				total += it.Received.Quantity
			}
		}
	}
	return total, nil
}

func idSet(ids []id.ID) map[id.ID]struct{} {
	out := make(map[id.ID]struct{}, len(ids))
	for _, v := range ids {
		out[v] = struct{}{}
	}
	return out
}

func page[T any](items []T, f domain.ListFilter) domain.ListResult[T] {
	total := len(items)
	start := f.Offset
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return domain.ListResult[T]{
		Items:      items[start:end],
		TotalCount: int64(total),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
}
