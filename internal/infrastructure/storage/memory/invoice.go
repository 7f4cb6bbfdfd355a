package memory

import (
	"context"
	"sort"
	"strings"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/registers/stock"
)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	s *Store
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.invoices {
		if existing.Number == inv.Number {
			return apperror.NewDuplicate("invoice", "number", inv.Number)
		}
	}
	r.s.invoices[inv.ID] = cloneInvoice(inv)
	onRollback(ctx, func() { delete(r.s.invoices, inv.ID) })
	return nil
}

func (r *InvoiceRepo) GetByID(_ context.Context, invID id.ID) (*invoice.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	inv, ok := r.s.invoices[invID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", invID.String())
	}
	return cloneInvoice(inv), nil
}

func (r *InvoiceRepo) List(_ context.Context, f invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))

	items := make([]*invoice.Invoice, 0)
	for _, inv := range r.s.invoices {
		if f.Date != nil && !inv.Date.Equal(*f.Date) {
			continue
		}
		if f.PaymentMode != nil && inv.PaymentMode != *f.PaymentMode {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(inv.Number), search) &&
			!strings.Contains(strings.ToLower(inv.PatientRef), search) {
			continue
		}
		items = append(items, cloneInvoice(inv))
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

func (r *InvoiceRepo) SumSoldQuantity(_ context.Context, date types.Date, itemIDs []id.ID, medicineKey string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := idSet(itemIDs)
	var total int64
	for _, inv := range r.s.invoices {
		if !inv.Date.Equal(date) {
			continue
		}
		for _, l := range inv.Lines {
			if l.StockItemID != nil {
				if _, ok := want[*l.StockItemID]; ok {
					total += l.Quantity
				}
				continue
			}
			if medicineKey != "" && l.MedicineKey == medicineKey {
				total += l.Quantity
			}
		}
	}
	return total, nil
}

func (r *InvoiceRepo) SalesByCategory(_ context.Context, date types.Date) (map[stock.Category]types.Money, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[stock.Category]types.Money)
	for _, inv := range r.s.invoices {
		if !inv.Date.Equal(date) {
			continue
		}
		for _, l := range inv.Lines {
			cat := l.Category
			if cat == "" {
				cat = stock.CategoryGeneral
			}
			if cur, ok := out[cat]; ok {
				out[cat] = cur.Add(l.Amount)
			} else {
				out[cat] = l.Amount
			}
		}
	}
	return out, nil
}
