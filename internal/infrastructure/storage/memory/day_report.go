package memory

import (
	"context"
	"time"

	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/reports"
)

// DayReportRepo implements reports.Repository.
type DayReportRepo struct {
	s *Store
}

var _ reports.Repository = (*DayReportRepo)(nil)

func (r *DayReportRepo) GetOpening(_ context.Context, date types.Date, medicineKey string) (int64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	qty, ok := r.s.openings[date.String()][medicineKey]
	return qty, ok, nil
}

func (r *DayReportRepo) SaveOpeningIfAbsent(ctx context.Context, date types.Date, medicineKey string, qty int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	day, ok := r.s.openings[date.String()]
	if !ok {
		day = make(map[string]int64)
		r.s.openings[date.String()] = day
	}
	if existing, ok := day[medicineKey]; ok {
		return existing, nil
	}
	day[medicineKey] = qty
	onRollback(ctx, func() { delete(day, medicineKey) })
	return qty, nil
}

func (r *DayReportRepo) ListOpenings(_ context.Context, date types.Date) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]int64, len(r.s.openings[date.String()]))
	for k, v := range r.s.openings[date.String()] {
		out[k] = v
	}
	return out, nil
}

func (r *DayReportRepo) GetCash(_ context.Context, date types.Date) (*reports.CashCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.cash[date.String()]
	if !ok {
		return nil, nil
	}
	c = cloneCash(c)
	return &c, nil
}

func (r *DayReportRepo) SaveCash(ctx context.Context, date types.Date, cash reports.CashCount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := date.String()
	prev, had := r.s.cash[key]
	onRollback(ctx, func() {
		if had {
			r.s.cash[key] = prev
		} else {
			delete(r.s.cash, key)
		}
	})

	cash = cloneCash(cash)
	cash.UpdatedAt = time.Now().UTC()
	r.s.cash[key] = cash
	return nil
}
