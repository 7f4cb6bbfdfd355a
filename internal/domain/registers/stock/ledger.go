package stock

import (
	"context"
	"fmt"

	"clinicrx/internal/core/apperror"
	appctx "clinicrx/internal/core/context"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/pkg/logger"
)

// Mode selects how the ledger writes quantities.
type Mode string

const (
	// ModeAtomic applies deltas with a single conditional UPDATE ... RETURNING.
	ModeAtomic Mode = "atomic"
	// ModeReread reads current_stock right before writing current+delta back.
	// Two concurrent writers can still lose an update in this mode.
	ModeReread Mode = "reread"
)

// ParseMode maps a config value to Mode, defaulting to atomic.
func ParseMode(s string) Mode {
	if Mode(s) == ModeReread {
		return ModeReread
	}
	return ModeAtomic
}

// Ledger is the only writer of current_stock.
type Ledger struct {
	repo  Repository
	cache Cache
	mode  Mode
}

func NewLedger(repo Repository, cache Cache, mode Mode) *Ledger {
	if cache == nil {
		cache = NopCache{}
	}
	return &Ledger{repo: repo, cache: cache, mode: mode}
}

// Mode returns the configured write mode.
func (l *Ledger) Mode() Mode { return l.mode }

// ApplyDelta adds delta to the batch and returns the stored quantity.
// A result below zero is still written and journaled as an anomaly, so the
// ledger keeps following physical reality (e.g. corrections after over-dispensing).
func (l *Ledger) ApplyDelta(ctx context.Context, itemID id.ID, delta int64, rec entity.Recorder) (int64, error) {
	if delta == 0 {
		return l.repo.GetCurrentStock(ctx, itemID)
	}

	var (
		newQty int64
		err    error
	)
	switch l.mode {
	case ModeReread:
		var current int64
		current, err = l.repo.GetCurrentStock(ctx, itemID)
		if err != nil {
			return 0, err
		}
		newQty = current + delta
		err = l.repo.SetCurrentStock(ctx, itemID, newQty)
	default:
		newQty, err = l.repo.AddStock(ctx, itemID, delta)
	}
	if err != nil {
		return 0, err
	}

	if newQty < 0 {
		logger.Warn(ctx, "stock went negative",
			"stock_item_id", itemID,
			"delta", delta,
			"quantity", newQty,
			"recorder_type", rec.Type,
			"recorder_ref", rec.Ref,
		)
	}

	l.afterWrite(ctx, itemID, rec, delta, newQty)
	return newQty, nil
}

// Decrement removes qty from the batch, refusing with InsufficientStock when
// the batch holds less. Nothing is written in that case.
func (l *Ledger) Decrement(ctx context.Context, itemID id.ID, qty int64, rec entity.Recorder) (int64, error) {
	if qty <= 0 {
		return 0, apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	var newQty int64
	switch l.mode {
	case ModeReread:
		current, err := l.repo.GetCurrentStock(ctx, itemID)
		if err != nil {
			return 0, err
		}
		if current < qty {
			return 0, l.insufficient(ctx, itemID, qty, current)
		}
		newQty = current - qty
		if err := l.repo.SetCurrentStock(ctx, itemID, newQty); err != nil {
			return 0, err
		}
	default:
		var (
			ok  bool
			err error
		)
		newQty, ok, err = l.repo.SubtractIfAvailable(ctx, itemID, qty)
		if err != nil {
			return 0, err
		}
		if !ok {
			current, err := l.repo.GetCurrentStock(ctx, itemID)
			if err != nil {
				return 0, err
			}
			return 0, l.insufficient(ctx, itemID, qty, current)
		}
	}

	l.afterWrite(ctx, itemID, rec, -qty, newQty)
	return newQty, nil
}

func (l *Ledger) insufficient(ctx context.Context, itemID id.ID, requested, available int64) error {
	name := itemID.String()
	if b, err := l.repo.GetByID(ctx, itemID); err == nil {
		name = fmt.Sprintf("%s (batch %s)", b.MedicineName, b.BatchNo)
	}
	return apperror.NewInsufficientStock(itemID.String(), name, requested, available)
}

// afterWrite journals the change and drops the cached row. A journal failure
// is logged, not returned: the quantity is already stored and reporting it as
// failed would make callers apply it a second time.
func (l *Ledger) afterWrite(ctx context.Context, itemID id.ID, rec entity.Recorder, delta, newQty int64) {
	l.cache.Invalidate(ctx, itemID)

	m := entity.NewStockMovement(itemID, rec, delta, newQty)
	m.OperatorID = appctx.GetOperatorID(ctx)
	if err := l.repo.RecordMovement(ctx, m); err != nil {
		logger.Error(ctx, "failed to journal stock movement",
			"stock_item_id", itemID,
			"delta", delta,
			"quantity", newQty,
			"error", err,
		)
	}
}
