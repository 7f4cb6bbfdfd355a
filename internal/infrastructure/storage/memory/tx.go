package memory

import (
	"context"
)

type txKey struct{}

// txLog collects compensating actions for the writes of one transaction.
type txLog struct {
	undo []func()
}

func txFromContext(ctx context.Context) *txLog {
	l, _ := ctx.Value(txKey{}).(*txLog)
	return l
}

// onRollback registers fn to run if the transaction in ctx fails. Outside a
// transaction it does nothing. Callers hold s.mu; fn runs under s.mu too.
func onRollback(ctx context.Context, fn func()) {
	if l := txFromContext(ctx); l != nil {
		l.undo = append(l.undo, fn)
	}
}

// TxManager serialises transactions on the store. A failed transaction undoes
// only its own writes, in reverse order; stock counters are compensated by
// inverse deltas so concurrent writes made outside the transaction survive.
type TxManager struct {
	s *Store
}

// RunInTransaction implements tx.Manager. Nested calls reuse the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	log := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		m.s.rollback(log)
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, &txLog{}))
}

func (s *Store) rollback(l *txLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(l.undo) - 1; i >= 0; i-- {
		l.undo[i]()
	}
}
