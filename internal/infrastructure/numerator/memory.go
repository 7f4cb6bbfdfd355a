package numerator

import (
	"context"
	"sync"
	"time"

	corenumerator "clinicrx/internal/core/numerator"
)

// Memory is an in-process Generator for the memory storage driver and tests.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ corenumerator.Generator = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

func (m *Memory) GetNextNumber(_ context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := buildKey(cfg, period)

	m.mu.Lock()
	m.counters[key]++
	n := m.counters[key]
	m.mu.Unlock()

	return formatNumber(cfg, period, n), nil
}

func (m *Memory) SetNextNumber(_ context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	m.mu.Lock()
	m.counters[buildKey(cfg, period)] = value
	m.mu.Unlock()
	return nil
}
