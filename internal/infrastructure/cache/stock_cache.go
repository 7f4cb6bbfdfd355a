// Package cache provides stock caches: an in-process cache kept coherent with
// PostgreSQL LISTEN/NOTIFY, and a shared Redis cache.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clinicrx/internal/core/id"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/pkg/logger"
)

// StockChangedChannel is notified by the stock_batches trigger with the row id as payload.
const StockChangedChannel = "stock_changed"

type entry struct {
	batch     stock.Batch
	expiresAt time.Time
}

// StockCache is a thread-safe in-process cache of batch rows.
// With a pool it also drops entries changed by other processes.
type StockCache struct {
	pool *pgxpool.Pool
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[id.ID]entry

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var _ stock.Cache = (*StockCache)(nil)

// NewStockCache creates a cache. pool may be nil.
func NewStockCache(pool *pgxpool.Pool, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StockCache{
		pool:    pool,
		ttl:     ttl,
		entries: make(map[id.ID]entry),
	}
}

// Get returns a copy of the cached batch.
func (c *StockCache) Get(_ context.Context, itemID id.ID) (*stock.Batch, bool) {
	c.mu.RLock()
	e, ok := c.entries[itemID]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	b := e.batch
	return &b, true
}

func (c *StockCache) Set(_ context.Context, b *stock.Batch) {
	if b == nil {
		return
	}
	c.mu.Lock()
	c.entries[b.ID] = entry{batch: *b, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *StockCache) Invalidate(_ context.Context, itemIDs ...id.ID) {
	c.mu.Lock()
	for _, itemID := range itemIDs {
		delete(c.entries, itemID)
	}
	c.mu.Unlock()
}

// Len returns the number of cached rows, expired ones included.
func (c *StockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start begins the eviction loop and, with a pool, listening for NOTIFY events.
func (c *StockCache) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.evictLoop()

	if c.pool != nil {
		c.wg.Add(1)
		go c.listenLoop()
	}
	logger.Info(c.ctx, "stock cache started", "ttl", c.ttl.String(), "listen", c.pool != nil)
	return nil
}

// Stop gracefully stops background loops.
func (c *StockCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "stock cache stopped")
}

func (c *StockCache) evictLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			c.evictExpired(now)
		}
	}
}

func (c *StockCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// listenLoop listens for PostgreSQL NOTIFY events.
func (c *StockCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Acquire dedicated connection for LISTEN
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if _, err = conn.Exec(c.ctx, "LISTEN "+StockChangedChannel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		// rows may have changed while we were not listening
		c.clear()
		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *StockCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Wait with timeout for graceful shutdown
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if conn.Conn().IsClosed() {
				return
			}
			continue
		}

		c.handleNotification(notification.Payload)
	}
}

func (c *StockCache) handleNotification(payload string) {
	itemID, err := id.Parse(payload)
	if err != nil {
		// unknown payload: drop everything
		c.clear()
		return
	}
	c.Invalidate(c.ctx, itemID)
}

func (c *StockCache) clear() {
	c.mu.Lock()
	c.entries = make(map[id.ID]entry)
	c.mu.Unlock()
}
