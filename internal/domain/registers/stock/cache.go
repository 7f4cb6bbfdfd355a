package stock

import (
	"context"

	"clinicrx/internal/core/id"
)

// Cache is a read-through cache of batch rows shared by all readers.
// Every ledger or attribute write invalidates the touched ids; quantities
// used for a write are never taken from the cache.
type Cache interface {
	Get(ctx context.Context, itemID id.ID) (*Batch, bool)
	Set(ctx context.Context, b *Batch)
	Invalidate(ctx context.Context, itemIDs ...id.ID)
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) Get(context.Context, id.ID) (*Batch, bool) { return nil, false }
func (NopCache) Set(context.Context, *Batch)               {}
func (NopCache) Invalidate(context.Context, ...id.ID)      {}

// Reader serves batch reads through the cache.
type Reader struct {
	repo  Repository
	cache Cache
}

func NewReader(repo Repository, cache Cache) *Reader {
	if cache == nil {
		cache = NopCache{}
	}
	return &Reader{repo: repo, cache: cache}
}

// Get returns the batch from cache or the store, populating the cache on a miss.
func (r *Reader) Get(ctx context.Context, itemID id.ID) (*Batch, error) {
	if b, ok := r.cache.Get(ctx, itemID); ok {
		return b, nil
	}
	b, err := r.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, b)
	return b, nil
}
