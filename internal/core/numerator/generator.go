package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers.
// Implementations live in infrastructure/numerator.
type Generator interface {
	// GetNextNumber generates the next document number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., GRN-2024-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the current counter value (data migration from paper registers).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}

// Next is a shorthand for the default yearly pattern with strict numbering.
func Next(ctx context.Context, g Generator, prefix string, period time.Time) (string, error) {
	return g.GetNextNumber(ctx, DefaultConfig(prefix), DefaultOptions(), period)
}
