package purchase_order

import (
	"time"

	"clinicrx/internal/core/numerator"
)

const (
	// NumeratorStrategy for PO and GRN numbers. Both are accounting documents,
	// so numbers must not have gaps.
	NumeratorStrategy = numerator.StrategyStrict

	// DefaultLockTTL bounds a single GRN run when no TTL is configured.
	DefaultLockTTL = 2 * time.Minute
)
