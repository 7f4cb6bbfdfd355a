package invoice

import "clinicrx/internal/core/numerator"

// NumeratorStrategy for invoice numbers: strict, invoices are fiscal documents.
const NumeratorStrategy = numerator.StrategyStrict
