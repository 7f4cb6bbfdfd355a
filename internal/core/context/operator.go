// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Operator identifies the dispensary terminal or clerk issuing a request.
// There is no authentication layer; the value is supplied by the client and
// only used for attribution in logs and the stock movement journal.
type Operator struct {
	ID       string
	Terminal string
}

type operatorKey struct{}

// WithOperator adds Operator to context.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// GetOperator returns Operator from context.
func GetOperator(ctx context.Context) *Operator {
	if v, ok := ctx.Value(operatorKey{}).(*Operator); ok {
		return v
	}
	return nil
}

// GetOperatorID returns operator ID from context or "system".
func GetOperatorID(ctx context.Context) string {
	if op := GetOperator(ctx); op != nil && op.ID != "" {
		return op.ID
	}
	return "system"
}
