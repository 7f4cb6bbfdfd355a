package entity

import (
	"context"
	"strings"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/types"
)

// Document is the base type for clinic business documents
// (purchase orders, dispensing invoices).
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated when blank, unique within type)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date types.Date `db:"doc_date" json:"date"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document dated date.
func NewDocument(date types.Date) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         date,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	d.Number = strings.TrimSpace(d.Number)
	return nil
}

// HasNumber reports whether a number was supplied or already generated.
func (d *Document) HasNumber() bool {
	return strings.TrimSpace(d.Number) != ""
}
