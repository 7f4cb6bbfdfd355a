package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable    = "invoices"
	invoiceLineTable = "invoice_lines"
)

var invoiceLineColumns = postgres.ExtractDBColumns[invoice.Line]()

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	*BaseDocumentRepo[*invoice.Invoice]
	inserter *postgres.BatchInserter
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			invoicesTable,
			"invoice",
			postgres.ExtractDBColumns[invoice.Invoice](),
			func() *invoice.Invoice { return &invoice.Invoice{} },
		),
		inserter: postgres.NewBatchInserter(txm),
	}
}

// lineRows maps lines to COPY rows: invoice_id followed by invoiceLineColumns.
func lineRows(inv *invoice.Invoice) [][]any {
	rows := make([][]any, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		m := postgres.StructToMap(l)
		row := make([]any, 0, len(invoiceLineColumns)+1)
		row = append(row, inv.ID)
		for _, col := range invoiceLineColumns {
			row = append(row, m[col])
		}
		rows = append(rows, row)
	}
	return rows
}

// Create inserts the header and copies its lines in one transaction.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.BaseDocumentRepo.Create(ctx, inv, inv.Number); err != nil {
			return err
		}

		columns := append([]string{"invoice_id"}, invoiceLineColumns...)
		_, err := r.inserter.CopyFromSlice(ctx, invoiceLineTable, columns, lineRows(inv))
		return err
	})
}

// GetByID loads the header and its lines.
func (r *InvoiceRepo) GetByID(ctx context.Context, invID id.ID) (*invoice.Invoice, error) {
	inv, err := r.BaseDocumentRepo.GetByID(ctx, invID)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.Builder().
		Select(invoiceLineColumns...).
		From(invoiceLineTable).
		Where(squirrel.Eq{"invoice_id": invID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	inv.Lines = make([]invoice.Line, 0)
	if err := pgxscan.Select(ctx, r.Querier(ctx), &inv.Lines, sql, args...); err != nil {
		return nil, postgres.TranslateError("load invoice lines", err)
	}
	return inv, nil
}

func (r *InvoiceRepo) filterQuery(f invoice.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if f.Date != nil {
		q = q.Where(squirrel.Eq{"doc_date": *f.Date})
	}
	if f.PaymentMode != nil {
		q = q.Where(squirrel.Eq{"payment_mode": *f.PaymentMode})
	}
	return q
}

// List returns headers only; lines are loaded by GetByID.
func (r *InvoiceRepo) List(ctx context.Context, f invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	return r.BaseDocumentRepo.List(ctx, r.filterQuery(f), f.ListFilter, "patient_ref")
}

// soldQuantityQuery counts lines pinned to itemIDs plus unpinned lines of medicineKey.
func (r *InvoiceRepo) soldQuantityQuery(date types.Date, itemIDs []id.ID, medicineKey string) squirrel.SelectBuilder {
	match := squirrel.Or{}
	if len(itemIDs) > 0 {
		match = append(match, squirrel.Eq{"l.stock_item_id": itemIDs})
	}
	if medicineKey != "" {
		match = append(match, squirrel.And{
			squirrel.Eq{"l.stock_item_id": nil},
			squirrel.Eq{"l.medicine_key": medicineKey},
		})
	}

	return r.Builder().
		Select("COALESCE(SUM(l.quantity), 0)").
		From(invoiceLineTable + " l").
		Join(invoicesTable + " i ON i.id = l.invoice_id").
		Where(squirrel.Eq{"i.doc_date": date}).
		Where(match)
}

func (r *InvoiceRepo) SumSoldQuantity(ctx context.Context, date types.Date, itemIDs []id.ID, medicineKey string) (int64, error) {
	if len(itemIDs) == 0 && medicineKey == "" {
		return 0, nil
	}

	sql, args, err := r.soldQuantityQuery(date, itemIDs, medicineKey).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total int64
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, postgres.TranslateError("sum sold quantity", err)
	}
	return total, nil
}

type categoryTotal struct {
	Category stock.Category `db:"category"`
	Total    types.Money    `db:"total"`
}

func (r *InvoiceRepo) SalesByCategory(ctx context.Context, date types.Date) (map[stock.Category]types.Money, error) {
	var rows []categoryTotal
	err := pgxscan.Select(ctx, r.Querier(ctx), &rows, `
		SELECT COALESCE(NULLIF(l.category, ''), $2) AS category, SUM(l.amount) AS total
		FROM invoice_lines l
		JOIN invoices i ON i.id = l.invoice_id
		WHERE i.doc_date = $1
		GROUP BY 1
	`, date, stock.CategoryGeneral)
	if err != nil {
		return nil, postgres.TranslateError("sales by category", err)
	}

	out := make(map[stock.Category]types.Money, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Total
	}
	return out, nil
}
