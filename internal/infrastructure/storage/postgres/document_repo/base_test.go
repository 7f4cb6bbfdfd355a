package document_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
)

func TestParseOrderBy(t *testing.T) {
	repo := NewPurchaseOrderRepo(nil)

	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "", want: []string{"doc_date DESC", "number DESC"}},
		{in: "date", want: []string{"doc_date ASC", "number ASC"}},
		{in: "-date", want: []string{"doc_date DESC", "number DESC"}},
		{in: "+supplier", want: []string{"supplier ASC", "number ASC"}},
		{in: "-number", want: []string{"number DESC"}},
		{in: "-", wantErr: true},
		{in: "supplier; DROP TABLE purchase_orders", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := repo.parseOrderBy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPurchaseOrderRepo_ListQuery(t *testing.T) {
	repo := NewPurchaseOrderRepo(nil)
	pending := purchase_order.StatusPending

	f := purchase_order.ListFilter{
		ListFilter: domain.ListFilter{Search: "PO-1", OrderBy: "date", Limit: 10},
		Status:     &pending,
		Supplier:   "Medline",
	}

	q, countQ, err := repo.listQuery(repo.filterQuery(f), f.ListFilter, "supplier")
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "SELECT id, created_at"), sql)
	assert.True(t, strings.HasSuffix(sql,
		"FROM purchase_orders WHERE status = $1 AND LOWER(supplier) = LOWER($2) AND (number ILIKE $3 OR supplier ILIKE $4) ORDER BY doc_date ASC, number ASC LIMIT 10"), sql)
	assert.Equal(t, []any{pending, "Medline", "%PO-1%", "%PO-1%"}, args)

	countSQL, countArgs, err := countQ.ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(countSQL, "SELECT COUNT(*) FROM (SELECT"), countSQL)
	assert.NotContains(t, countSQL, "ORDER BY")
	assert.Len(t, countArgs, 4)
}

func TestReceivedLineQueries(t *testing.T) {
	poID := id.New()
	itemID := id.New()
	lines := []purchase_order.ReceivedLine{
		{LineNo: 1, Quantity: 40, StockItemID: itemID, BatchNo: "B1", ExpiryDate: "2026-01", CostPrice: types.MustMoney("2.5"), MRP: types.MustMoney("4"), Outcome: purchase_order.OutcomeApplied},
		{LineNo: 2, Quantity: 5, StockItemID: itemID, BatchNo: "B2", Outcome: purchase_order.OutcomeDegraded},
	}

	queries := receivedLineQueries(poID, lines)

	require.Len(t, queries, 2)
	assert.Contains(t, queries[0].SQL, "WHERE po_id = $1 AND line_no = $2")
	assert.Equal(t, int64(1), queries[0].ExpectRows)
	assert.Equal(t, []any{poID, 1, int64(40), itemID, "B1", "2026-01", types.MustMoney("2.5"), types.MustMoney("4"), "applied"}, queries[0].Args)
	assert.Equal(t, "degraded", queries[1].Args[8])
}

func TestInvoiceRepo_SoldQuantityQuery(t *testing.T) {
	repo := NewInvoiceRepo(nil)
	day := types.MustDate("2024-05-10")
	itemID := id.New()

	sql, args, err := repo.soldQuantityQuery(day, []id.ID{itemID}, "paracetamol 500mg").ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COALESCE(SUM(l.quantity), 0) FROM invoice_lines l JOIN invoices i ON i.id = l.invoice_id "+
			"WHERE i.doc_date = $1 AND (l.stock_item_id IN ($2) OR (l.stock_item_id IS NULL AND l.medicine_key = $3))",
		sql)
	require.Len(t, args, 3)
	assert.Equal(t, day.Time(), args[0])
	assert.Equal(t, itemID, args[1])
	assert.Equal(t, "paracetamol 500mg", args[2])
}

func TestInvoiceLineRows(t *testing.T) {
	inv := invoice.NewInvoice(types.MustDate("2024-05-10"), invoice.PaymentCash)
	itemID := id.New()
	inv.AddLine(invoice.Line{MedicineName: "Paracetamol 500mg", StockItemID: &itemID, Quantity: 2, UnitPrice: types.MustMoney("3"), Category: stock.CategoryGeneral})
	inv.RecalculateTotals()

	rows := lineRows(inv)

	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(invoiceLineColumns)+1)
	assert.Equal(t, inv.ID, rows[0][0])
	for i, col := range invoiceLineColumns {
		switch col {
		case "line_no":
			assert.Equal(t, 1, rows[0][i+1])
		case "quantity":
			assert.Equal(t, int64(2), rows[0][i+1])
		case "medicine_key":
			assert.Equal(t, "paracetamol 500mg", rows[0][i+1])
		}
	}
}
