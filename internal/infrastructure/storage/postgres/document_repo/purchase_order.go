package document_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable    = "purchase_orders"
	purchaseOrderLineTable = "purchase_order_lines"
)

var purchaseOrderLineColumns = []string{
	"po_id", "line_no", "stock_item_id", "medicine_name", "ordered_quantity",
	"unit_price", "mrp", "batch_no", "expiry_date",
}

// purchaseOrderLineRow is a line with its nullable received columns.
type purchaseOrderLineRow struct {
	purchase_order.Item

	ReceivedQuantity    *int64       `db:"received_quantity"`
	ReceivedStockItemID *id.ID       `db:"received_stock_item_id"`
	ReceivedBatchNo     *string      `db:"received_batch_no"`
	ReceivedExpiry      *string      `db:"received_expiry"`
	ReceivedCostPrice   *types.Money `db:"received_cost_price"`
	ReceivedMRP         *types.Money `db:"received_mrp"`
	ReceivedOutcome     *string      `db:"received_outcome"`
}

func (row purchaseOrderLineRow) toItem() purchase_order.Item {
	item := row.Item
	if row.ReceivedQuantity == nil {
		return item
	}

	rl := &purchase_order.ReceivedLine{
		LineNo:   item.LineNo,
		Quantity: *row.ReceivedQuantity,
	}
	if row.ReceivedStockItemID != nil {
		rl.StockItemID = *row.ReceivedStockItemID
	}
	if row.ReceivedBatchNo != nil {
		rl.BatchNo = *row.ReceivedBatchNo
	}
	if row.ReceivedExpiry != nil {
		rl.ExpiryDate = stock.Expiry(*row.ReceivedExpiry)
	}
	if row.ReceivedCostPrice != nil {
		rl.CostPrice = *row.ReceivedCostPrice
	}
	if row.ReceivedMRP != nil {
		rl.MRP = *row.ReceivedMRP
	}
	if row.ReceivedOutcome != nil {
		rl.Outcome = purchase_order.OutcomeStatus(*row.ReceivedOutcome)
	}
	item.Received = rl
	return item
}

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	*BaseDocumentRepo[*purchase_order.PurchaseOrder]
	inserter *postgres.BatchInserter
	batch    *postgres.BatchExecutor
}

var _ purchase_order.Repository = (*PurchaseOrderRepo)(nil)

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			purchaseOrdersTable,
			"purchase order",
			postgres.ExtractDBColumns[purchase_order.PurchaseOrder](),
			func() *purchase_order.PurchaseOrder { return &purchase_order.PurchaseOrder{} },
		),
		inserter: postgres.NewBatchInserter(txm),
		batch:    postgres.NewBatchExecutor(txm),
	}
}

// Create inserts the header and copies its lines in one transaction.
func (r *PurchaseOrderRepo) Create(ctx context.Context, po *purchase_order.PurchaseOrder) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.BaseDocumentRepo.Create(ctx, po, po.Number); err != nil {
			return err
		}

		rows := make([][]any, 0, len(po.Items))
		for _, it := range po.Items {
			rows = append(rows, []any{
				po.ID, it.LineNo, it.StockItemID, it.MedicineName, it.OrderedQuantity,
				it.UnitPrice, it.MRP, it.BatchNo, string(it.ExpiryDate),
			})
		}
		_, err := r.inserter.CopyFromSlice(ctx, purchaseOrderLineTable, purchaseOrderLineColumns, rows)
		return err
	})
}

// GetByID loads the header and its lines.
func (r *PurchaseOrderRepo) GetByID(ctx context.Context, poID id.ID) (*purchase_order.PurchaseOrder, error) {
	po, err := r.BaseDocumentRepo.GetByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, poID)
	if err != nil {
		return nil, err
	}
	po.Items = items
	return po, nil
}

func (r *PurchaseOrderRepo) loadItems(ctx context.Context, poID id.ID) ([]purchase_order.Item, error) {
	sql, args, err := r.Builder().
		Select(
			"line_no", "stock_item_id", "medicine_name", "ordered_quantity",
			"unit_price", "mrp", "batch_no", "expiry_date",
			"received_quantity", "received_stock_item_id", "received_batch_no",
			"received_expiry", "received_cost_price", "received_mrp", "received_outcome",
		).
		From(purchaseOrderLineTable).
		Where(squirrel.Eq{"po_id": poID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []purchaseOrderLineRow
	if err := pgxscan.Select(ctx, r.Querier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.TranslateError("load purchase order lines", err)
	}

	items := make([]purchase_order.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem())
	}
	return items, nil
}

// filterQuery applies purchase order specific filters.
func (r *PurchaseOrderRepo) filterQuery(f purchase_order.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if s := strings.TrimSpace(f.Supplier); s != "" {
		q = q.Where("LOWER(supplier) = LOWER(?)", s)
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"doc_date": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"doc_date": *f.DateTo})
	}
	return q
}

// List returns headers only; lines are loaded by GetByID.
func (r *PurchaseOrderRepo) List(ctx context.Context, f purchase_order.ListFilter) (domain.ListResult[*purchase_order.PurchaseOrder], error) {
	return r.BaseDocumentRepo.List(ctx, r.filterQuery(f), f.ListFilter, "supplier")
}

func (r *PurchaseOrderRepo) GetStatus(ctx context.Context, poID id.ID) (purchase_order.Status, error) {
	var status purchase_order.Status
	err := r.Querier(ctx).QueryRow(ctx,
		`SELECT status FROM purchase_orders WHERE id = $1`, poID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperror.NewNotFound("purchase order", poID.String())
		}
		return "", postgres.TranslateError("read purchase order status", err)
	}
	return status, nil
}

// receivedLineQueries builds one UPDATE per received line.
func receivedLineQueries(poID id.ID, lines []purchase_order.ReceivedLine) []postgres.BatchQuery {
	queries := make([]postgres.BatchQuery, 0, len(lines))
	for _, l := range lines {
		queries = append(queries, postgres.BatchQuery{
			SQL: `
				UPDATE purchase_order_lines
				SET received_quantity = $3,
				    received_stock_item_id = $4,
				    received_batch_no = $5,
				    received_expiry = $6,
				    received_cost_price = $7,
				    received_mrp = $8,
				    received_outcome = $9
				WHERE po_id = $1 AND line_no = $2
			`,
			Args: []any{
				poID, l.LineNo, l.Quantity, l.StockItemID, l.BatchNo,
				string(l.ExpiryDate), l.CostPrice, l.MRP, string(l.Outcome),
			},
			ExpectRows: 1,
		})
	}
	return queries
}

func (r *PurchaseOrderRepo) SaveReceivedLines(ctx context.Context, poID id.ID, lines []purchase_order.ReceivedLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return r.batch.ExecuteBatch(ctx, receivedLineQueries(poID, lines))
	})
}

func (r *PurchaseOrderRepo) MarkReceived(ctx context.Context, poID id.ID, grnNumber string, grnDate types.Date) (bool, error) {
	tag, err := r.Querier(ctx).Exec(ctx, `
		UPDATE purchase_orders
		SET status = $2, grn_number = $3, grn_date = $4, received_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $5
	`, poID, purchase_order.StatusReceived, grnNumber, grnDate, purchase_order.StatusPending)
	if err != nil {
		return false, postgres.TranslateError("mark purchase order received", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish a missing order from one that is no longer pending.
	if _, err := r.GetStatus(ctx, poID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PurchaseOrderRepo) SumReceivedQuantity(ctx context.Context, date types.Date, itemIDs []id.ID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	sql, args, err := r.Builder().
		Select("COALESCE(SUM(l.received_quantity), 0)").
		From(purchaseOrderLineTable + " l").
		Join(purchaseOrdersTable + " p ON p.id = l.po_id").
		Where(squirrel.Eq{
			"p.status":                 purchase_order.StatusReceived,
			"p.grn_date":               date,
			"l.received_stock_item_id": itemIDs,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total int64
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, postgres.TranslateError("sum received quantity", err)
	}
	return total, nil
}
