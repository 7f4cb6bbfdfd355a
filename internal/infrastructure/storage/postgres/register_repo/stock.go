// Package register_repo provides the PostgreSQL implementation of the stock register.
package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/storage/postgres"
)

const (
	stockBatchesTable   = "stock_batches"
	stockMovementsTable = "stock_movements"

	// batchKeyConstraint is the unique index on (medicine_key, batch_no).
	batchKeyConstraint = "stock_batches_medicine_key_batch_no_key"
)

var batchColumns = postgres.ExtractDBColumns[stock.Batch]()

var movementColumns = []string{
	"line_id", "stock_item_id", "record_type",
	"recorder_type", "recorder_id", "recorder_ref",
	"delta", "quantity_after", "anomaly", "operator_id", "created_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) Create(ctx context.Context, b *stock.Batch) error {
	data := postgres.StructToMap(b)

	sql, args, err := r.builder.Insert(stockBatchesTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, batchKeyConstraint) {
			return apperror.NewDuplicate("stock batch", "medicine_key,batch_no", b.MedicineKey+"/"+b.BatchNo)
		}
		return postgres.TranslateError("insert stock batch", err)
	}
	return nil
}

func (r *StockRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(batchColumns...).From(stockBatchesTable)
}

func (r *StockRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, notFound func() error) (*stock.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b stock.Batch
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, notFound()
		}
		return nil, postgres.TranslateError("get stock batch", err)
	}
	return &b, nil
}

func (r *StockRepo) GetByID(ctx context.Context, itemID id.ID) (*stock.Batch, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": itemID}), func() error {
		return apperror.NewNotFound("stock item", itemID.String())
	})
}

func (r *StockRepo) FindByKey(ctx context.Context, medicineKey, batchNo string) (*stock.Batch, error) {
	q := r.baseSelect().Where(squirrel.Eq{"medicine_key": medicineKey, "batch_no": batchNo})
	return r.getOne(ctx, q, func() error {
		return apperror.NewNotFound("stock batch", medicineKey+"/"+batchNo)
	})
}

// listQuery builds the filtered SELECT; split out for tests.
func (r *StockRepo) listQuery(f stock.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()

	if len(f.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": f.IDs})
	}
	if f.MedicineKey != "" {
		q = q.Where(squirrel.Eq{"medicine_key": f.MedicineKey})
	}
	if f.NameContains != "" {
		q = q.Where(squirrel.ILike{"medicine_name": "%" + f.NameContains + "%"})
	}
	if f.InStockOnly {
		q = q.Where(squirrel.Gt{"current_stock": 0})
	}
	if f.LowStockOnly {
		q = q.Where("minimum_stock > 0 AND current_stock <= minimum_stock")
	}

	q = q.OrderBy("medicine_key ASC", "batch_no ASC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func (r *StockRepo) List(ctx context.Context, f stock.ListFilter) ([]*stock.Batch, error) {
	sql, args, err := r.listQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]*stock.Batch, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.TranslateError("list stock batches", err)
	}
	return items, nil
}

// attributesMap maps non-nil attributes to columns.
func attributesMap(attrs stock.Attributes) map[string]any {
	set := make(map[string]any, 7)
	if attrs.UnitPrice != nil {
		set["unit_price"] = *attrs.UnitPrice
	}
	if attrs.MRP != nil {
		set["mrp"] = *attrs.MRP
	}
	if attrs.ExpiryDate != nil {
		set["expiry_date"] = *attrs.ExpiryDate
	}
	if attrs.Supplier != nil {
		set["supplier"] = *attrs.Supplier
	}
	if attrs.Category != nil {
		set["category"] = *attrs.Category
	}
	if attrs.MinimumStock != nil {
		set["minimum_stock"] = *attrs.MinimumStock
	}
	set["updated_at"] = squirrel.Expr("NOW()")
	return set
}

func (r *StockRepo) UpdateAttributes(ctx context.Context, itemID id.ID, attrs stock.Attributes) error {
	sql, args, err := r.builder.Update(stockBatchesTable).
		SetMap(attributesMap(attrs)).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError("update stock attributes", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock item", itemID.String())
	}
	return nil
}

func (r *StockRepo) GetCurrentStock(ctx context.Context, itemID id.ID) (int64, error) {
	var qty int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT current_stock FROM stock_batches WHERE id = $1`, itemID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewNotFound("stock item", itemID.String())
		}
		return 0, postgres.TranslateError("read current stock", err)
	}
	return qty, nil
}

func (r *StockRepo) SetCurrentStock(ctx context.Context, itemID id.ID, qty int64) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`UPDATE stock_batches SET current_stock = $2, updated_at = NOW() WHERE id = $1`, itemID, qty)
	if err != nil {
		return postgres.TranslateError("set current stock", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock item", itemID.String())
	}
	return nil
}

// AddStock applies delta in one statement so concurrent writers never lose updates.
func (r *StockRepo) AddStock(ctx context.Context, itemID id.ID, delta int64) (int64, error) {
	var qty int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		UPDATE stock_batches
		SET current_stock = current_stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING current_stock
	`, itemID, delta).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewNotFound("stock item", itemID.String())
		}
		return 0, postgres.TranslateError("add stock", err)
	}
	return qty, nil
}

func (r *StockRepo) SubtractIfAvailable(ctx context.Context, itemID id.ID, qty int64) (int64, bool, error) {
	var newQty int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		UPDATE stock_batches
		SET current_stock = current_stock - $2, updated_at = NOW()
		WHERE id = $1 AND current_stock >= $2
		RETURNING current_stock
	`, itemID, qty).Scan(&newQty)
	if err == nil {
		return newQty, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, postgres.TranslateError("subtract stock", err)
	}

	// Either the row is missing or stock is short.
	current, err := r.GetCurrentStock(ctx, itemID)
	if err != nil {
		return 0, false, err
	}
	return current, false, nil
}

func (r *StockRepo) RecordMovement(ctx context.Context, m entity.StockMovement) error {
	sql, args, err := r.builder.Insert(stockMovementsTable).
		Columns(movementColumns...).
		Values(
			m.LineID, m.StockItemID, m.RecordType,
			m.Recorder.Type, m.Recorder.ID, m.Recorder.Ref,
			m.Delta, m.QuantityAfter, m.Anomaly, m.OperatorID, m.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError("record stock movement", err)
	}
	return nil
}

func (r *StockRepo) ListMovements(ctx context.Context, itemID id.ID, limit int) ([]entity.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"stock_item_id": itemID}).
		OrderBy("created_at DESC", "line_id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]entity.StockMovement, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, postgres.TranslateError("list stock movements", err)
	}
	return out, nil
}

func (r *StockRepo) SumStockByMedicine(ctx context.Context, medicineKey string) (int64, error) {
	var total int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(current_stock), 0) FROM stock_batches WHERE medicine_key = $1`,
		medicineKey).Scan(&total)
	if err != nil {
		return 0, postgres.TranslateError("sum stock by medicine", err)
	}
	return total, nil
}

// ListMedicines names each medicine after its earliest created batch row.
func (r *StockRepo) ListMedicines(ctx context.Context) ([]stock.Medicine, error) {
	out := make([]stock.Medicine, 0)
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, `
		SELECT DISTINCT ON (medicine_key) medicine_key, medicine_name
		FROM stock_batches
		ORDER BY medicine_key, created_at, id
	`)
	if err != nil {
		return nil, postgres.TranslateError("list medicines", err)
	}
	return out, nil
}

func (r *StockRepo) ItemIDsByMedicine(ctx context.Context, medicineKey string) ([]id.ID, error) {
	rows, err := r.txm.GetQuerier(ctx).Query(ctx,
		`SELECT id FROM stock_batches WHERE medicine_key = $1 ORDER BY id::text`, medicineKey)
	if err != nil {
		return nil, postgres.TranslateError("list stock item ids", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[id.ID])
	if err != nil {
		return nil, postgres.TranslateError("scan stock item ids", err)
	}
	return ids, nil
}
