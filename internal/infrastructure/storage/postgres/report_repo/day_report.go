// Package report_repo provides the PostgreSQL implementation of day report storage.
package report_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/reports"
	"clinicrx/internal/infrastructure/storage/postgres"
)

const (
	openingsTable = "day_report_openings"
	cashTable     = "day_report_cash"
)

// DayReportRepo implements reports.Repository.
type DayReportRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ reports.Repository = (*DayReportRepo)(nil)

// NewDayReportRepo creates a new day report repository.
func NewDayReportRepo(txm *postgres.TxManager) *DayReportRepo {
	return &DayReportRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *DayReportRepo) openingQuery(date types.Date, medicineKey string) squirrel.SelectBuilder {
	return r.builder.
		Select("quantity").
		From(openingsTable).
		Where(squirrel.Eq{"report_date": date, "medicine_key": medicineKey})
}

func (r *DayReportRepo) GetOpening(ctx context.Context, date types.Date, medicineKey string) (int64, bool, error) {
	sql, args, err := r.openingQuery(date, medicineKey).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build query: %w", err)
	}

	var rows []int64
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return 0, false, postgres.TranslateError("get opening stock", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0], true, nil
}

// saveOpeningQuery inserts the opening unless one exists and yields the
// stored quantity either way: the inserted row, else the existing one.
func (r *DayReportRepo) saveOpeningQuery(date types.Date, medicineKey string, qty int64) (string, []any, error) {
	insSQL, insArgs, err := squirrel.Insert(openingsTable).
		Columns("report_date", "medicine_key", "quantity", "created_at").
		Values(date, medicineKey, qty, squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (report_date, medicine_key) DO NOTHING RETURNING quantity").
		ToSql()
	if err != nil {
		return "", nil, err
	}

	return r.builder.
		Select("quantity").
		Prefix("WITH ins AS ("+insSQL+")", insArgs...).
		From("ins").
		Suffix("UNION ALL SELECT quantity FROM "+openingsTable+" WHERE report_date = ? AND medicine_key = ? LIMIT 1",
			date, medicineKey).
		ToSql()
}

// SaveOpeningIfAbsent stores qty unless a value exists; the stored value wins.
func (r *DayReportRepo) SaveOpeningIfAbsent(ctx context.Context, date types.Date, medicineKey string, qty int64) (int64, error) {
	sql, args, err := r.saveOpeningQuery(date, medicineKey, qty)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var stored int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&stored); err != nil {
		return 0, postgres.TranslateError("save opening stock", err)
	}
	return stored, nil
}

type openingRow struct {
	MedicineKey string `db:"medicine_key"`
	Quantity    int64  `db:"quantity"`
}

func (r *DayReportRepo) ListOpenings(ctx context.Context, date types.Date) (map[string]int64, error) {
	sql, args, err := r.builder.
		Select("medicine_key", "quantity").
		From(openingsTable).
		Where(squirrel.Eq{"report_date": date}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []openingRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.TranslateError("list opening stock", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.MedicineKey] = row.Quantity
	}
	return out, nil
}

var cashColumns = postgres.ExtractDBColumns[cashRow]()

// cashRow is the stored shape of reports.CashCount.
type cashRow struct {
	Denominations     []byte       `db:"denominations"`
	BankDeposits      types.Money  `db:"bank_deposits"`
	DigitalPayments   types.Money  `db:"digital_payments"`
	FeesCollected     types.Money  `db:"fees_collected"`
	OpeningCashInHand *types.Money `db:"opening_cash_in_hand"`
	Notes             string       `db:"notes"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func (r *DayReportRepo) GetCash(ctx context.Context, date types.Date) (*reports.CashCount, error) {
	sql, args, err := r.builder.
		Select(cashColumns...).
		From(cashTable).
		Where(squirrel.Eq{"report_date": date}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []cashRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.TranslateError("get cash count", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	cash := &reports.CashCount{
		Denominations:     make(map[string]int64),
		BankDeposits:      row.BankDeposits,
		DigitalPayments:   row.DigitalPayments,
		FeesCollected:     row.FeesCollected,
		OpeningCashInHand: row.OpeningCashInHand,
		Notes:             row.Notes,
		UpdatedAt:         row.UpdatedAt,
	}
	if len(row.Denominations) > 0 {
		if err := json.Unmarshal(row.Denominations, &cash.Denominations); err != nil {
			return nil, fmt.Errorf("decode denominations: %w", err)
		}
	}
	return cash, nil
}

// saveCashQuery upserts the cash sheet of one day.
func (r *DayReportRepo) saveCashQuery(date types.Date, cash reports.CashCount) (string, []any, error) {
	denominations := cash.Denominations
	if denominations == nil {
		denominations = map[string]int64{}
	}
	raw, err := json.Marshal(denominations)
	if err != nil {
		return "", nil, fmt.Errorf("encode denominations: %w", err)
	}

	return r.builder.
		Insert(cashTable).
		Columns("report_date", "denominations", "bank_deposits", "digital_payments", "fees_collected",
			"opening_cash_in_hand", "notes", "updated_at").
		Values(date, raw, cash.BankDeposits, cash.DigitalPayments, cash.FeesCollected,
			cash.OpeningCashInHand, cash.Notes, squirrel.Expr("NOW()")).
		Suffix(`ON CONFLICT (report_date) DO UPDATE SET
			denominations = EXCLUDED.denominations,
			bank_deposits = EXCLUDED.bank_deposits,
			digital_payments = EXCLUDED.digital_payments,
			fees_collected = EXCLUDED.fees_collected,
			opening_cash_in_hand = EXCLUDED.opening_cash_in_hand,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
}

func (r *DayReportRepo) SaveCash(ctx context.Context, date types.Date, cash reports.CashCount) error {
	sql, args, err := r.saveCashQuery(date, cash)
	if err != nil {
		return err
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError("save cash count", err)
	}
	return nil
}
