package report_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/reports"
)

var day = types.MustDate("2026-10-12")

func TestDayReportRepo_OpeningQuery(t *testing.T) {
	repo := NewDayReportRepo(nil)

	sql, args, err := repo.openingQuery(day, "diazepam 5mg").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT quantity FROM day_report_openings WHERE medicine_key = $1 AND report_date = $2", sql)
	// squirrel.Eq resolves driver.Valuer arguments.
	assert.Equal(t, []any{"diazepam 5mg", day.Time()}, args)
}

func TestDayReportRepo_SaveOpeningKeepsStoredValue(t *testing.T) {
	repo := NewDayReportRepo(nil)

	sql, args, err := repo.saveOpeningQuery(day, "diazepam 5mg", 20)
	require.NoError(t, err)

	// The insert never overwrites: a conflicting row leaves ins empty and
	// the stored quantity is read back instead.
	assert.True(t, strings.HasPrefix(sql,
		"WITH ins AS (INSERT INTO day_report_openings (report_date,medicine_key,quantity,created_at) VALUES ($1,$2,$3,NOW())"), sql)
	assert.Contains(t, sql, "ON CONFLICT (report_date, medicine_key) DO NOTHING RETURNING quantity)")
	assert.NotContains(t, sql, "DO UPDATE")
	assert.Contains(t, sql, "SELECT quantity FROM ins UNION ALL SELECT quantity FROM day_report_openings WHERE report_date = $4 AND medicine_key = $5 LIMIT 1")
	assert.Equal(t, []any{day, "diazepam 5mg", int64(20), day, "diazepam 5mg"}, args)
}

func TestDayReportRepo_SaveCashQuery(t *testing.T) {
	repo := NewDayReportRepo(nil)
	cash := reports.CashCount{
		BankDeposits: types.MustMoney("100.00"),
		Notes:        "night shift",
	}

	sql, args, err := repo.saveCashQuery(day, cash)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO day_report_cash (report_date,denominations,bank_deposits,"), sql)
	assert.Contains(t, sql, "VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())")
	assert.Contains(t, sql, "ON CONFLICT (report_date) DO UPDATE SET")
	require.Len(t, args, 7)
	assert.Equal(t, day, args[0])
	assert.Equal(t, []byte("{}"), args[1], "missing denominations stored as an empty object")
	assert.Equal(t, "night shift", args[6])
}

func TestDayReportRepo_CashColumns(t *testing.T) {
	assert.Equal(t, []string{
		"denominations", "bank_deposits", "digital_payments", "fees_collected",
		"opening_cash_in_hand", "notes", "updated_at",
	}, cashColumns)
}
