package register_repo

import (
	"strings"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
)

func TestStockRepo_ListQuery(t *testing.T) {
	repo := NewStockRepo(nil)

	tests := []struct {
		name      string
		filter    stock.ListFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filters",
			filter:    stock.ListFilter{},
			wantWhere: "FROM stock_batches ORDER BY medicine_key ASC, batch_no ASC",
		},
		{
			name:      "medicine in stock",
			filter:    stock.ListFilter{MedicineKey: "paracetamol 500mg", InStockOnly: true},
			wantWhere: "FROM stock_batches WHERE medicine_key = $1 AND current_stock > $2 ORDER BY medicine_key ASC, batch_no ASC",
			wantArgs:  []any{"paracetamol 500mg", 0},
		},
		{
			name:      "low stock by name with paging",
			filter:    stock.ListFilter{NameContains: "para", LowStockOnly: true, Limit: 10, Offset: 20},
			wantWhere: "FROM stock_batches WHERE medicine_name ILIKE $1 AND minimum_stock > 0 AND current_stock <= minimum_stock ORDER BY medicine_key ASC, batch_no ASC LIMIT 10 OFFSET 20",
			wantArgs:  []any{"%para%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter).ToSql()
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(sql, "SELECT id, "), sql)
			assert.True(t, strings.HasSuffix(sql, tt.wantWhere), sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestStockRepo_BatchColumnsCoverModel(t *testing.T) {
	for _, col := range []string{"id", "medicine_name", "medicine_key", "batch_no", "category", "current_stock", "minimum_stock", "unit_price", "mrp", "expiry_date", "supplier", "created_at", "updated_at"} {
		assert.Contains(t, batchColumns, col)
	}
}

func TestAttributesMap_OnlySetFields(t *testing.T) {
	price := types.MustMoney("12.50")
	supplier := "Medline"

	m := attributesMap(stock.Attributes{UnitPrice: &price, Supplier: &supplier})

	assert.Equal(t, price, m["unit_price"])
	assert.Equal(t, "Medline", m["supplier"])
	assert.IsType(t, squirrel.Expr("NOW()"), m["updated_at"])
	assert.NotContains(t, m, "mrp")
	assert.NotContains(t, m, "minimum_stock")
	assert.Len(t, m, 3)
}
