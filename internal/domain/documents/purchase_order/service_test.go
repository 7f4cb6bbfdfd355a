package purchase_order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/documents/purchase_order"
)

func TestService_CreateCopiesMedicineName(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.batch(t, "Escitalopram 10mg", "E1", 0, "")

	po, err := f.svc.Create(ctx, purchase_order.CreateInput{
		Supplier:  " Acme Pharma ",
		OrderDate: types.MustDate("2026-10-01"),
		Items: []purchase_order.Item{{
			StockItemID:     a.ID,
			MedicineName:    "whatever the form said",
			OrderedQuantity: 30,
			UnitPrice:       types.MustMoney("2.10"),
			BatchNo:         " e2 ",
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "PO-2026-00001", po.Number)
	assert.Equal(t, "Acme Pharma", po.Supplier)
	assert.Equal(t, purchase_order.StatusPending, po.Status)
	assert.Equal(t, "Escitalopram 10mg", po.Items[0].MedicineName)
	assert.Equal(t, "E2", po.Items[0].BatchNo)
	assert.True(t, types.MustMoney("63.00").Equal(po.TotalAmount()))
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.batch(t, "Escitalopram 10mg", "E1", 0, "")
	date := types.MustDate("2026-10-01")

	tests := []struct {
		name string
		in   purchase_order.CreateInput
		code string
	}{
		{"no supplier", purchase_order.CreateInput{OrderDate: date,
			Items: []purchase_order.Item{{StockItemID: a.ID, OrderedQuantity: 1}}}, apperror.CodeValidation},
		{"no items", purchase_order.CreateInput{Supplier: "Acme", OrderDate: date}, apperror.CodeValidation},
		{"zero quantity", purchase_order.CreateInput{Supplier: "Acme", OrderDate: date,
			Items: []purchase_order.Item{{StockItemID: a.ID}}}, apperror.CodeValidation},
		{"unknown stock item", purchase_order.CreateInput{Supplier: "Acme", OrderDate: date,
			Items: []purchase_order.Item{{StockItemID: id.New(), OrderedQuantity: 1}}}, apperror.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.in)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestService_CreateDefaultsDateToBusinessDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.batch(t, "Escitalopram 10mg", "E1", 0, "")
	east := time.FixedZone("UTC+14", 14*60*60)
	west := time.FixedZone("UTC-12", -12*60*60)
	f.svc.WithLocation(east)

	before := types.Today(east)
	po, err := f.svc.Create(ctx, purchase_order.CreateInput{
		Supplier: "Acme",
		Items:    []purchase_order.Item{{StockItemID: a.ID, OrderedQuantity: 1}},
	})
	require.NoError(t, err)

	assert.Contains(t, []types.Date{before, types.Today(east)}, po.Date)
	assert.NotEqual(t, types.Today(west), po.Date)
}

func TestService_ListByStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.batch(t, "Escitalopram 10mg", "E1", 0, "")
	first := f.order(t, purchase_order.Item{StockItemID: a.ID, OrderedQuantity: 1})
	f.order(t, purchase_order.Item{StockItemID: a.ID, OrderedQuantity: 2})

	_, err := f.receiver.Receive(ctx, first.ID, purchase_order.GRN{
		Lines: []purchase_order.GRNLine{{LineNo: 1, ReceivedQuantity: 1}},
	})
	require.NoError(t, err)

	pending := purchase_order.StatusPending
	res, err := f.svc.List(ctx, purchase_order.ListFilter{
		ListFilter: domain.ListFilter{Limit: 10},
		Status:     &pending,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalCount)
	assert.NotEqual(t, first.ID, res.Items[0].ID)
}
