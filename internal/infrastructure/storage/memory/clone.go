package memory

import (
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/domain/reports"
)

func cloneBatch(b *stock.Batch) *stock.Batch {
	cp := *b
	return &cp
}

func clonePurchaseOrder(po *purchase_order.PurchaseOrder) *purchase_order.PurchaseOrder {
	cp := *po
	if po.ReceivedAt != nil {
		t := *po.ReceivedAt
		cp.ReceivedAt = &t
	}
	cp.Items = make([]purchase_order.Item, len(po.Items))
	for i, it := range po.Items {
		if it.Received != nil {
			r := *it.Received
			it.Received = &r
		}
		cp.Items[i] = it
	}
	return &cp
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.Lines = make([]invoice.Line, len(inv.Lines))
	for i, l := range inv.Lines {
		if l.StockItemID != nil {
			v := *l.StockItemID
			l.StockItemID = &v
		}
		cp.Lines[i] = l
	}
	return &cp
}

func cloneCash(c reports.CashCount) reports.CashCount {
	if c.Denominations != nil {
		d := make(map[string]int64, len(c.Denominations))
		for k, v := range c.Denominations {
			d[k] = v
		}
		c.Denominations = d
	}
	if c.OpeningCashInHand != nil {
		v := *c.OpeningCashInHand
		c.OpeningCashInHand = &v
	}
	return c
}
