package purchase_order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"clinicrx/internal/core/apperror"
	appctx "clinicrx/internal/core/context"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/lock"
	"clinicrx/internal/core/numerator"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/audit"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/pkg/logger"
)

var tracer = otel.Tracer("clinicrx/receiving")

// GRN is the goods receipt form submitted against a purchase order.
type GRN struct {
	// GRNNumber is generated (GRN-YYYY-NNNNN) when blank.
	GRNNumber string
	// GRNDate defaults to today.
	GRNDate types.Date
	Lines   []GRNLine
}

// GRNLine is what was physically received for one order line.
// Blank/zero fields fall back to what the order or the stock record holds.
type GRNLine struct {
	LineNo           int
	ReceivedQuantity int64
	BatchNo          string
	ExpiryDate       stock.Expiry
	CostPrice        types.Money
	MRP              types.Money
}

// OutcomeStatus tells the operator what happened to one line.
type OutcomeStatus string

const (
	// OutcomeApplied: stock was added to the resolved batch.
	OutcomeApplied OutcomeStatus = "applied"
	// OutcomeDegraded: batch bookkeeping failed and stock was added to the
	// order's original stock item instead.
	OutcomeDegraded OutcomeStatus = "degraded"
	// OutcomeSkipped: nothing received for the line, or the run stopped before it.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeFailed: neither path could apply the stock.
	OutcomeFailed OutcomeStatus = "failed"
)

// LineOutcome is the per-line result of a GRN run.
type LineOutcome struct {
	LineNo         int           `json:"lineNo"`
	MedicineName   string        `json:"medicineName"`
	OriginalItemID id.ID         `json:"originalStockItemId"`
	AppliedItemID  *id.ID        `json:"appliedStockItemId,omitempty"`
	NewBatch       bool          `json:"newBatch"`
	BatchNo        string        `json:"batchNo"`
	ExpiryDate     stock.Expiry  `json:"expiryDate"`
	CostPrice      types.Money   `json:"costPrice"`
	MRP            types.Money   `json:"mrp"`
	Quantity       int64         `json:"quantity"`
	StockAfter     int64         `json:"stockAfter"`
	Status         OutcomeStatus `json:"status"`
	Message        string        `json:"message,omitempty"`
}

// Receipt is the result of a GRN run, returned to the caller and audited.
type Receipt struct {
	PurchaseOrderID id.ID         `json:"purchaseOrderId"`
	PONumber        string        `json:"poNumber"`
	GRNNumber       string        `json:"grnNumber"`
	GRNDate         types.Date    `json:"grnDate"`
	Status          Status        `json:"status"`
	Lines           []LineOutcome `json:"lines"`
	Applied         int           `json:"applied"`
	Degraded        int           `json:"degraded"`
	Skipped         int           `json:"skipped"`
	Failed          int           `json:"failed"`
}

func (r *Receipt) add(o LineOutcome) {
	r.Lines = append(r.Lines, o)
	switch o.Status {
	case OutcomeApplied:
		r.Applied++
	case OutcomeDegraded:
		r.Degraded++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// ReceivedLines converts applied outcomes into line records for the order.
func (r *Receipt) ReceivedLines() []ReceivedLine {
	out := make([]ReceivedLine, 0, len(r.Lines))
	for _, o := range r.Lines {
		if o.AppliedItemID == nil {
			continue
		}
		out = append(out, ReceivedLine{
			LineNo:      o.LineNo,
			Quantity:    o.Quantity,
			StockItemID: *o.AppliedItemID,
			BatchNo:     o.BatchNo,
			ExpiryDate:  o.ExpiryDate,
			CostPrice:   o.CostPrice,
			MRP:         o.MRP,
			Outcome:     o.Status,
		})
	}
	return out
}

// Receiver runs the GRN pipeline.
type Receiver struct {
	repo      Repository
	stockRepo stock.Repository
	resolver  *stock.Resolver
	ledger    *stock.Ledger
	numerator numerator.Generator
	locker    lock.Locker
	lockTTL   time.Duration
	audit     audit.Recorder
	loc       *time.Location
}

// ReceiverConfig wires the pipeline. Locker and Audit are optional.
type ReceiverConfig struct {
	Repo      Repository
	StockRepo stock.Repository
	Resolver  *stock.Resolver
	Ledger    *stock.Ledger
	Numerator numerator.Generator
	Locker    lock.Locker
	LockTTL   time.Duration
	Audit     audit.Recorder
	// Location decides the calendar day of undated GRNs; nil means time.Local.
	Location *time.Location
}

func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.Nop{}
	}
	return &Receiver{
		repo:      cfg.Repo,
		stockRepo: cfg.StockRepo,
		resolver:  cfg.Resolver,
		ledger:    cfg.Ledger,
		numerator: cfg.Numerator,
		locker:    cfg.Locker,
		lockTTL:   cfg.LockTTL,
		audit:     cfg.Audit,
		loc:       cfg.Location,
	}
}

// Receive applies a GRN to a Pending purchase order.
//
// A Received order is rejected with ALREADY_PROCESSED before anything is
// written. Lines are applied strictly in order; the status flips to Received
// only after every line is done. If a line cannot be applied at all, the run
// stops, the order stays Pending and the partial Receipt is returned together
// with a TRANSIENT_WRITE_FAILURE error listing what was already applied.
func (r *Receiver) Receive(ctx context.Context, poID id.ID, grn GRN) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "purchase_order.receive")
	defer span.End()
	span.SetAttributes(attribute.String("po.id", poID.String()))

	if r.locker != nil {
		l, err := r.locker.Obtain(ctx, "grn:"+poID.String(), r.lockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrNotObtained) {
				return nil, apperror.NewConflict("Goods receipt for this purchase order is already in progress").
					WithDetail("purchase_order_id", poID.String())
			}
			return nil, fmt.Errorf("obtain receiving lock: %w", err)
		}
		defer func() {
			if err := l.Release(appctx.Detach(ctx)); err != nil {
				logger.Warn(ctx, "failed to release receiving lock", "po_id", poID, "error", err)
			}
		}()
	}

	po, err := r.repo.GetByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	// Idempotency guard on a fresh status read.
	status, err := r.repo.GetStatus(ctx, poID)
	if err != nil {
		return nil, err
	}
	if status == StatusReceived {
		logger.Info(ctx, "goods receipt rejected: already received",
			"po_id", po.ID, "po_number", po.Number, "grn_number", po.GRNNumber)
		return nil, apperror.NewAlreadyProcessed("purchase order", po.ID.String()).
			WithDetail("po_number", po.Number).
			WithDetail("grn_number", po.GRNNumber)
	}

	lines, err := indexLines(po, grn.Lines)
	if err != nil {
		return nil, err
	}

	originals, err := r.loadOriginals(ctx, po, lines)
	if err != nil {
		return nil, err
	}

	if grn.GRNDate.IsZero() {
		grn.GRNDate = types.Today(r.loc)
	}
	if grn.GRNNumber == "" {
		grn.GRNNumber, err = r.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixGoodsReceipt),
			&numerator.Options{Strategy: NumeratorStrategy}, grn.GRNDate.Time())
		if err != nil {
			return nil, fmt.Errorf("generate GRN number: %w", err)
		}
	}
	span.SetAttributes(attribute.String("grn.number", grn.GRNNumber))

	// From here on stock is being written: finish even if the caller goes away.
	runCtx := appctx.Detach(ctx)

	receipt := &Receipt{
		PurchaseOrderID: po.ID,
		PONumber:        po.Number,
		GRNNumber:       grn.GRNNumber,
		GRNDate:         grn.GRNDate,
		Status:          StatusPending,
	}
	rec := entity.Recorder{Type: entity.RecorderGoodsReceipt, ID: po.ID, Ref: grn.GRNNumber}

	var runErr error
	for _, item := range po.Items {
		if runErr != nil {
			receipt.add(LineOutcome{
				LineNo:         item.LineNo,
				MedicineName:   item.MedicineName,
				OriginalItemID: item.StockItemID,
				Status:         OutcomeSkipped,
				Message:        "not processed: run stopped at an earlier line",
			})
			continue
		}

		line, ok := lines[item.LineNo]
		if !ok || line.ReceivedQuantity <= 0 {
			receipt.add(LineOutcome{
				LineNo:         item.LineNo,
				MedicineName:   item.MedicineName,
				OriginalItemID: item.StockItemID,
				Status:         OutcomeSkipped,
				Message:        "nothing received",
			})
			continue
		}

		outcome, err := r.receiveLine(runCtx, po, item, line, originals[item.StockItemID], rec)
		receipt.add(outcome)
		if err != nil {
			runErr = err
		}
	}

	if runErr != nil {
		r.recordAudit(runCtx, receipt)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "line failed")
		logger.Error(ctx, "goods receipt stopped, order left pending",
			"po_id", po.ID,
			"po_number", po.Number,
			"grn_number", grn.GRNNumber,
			"applied", receipt.Applied,
			"degraded", receipt.Degraded,
			"error", runErr,
		)
		return receipt, apperror.NewTransientWrite("goods receipt", runErr).
			WithDetail("po_number", po.Number).
			WithDetail("grn_number", grn.GRNNumber).
			WithDetail("applied_lines", appliedLineNos(receipt)).
			WithDetail("lines", receipt.Lines)
	}

	if err := r.repo.SaveReceivedLines(runCtx, po.ID, receipt.ReceivedLines()); err != nil {
		logger.Error(ctx, "stock applied but received lines not saved, order left pending",
			"po_id", po.ID, "po_number", po.Number, "grn_number", grn.GRNNumber, "error", err)
		r.recordAudit(runCtx, receipt)
		return receipt, apperror.NewTransientWrite("save received lines", err).
			WithDetail("po_number", po.Number).
			WithDetail("applied_lines", appliedLineNos(receipt))
	}

	marked, err := r.repo.MarkReceived(runCtx, po.ID, grn.GRNNumber, grn.GRNDate)
	if err != nil {
		logger.Error(ctx, "stock applied but order status not updated",
			"po_id", po.ID, "po_number", po.Number, "grn_number", grn.GRNNumber, "error", err)
		r.recordAudit(runCtx, receipt)
		return receipt, apperror.NewTransientWrite("mark purchase order received", err).
			WithDetail("po_number", po.Number).
			WithDetail("applied_lines", appliedLineNos(receipt))
	}
	if !marked {
		// Another run flipped the status while this one was applying lines.
		logger.Error(ctx, "concurrent goods receipt detected, stock may be double counted",
			"po_id", po.ID, "po_number", po.Number, "grn_number", grn.GRNNumber)
		r.recordAudit(runCtx, receipt)
		return receipt, apperror.NewAlreadyProcessed("purchase order", po.ID.String()).
			WithDetail("po_number", po.Number).
			WithDetail("concurrent", true).
			WithDetail("applied_lines", appliedLineNos(receipt))
	}

	receipt.Status = StatusReceived
	r.recordAudit(runCtx, receipt)

	logger.Info(ctx, "goods received",
		"po_id", po.ID,
		"po_number", po.Number,
		"grn_number", grn.GRNNumber,
		"applied", receipt.Applied,
		"degraded", receipt.Degraded,
		"skipped", receipt.Skipped,
	)
	return receipt, nil
}

// receiveLine resolves the batch for one line and adds the quantity to it,
// falling back to the order's original stock item when that fails.
func (r *Receiver) receiveLine(ctx context.Context, po *PurchaseOrder, item Item, line GRNLine, original *stock.Batch, rec entity.Recorder) (LineOutcome, error) {
	eff := effectiveLine(item, line, original)

	out := LineOutcome{
		LineNo:         item.LineNo,
		MedicineName:   original.MedicineName,
		OriginalItemID: original.ID,
		BatchNo:        eff.BatchNo,
		ExpiryDate:     eff.ExpiryDate,
		CostPrice:      eff.CostPrice,
		MRP:            eff.MRP,
		Quantity:       line.ReceivedQuantity,
	}

	incoming := stock.Incoming{
		ExpiryDate:       eff.ExpiryDate,
		CostPrice:        eff.CostPrice,
		MRP:              eff.MRP,
		ReceivedQuantity: line.ReceivedQuantity,
		Category:         original.Category,
		Supplier:         po.Supplier,
		MinimumStock:     original.MinimumStock,
	}

	res, err := r.resolver.Resolve(ctx, original.MedicineName, eff.BatchNo, incoming)
	if err == nil {
		if !res.IsNew {
			// An existing batch keeps its own attributes unless the GRN line
			// states better ones; the order line's batch is not a source here.
			refreshed, rerr := r.resolver.Refresh(ctx, res.StockItemID, stock.Incoming{
				ExpiryDate: line.ExpiryDate,
				CostPrice:  line.CostPrice,
				MRP:        line.MRP,
				Supplier:   po.Supplier,
			})
			if rerr != nil {
				logger.Warn(ctx, "batch attributes not refreshed",
					"po_number", po.Number, "line_no", item.LineNo, "stock_item_id", res.StockItemID, "error", rerr)
			}
			if refreshed != nil {
				out.BatchNo = refreshed.BatchNo
				out.ExpiryDate = refreshed.ExpiryDate
				out.CostPrice = refreshed.UnitPrice
				out.MRP = refreshed.MRP
			}
		}
		var qty int64
		qty, err = r.ledger.ApplyDelta(ctx, res.StockItemID, line.ReceivedQuantity, rec)
		if err == nil {
			applied := res.StockItemID
			out.AppliedItemID = &applied
			out.NewBatch = res.IsNew
			out.StockAfter = qty
			out.Status = OutcomeApplied
			return out, nil
		}
	}

	logger.Warn(ctx, "batch resolution failed, applying receipt to original stock item",
		"po_number", po.Number,
		"line_no", item.LineNo,
		"medicine", original.MedicineName,
		"batch_no", eff.BatchNo,
		"original_stock_item_id", original.ID,
		"quantity", line.ReceivedQuantity,
		"error", err,
	)

	degradedRec := rec
	degradedRec.Ref = rec.Ref + " (degraded)"
	qty, ferr := r.ledger.ApplyDelta(ctx, original.ID, line.ReceivedQuantity, degradedRec)
	if ferr != nil {
		out.Status = OutcomeFailed
		out.Message = fmt.Sprintf("stock not changed: %v; fallback: %v", err, ferr)
		return out, ferr
	}

	applied := original.ID
	out.AppliedItemID = &applied
	out.BatchNo = original.BatchNo
	out.ExpiryDate = original.ExpiryDate
	out.StockAfter = qty
	out.Status = OutcomeDegraded
	out.Message = fmt.Sprintf("batch %q not resolved (%v); quantity added to batch %q", eff.BatchNo, err, original.BatchNo)
	return out, nil
}

// effectiveLine merges GRN input with the order line and its stored batch.
// The result names the batch to resolve and seeds it when it is new.
func effectiveLine(item Item, line GRNLine, original *stock.Batch) ReceivedLine {
	batchNo := stock.NormalizeBatchNo(line.BatchNo)
	if batchNo == "" {
		batchNo = original.BatchNo
	}

	expiry := stock.PreferValid(line.ExpiryDate, original.ExpiryDate)
	if expiry.IsBlank() {
		expiry = item.ExpiryDate
	}

	return ReceivedLine{
		LineNo:     item.LineNo,
		Quantity:   line.ReceivedQuantity,
		BatchNo:    batchNo,
		ExpiryDate: expiry,
		CostPrice:  types.FirstPositive(line.CostPrice, original.UnitPrice, item.UnitPrice),
		MRP:        types.FirstPositive(line.MRP, original.MRP, item.MRP),
	}
}

// indexLines validates GRN lines against the order before anything is written.
func indexLines(po *PurchaseOrder, lines []GRNLine) (map[int]GRNLine, error) {
	out := make(map[int]GRNLine, len(lines))
	for _, l := range lines {
		if _, ok := po.Item(l.LineNo); !ok {
			return nil, apperror.NewValidation("GRN line does not match any order line").
				WithDetail("lineNo", l.LineNo)
		}
		if _, dup := out[l.LineNo]; dup {
			return nil, apperror.NewValidation("GRN line listed twice").
				WithDetail("lineNo", l.LineNo)
		}
		if l.ReceivedQuantity < 0 {
			return nil, apperror.NewValidation("received quantity cannot be negative").
				WithDetail("lineNo", l.LineNo)
		}
		if l.CostPrice.IsNegative() || l.MRP.IsNegative() {
			return nil, apperror.NewValidation("prices cannot be negative").
				WithDetail("lineNo", l.LineNo)
		}
		out[l.LineNo] = l
	}
	return out, nil
}

// loadOriginals reads the stock rows referenced by lines that receive stock.
// A missing row aborts the run before any write.
func (r *Receiver) loadOriginals(ctx context.Context, po *PurchaseOrder, lines map[int]GRNLine) (map[id.ID]*stock.Batch, error) {
	out := make(map[id.ID]*stock.Batch)
	for _, item := range po.Items {
		if l, ok := lines[item.LineNo]; !ok || l.ReceivedQuantity <= 0 {
			continue
		}
		if _, seen := out[item.StockItemID]; seen {
			continue
		}
		b, err := r.stockRepo.GetByID(ctx, item.StockItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewNotFound("stock item", item.StockItemID.String()).
					WithDetail("po_number", po.Number).
					WithDetail("lineNo", item.LineNo)
			}
			return nil, err
		}
		out[item.StockItemID] = b
	}
	return out, nil
}

func (r *Receiver) recordAudit(ctx context.Context, receipt *Receipt) {
	entry := audit.NewEntry(ctx, DocumentType, receipt.PurchaseOrderID, audit.ActionReceive, receipt)
	if err := r.audit.Record(ctx, entry); err != nil {
		logger.Warn(ctx, "failed to write goods receipt audit entry",
			"po_id", receipt.PurchaseOrderID, "grn_number", receipt.GRNNumber, "error", err)
	}
}

func appliedLineNos(r *Receipt) []int {
	out := make([]int, 0, len(r.Lines))
	for _, o := range r.Lines {
		if o.Status == OutcomeApplied || o.Status == OutcomeDegraded {
			out = append(out, o.LineNo)
		}
	}
	return out
}
