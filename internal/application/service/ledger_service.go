package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/dukasoft/tillpoint-api/internal/application/collaborator"
	"github.com/dukasoft/tillpoint-api/internal/application/sideeffect"
	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/internal/locking"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Settlement mode values for LedgerPolicies.SettlementMode.
const (
	SettlementModeManual = "manual"
	SettlementModeAuto   = "auto"
)

// Void policy values for LedgerPolicies.VoidPolicy.
const (
	VoidPreSettlementOnly = "pre_settlement_only"
	VoidUntilPeriodClose  = "until_period_close"
)

// LedgerPolicies carries the deployment-configurable ledger behavior.
type LedgerPolicies struct {
	// SettlementMode decides the initial receipt state: manual deployments
	// start receipts Pending, auto-settle-on-print deployments start Created.
	SettlementMode string
	// VoidPolicy decides whether a Settled receipt may still be voided.
	VoidPolicy string
	// AllowOversell keeps a void in place even when the stock reversal fails.
	AllowOversell bool
	// ConflictRetries bounds the retry loop around version-conditional writes.
	ConflictRetries int
	// VATBasisPoints is the tax rate applied to item lines, e.g. 1600 = 16%.
	VATBasisPoints int64
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Discount  int64 // cents
}

// PaymentInput is one tender presented at settlement.
type PaymentInput struct {
	Method         enum.PaymentMethod
	Amount         int64 // cents
	Reference      *string
	IdempotencyKey string
}

// SplitAllocation selects one of the two split modes. When ItemAssignments is
// non-empty the split is by item (item id -> target index); otherwise the
// total is divided into Parts equal shares.
type SplitAllocation struct {
	Parts           int
	ItemAssignments map[uuid.UUID]int
}

// ReceiptDetail bundles a receipt with its order, payments and lineage for
// read endpoints.
type ReceiptDetail struct {
	Receipt  *entity.Receipt  `json:"receipt"`
	Order    *entity.Order    `json:"order,omitempty"`
	Payments []entity.Payment `json:"payments,omitempty"`
	Children []uuid.UUID      `json:"child_receipt_ids,omitempty"`
}

// LedgerService owns the receipt state machine. Every mutation runs inside
// the receipt's keyed mutex and the period gate, writes are conditional on
// the receipt version, and each transition is audited.
type LedgerService struct {
	receipts   repository.ReceiptRepository
	orders     repository.OrderRepository
	periods    repository.WorkPeriodRepository
	products   repository.ProductRepository
	inventory  collaborator.Inventory
	settlement *SettlementService
	guard      *GuardService
	audit      *AuditService
	dispatcher *sideeffect.Dispatcher
	locks      *locking.KeyedMutex
	gate       *locking.PeriodGate
	logger     *logrus.Logger
	policies   LedgerPolicies
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	receipts repository.ReceiptRepository,
	orders repository.OrderRepository,
	periods repository.WorkPeriodRepository,
	products repository.ProductRepository,
	inventory collaborator.Inventory,
	settlement *SettlementService,
	guard *GuardService,
	audit *AuditService,
	dispatcher *sideeffect.Dispatcher,
	locks *locking.KeyedMutex,
	gate *locking.PeriodGate,
	logger *logrus.Logger,
	policies LedgerPolicies,
) *LedgerService {
	if policies.ConflictRetries <= 0 {
		policies.ConflictRetries = 3
	}
	s := &LedgerService{
		receipts:   receipts,
		orders:     orders,
		periods:    periods,
		products:   products,
		inventory:  inventory,
		settlement: settlement,
		guard:      guard,
		audit:      audit,
		dispatcher: dispatcher,
		locks:      locks,
		gate:       gate,
		logger:     logger,
		policies:   policies,
	}
	settlement.SetCaptureHandler(s.FinalizeCapture)
	return s
}

// Create opens a new order and its receipt in the currently open work period
// for the register group. The initial state follows the settlement mode.
func (s *LedgerService) Create(ctx context.Context, actor Actor, registerGroup string, items []ItemInput) (*entity.Receipt, error) {
	if len(items) == 0 {
		return nil, apperror.NewBadRequestError("At least one item is required")
	}

	period, err := s.openPeriod(ctx, registerGroup)
	if err != nil {
		return nil, err
	}
	release := s.gate.Enter(period.ID)
	defer release()
	// Re-check after entering the gate: a close may have slipped in between
	// the lookup and the RLock.
	if err := s.ensureOpen(ctx, period.ID); err != nil {
		return nil, err
	}

	order := &entity.Order{
		WorkPeriodID: period.ID,
		OwnerID:      actor.ID,
		LastBatch:    1,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	lines, err := s.priceItems(ctx, order.ID, 1, items)
	if err != nil {
		return nil, err
	}
	if err := s.orders.AppendItems(ctx, lines); err != nil {
		return nil, err
	}

	state := enum.ReceiptStatePending
	if s.policies.SettlementMode == SettlementModeAuto {
		state = enum.ReceiptStateCreated
	}

	receipt := &entity.Receipt{
		OrderID:      order.ID,
		WorkPeriodID: period.ID,
		OwnerID:      actor.ID,
		State:        state,
		Total:        lineTotal(lines),
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      actor.ID,
		Action:     enum.AuditActionReceiptCreate,
		EntityType: "receipt",
		EntityID:   receipt.ID,
		After:      receipt,
	})
	s.dispatcher.EnqueueTicket(ctx, receipt.ID, lines)

	return receipt, nil
}

// AddItems appends a new item batch to a mutable receipt and returns only the
// newly added items, so kitchen tickets never re-emit earlier batches.
func (s *LedgerService) AddItems(ctx context.Context, actor Actor, receiptID uuid.UUID, items []ItemInput, overrideToken string) ([]entity.OrderItem, error) {
	if len(items) == 0 {
		return nil, apperror.NewBadRequestError("At least one item is required")
	}

	unlock := s.locks.Lock(receiptID)
	defer unlock()

	receipt, err := s.getReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if !receipt.State.IsMutable() {
		return nil, apperror.NewStateConflictError(fmt.Sprintf("Cannot add items to a %s receipt", receipt.State))
	}

	release := s.gate.Enter(receipt.WorkPeriodID)
	defer release()
	if err := s.ensureOpen(ctx, receipt.WorkPeriodID); err != nil {
		return nil, err
	}

	authorizedBy, err := s.guard.Authorize(ctx, receipt, actor, overrideToken)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetWithItems(ctx, receipt.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}

	batch := order.LastBatch + 1
	lines, err := s.priceItems(ctx, order.ID, batch, items)
	if err != nil {
		return nil, err
	}
	if err := s.orders.AppendItems(ctx, lines); err != nil {
		return nil, err
	}
	order.LastBatch = batch
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	added := lineTotal(lines)
	if err := s.saveReceipt(ctx, receipt, func(r *entity.Receipt) {
		r.Total += added
	}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:        actor.ID,
		AuthorizedBy: authorizedBy,
		Action:       enum.AuditActionReceiptItems,
		EntityType:   "receipt",
		EntityID:     receipt.ID,
		After:        receipt,
	})
	s.dispatcher.EnqueueTicket(ctx, receipt.ID, lines)

	return lines, nil
}

// Settle applies the presented tenders and transitions the receipt to
// Settled. Coverage is validated before anything is written: if the tenders
// plus previously captured payments do not cover the total, the call fails
// with InsufficientPayment and no state changes. Stock is deducted before the
// state write and restored if the write fails.
func (s *LedgerService) Settle(ctx context.Context, actor Actor, receiptID uuid.UUID, payments []PaymentInput, overrideToken string) (*entity.Receipt, error) {
	unlock := s.locks.Lock(receiptID)
	defer unlock()

	receipt, err := s.getReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt.State == enum.ReceiptStateSettled {
		return nil, apperror.NewStateConflictError("Receipt is already settled")
	}
	if !receipt.State.IsMutable() {
		return nil, apperror.NewStateConflictError(fmt.Sprintf("Cannot settle a %s receipt", receipt.State))
	}

	release := s.gate.Enter(receipt.WorkPeriodID)
	defer release()
	if err := s.ensureOpen(ctx, receipt.WorkPeriodID); err != nil {
		return nil, err
	}

	authorizedBy, err := s.guard.Authorize(ctx, receipt, actor, overrideToken)
	if err != nil {
		return nil, err
	}

	captured, err := s.settlement.CapturedTotal(ctx, receipt.ID)
	if err != nil {
		return nil, err
	}
	var offered int64
	for _, p := range payments {
		offered += p.Amount
	}
	if captured+offered < receipt.Total {
		return nil, apperror.ErrInsufficientPayment
	}

	unlockOrder := s.locks.Lock(receipt.OrderID)
	defer unlockOrder()

	order, err := s.orders.GetWithItems(ctx, receipt.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}
	quantities := stockQuantities(order)

	claimed, err := s.claimStock(ctx, order, quantities, receipt.ID)
	if err != nil {
		return nil, err
	}

	receipt.PaidAmount = captured
	for _, p := range payments {
		payment, replay, err := s.settlement.ApplyPayment(ctx, receipt, p.Method, p.Amount, p.Reference, p.IdempotencyKey)
		if err != nil {
			s.unclaimStock(ctx, order, quantities, receipt.ID, claimed)
			return nil, err
		}
		if !replay {
			receipt.PaidAmount += payment.Amount
		}
	}

	paid := receipt.PaidAmount
	var change int64
	if paid > receipt.Total {
		change = paid - receipt.Total
	}

	before := *receipt
	if err := s.saveReceipt(ctx, receipt, func(r *entity.Receipt) {
		r.State = enum.ReceiptStateSettled
		r.PaidAmount = paid
		r.ChangeGiven = change
	}); err != nil {
		s.unclaimStock(ctx, order, quantities, receipt.ID, claimed)
		return nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:        actor.ID,
		AuthorizedBy: authorizedBy,
		Action:       enum.AuditActionReceiptSettle,
		EntityType:   "receipt",
		EntityID:     receipt.ID,
		Before:       before,
		After:        receipt,
	})
	s.dispatcher.EnqueueReceiptPrint(ctx, receipt.ID)

	return receipt, nil
}

// FinalizeCapture finishes a settlement once an asynchronous capture
// confirms. If the captured payments now cover the total, the receipt
// transitions to Settled exactly as in the synchronous path.
func (s *LedgerService) FinalizeCapture(ctx context.Context, receiptID uuid.UUID) error {
	unlock := s.locks.Lock(receiptID)
	defer unlock()

	receipt, err := s.getReceipt(ctx, receiptID)
	if err != nil {
		return err
	}
	if !receipt.State.IsMutable() {
		// Voided between initiation and confirmation; nothing to finish.
		return nil
	}

	release := s.gate.Enter(receipt.WorkPeriodID)
	defer release()
	// A confirmation that arrives after the period closed cannot settle the
	// receipt. The captured payment stays on record for manual reconciliation.
	if err := s.ensureOpen(ctx, receipt.WorkPeriodID); err != nil {
		return err
	}

	captured, err := s.settlement.CapturedTotal(ctx, receipt.ID)
	if err != nil {
		return err
	}
	if captured < receipt.Total {
		// Partial async tender: record progress and stay open.
		return s.saveReceipt(ctx, receipt, func(r *entity.Receipt) {
			r.PaidAmount = captured
		})
	}

	unlockOrder := s.locks.Lock(receipt.OrderID)
	defer unlockOrder()

	order, err := s.orders.GetWithItems(ctx, receipt.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return apperror.NewNotFoundError("Order")
	}
	quantities := stockQuantities(order)
	claimed, err := s.claimStock(ctx, order, quantities, receipt.ID)
	if err != nil {
		return err
	}

	var change int64
	if captured > receipt.Total {
		change = captured - receipt.Total
	}
	if err := s.saveReceipt(ctx, receipt, func(r *entity.Receipt) {
		r.State = enum.ReceiptStateSettled
		r.PaidAmount = captured
		r.ChangeGiven = change
	}); err != nil {
		s.unclaimStock(ctx, order, quantities, receipt.ID, claimed)
		return err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      receipt.OwnerID,
		Action:     enum.AuditActionReceiptSettle,
		EntityType: "receipt",
		EntityID:   receipt.ID,
		After:      receipt,
	})
	s.dispatcher.EnqueueReceiptPrint(ctx, receipt.ID)
	return nil
}

// Void cancels a receipt with a mandatory reason. Settled receipts may be
// voided only while the void policy and the open period allow it; the stock
// reversal runs synchronously and, unless overselling is allowed, a failed
// reversal rolls the void back.
func (s *LedgerService) Void(ctx context.Context, actor Actor, receiptID uuid.UUID, reason, overrideToken string) (*entity.Receipt, error) {
	if reason == "" {
		return nil, apperror.NewBadRequestError("Void reason is required")
	}
	if err := s.guard.Evaluate(actor, "receipt.void"); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(receiptID)
	defer unlock()

	receipt, err := s.getReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt.State == enum.ReceiptStateVoided {
		return nil, apperror.NewStateConflictError("Receipt is already voided")
	}
	if receipt.State == enum.ReceiptStateArchived {
		return nil, apperror.NewStateConflictError("Archived receipts cannot be voided")
	}
	if receipt.State == enum.ReceiptStateSettled && s.policies.VoidPolicy == VoidPreSettlementOnly {
		return nil, apperror.NewStateConflictError("Settled receipts cannot be voided under the current policy")
	}

	release := s.gate.Enter(receipt.WorkPeriodID)
	defer release()
	if err := s.ensureOpen(ctx, receipt.WorkPeriodID); err != nil {
		return nil, err
	}

	authorizedBy, err := s.guard.Authorize(ctx, receipt, actor, overrideToken)
	if err != nil {
		return nil, err
	}
	if authorizedBy == nil {
		authorizedBy = &actor.ID
	}

	before := *receipt
	priorState := receipt.State
	if err := s.saveReceipt(ctx, receipt, func(r *entity.Receipt) {
		r.State = enum.ReceiptStateVoided
		r.VoidReason = &reason
		r.VoidedBy = &actor.ID
	}); err != nil {
		return nil, err
	}

	// Stock was claimed at settlement, so only settled receipts reverse. The
	// claim sits on the shared order: it is released only when no sibling
	// receipt is settled or still open to settle.
	if priorState == enum.ReceiptStateSettled {
		unlockOrder := s.locks.Lock(receipt.OrderID)
		order, err := s.orders.GetWithItems(ctx, receipt.OrderID)
		if err == nil && order != nil && order.StockDeducted {
			var held bool
			held, err = s.orderStillClaimed(ctx, receipt.OrderID, receipt.ID)
			if err == nil && !held {
				err = s.inventory.ReverseStock(ctx, stockQuantities(order), receipt.ID)
				if err == nil {
					order.StockDeducted = false
					if updErr := s.orders.Update(ctx, order); updErr != nil {
						s.logger.WithField("order_id", order.ID).WithError(updErr).Error("failed to clear stock claim")
					}
				}
			}
		}
		unlockOrder()
		if err != nil {
			if !s.policies.AllowOversell {
				revertErr := s.saveReceipt(ctx, receipt, func(r *entity.Receipt) {
					r.State = priorState
					r.VoidReason = nil
					r.VoidedBy = nil
				})
				if revertErr != nil {
					s.logger.WithField("receipt_id", receipt.ID).WithError(revertErr).Error("failed to revert void after stock reversal failure")
				}
				return nil, apperror.NewResourceUnavailableError("Stock reversal failed; void rolled back")
			}
			s.logger.WithField("receipt_id", receipt.ID).WithError(err).Warn("stock reversal failed, oversell allowed")
		}
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:        actor.ID,
		AuthorizedBy: authorizedBy,
		Action:       enum.AuditActionReceiptVoid,
		EntityType:   "receipt",
		EntityID:     receipt.ID,
		Reason:       reason,
		Before:       before,
		After:        receipt,
	})

	return receipt, nil
}

// Split divides a Pending receipt into new receipts. By-item mode requires
// every item assigned to exactly one target; equal-N mode divides the total
// with the rounding remainder given one cent each to the first receipts in
// creation order. The original is archived.
func (s *LedgerService) Split(ctx context.Context, actor Actor, receiptID uuid.UUID, alloc SplitAllocation, overrideToken string) ([]*entity.Receipt, error) {
	unlock := s.locks.Lock(receiptID)
	defer unlock()

	receipt, err := s.getReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt.State != enum.ReceiptStatePending {
		return nil, apperror.NewStateConflictError("Only pending receipts can be split")
	}
	if receipt.PaidAmount > 0 {
		return nil, apperror.NewStateConflictError("Receipts with captured payments cannot be split")
	}

	release := s.gate.Enter(receipt.WorkPeriodID)
	defer release()
	if err := s.ensureOpen(ctx, receipt.WorkPeriodID); err != nil {
		return nil, err
	}

	authorizedBy, err := s.guard.Authorize(ctx, receipt, actor, overrideToken)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetWithItems(ctx, receipt.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}

	var children []*entity.Receipt
	if len(alloc.ItemAssignments) > 0 {
		children, err = s.splitByItems(ctx, receipt, order, alloc.ItemAssignments)
	} else {
		children, err = s.splitEqually(ctx, receipt, order, alloc.Parts)
	}
	if err != nil {
		return nil, err
	}

	before := *receipt
	if err := s.saveReceipt(ctx, receipt, func(r *entity.Receipt) {
		r.State = enum.ReceiptStateArchived
	}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:        actor.ID,
		AuthorizedBy: authorizedBy,
		Action:       enum.AuditActionReceiptSplit,
		EntityType:   "receipt",
		EntityID:     receipt.ID,
		Before:       before,
		After:        children,
	})

	return children, nil
}

// splitByItems creates one order and receipt per target group. Every active
// item of the source order must appear in the assignments exactly once.
func (s *LedgerService) splitByItems(ctx context.Context, receipt *entity.Receipt, order *entity.Order, assignments map[uuid.UUID]int) ([]*entity.Receipt, error) {
	active := order.ActiveItems()
	if len(assignments) != len(active) {
		return nil, apperror.ErrInvalidAllocation
	}

	groups := make(map[int][]entity.OrderItem)
	maxTarget := 0
	for _, item := range active {
		target, ok := assignments[item.ID]
		if !ok || target < 0 {
			return nil, apperror.ErrInvalidAllocation
		}
		if target > maxTarget {
			maxTarget = target
		}
		groups[target] = append(groups[target], item)
	}
	if len(groups) != maxTarget+1 {
		return nil, apperror.ErrInvalidAllocation
	}

	children := make([]*entity.Receipt, 0, len(groups))
	for target := 0; target <= maxTarget; target++ {
		items := groups[target]
		childOrder := &entity.Order{
			WorkPeriodID: order.WorkPeriodID,
			OwnerID:      order.OwnerID,
			LastBatch:    1,
		}
		if err := s.orders.Create(ctx, childOrder); err != nil {
			return nil, err
		}
		lines := make([]entity.OrderItem, len(items))
		for i, item := range items {
			lines[i] = entity.OrderItem{
				OrderID:     childOrder.ID,
				ProductID:   item.ProductID,
				Name:        item.Name,
				Category:    item.Category,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Discount:    item.Discount,
				Tax:         item.Tax,
				BatchNumber: 1,
			}
		}
		if err := s.orders.AppendItems(ctx, lines); err != nil {
			return nil, err
		}
		children = append(children, &entity.Receipt{
			OrderID:         childOrder.ID,
			WorkPeriodID:    receipt.WorkPeriodID,
			OwnerID:         receipt.OwnerID,
			State:           enum.ReceiptStatePending,
			Total:           lineTotal(lines),
			ParentReceiptID: &receipt.ID,
		})
	}

	if err := s.receipts.CreateBatch(ctx, children); err != nil {
		return nil, err
	}
	return children, nil
}

// splitEqually divides the receipt total into n shares of the same order.
// total/n each, with the first total%n receipts carrying one extra cent.
func (s *LedgerService) splitEqually(ctx context.Context, receipt *entity.Receipt, order *entity.Order, n int) ([]*entity.Receipt, error) {
	if n < 2 {
		return nil, apperror.NewBadRequestError("Equal split requires at least 2 parts")
	}

	share := receipt.Total / int64(n)
	remainder := receipt.Total % int64(n)

	children := make([]*entity.Receipt, n)
	for i := 0; i < n; i++ {
		total := share
		if int64(i) < remainder {
			total++
		}
		children[i] = &entity.Receipt{
			OrderID:         order.ID,
			WorkPeriodID:    receipt.WorkPeriodID,
			OwnerID:         receipt.OwnerID,
			State:           enum.ReceiptStatePending,
			Total:           total,
			ParentReceiptID: &receipt.ID,
		}
	}

	if err := s.receipts.CreateBatch(ctx, children); err != nil {
		return nil, err
	}
	return children, nil
}

// Merge combines non-terminal receipts from the same work period into one new
// Pending receipt whose items are the union of the sources. Sources are
// archived pointing at the merged receipt.
func (s *LedgerService) Merge(ctx context.Context, actor Actor, receiptIDs []uuid.UUID) (*entity.Receipt, error) {
	if len(receiptIDs) < 2 {
		return nil, apperror.NewBadRequestError("Merging requires at least 2 receipts")
	}

	// Lock in sorted order so concurrent merges over overlapping sets
	// cannot deadlock.
	ids := make([]uuid.UUID, len(receiptIDs))
	copy(ids, receiptIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		defer unlock()
	}

	sources := make([]*entity.Receipt, 0, len(receiptIDs))
	for _, id := range receiptIDs {
		r, err := s.getReceipt(ctx, id)
		if err != nil {
			return nil, err
		}
		if !r.State.IsMutable() {
			return nil, apperror.NewStateConflictError(fmt.Sprintf("Cannot merge a %s receipt", r.State))
		}
		if r.PaidAmount > 0 {
			return nil, apperror.NewStateConflictError("Receipts with captured payments cannot be merged")
		}
		if len(sources) > 0 && r.WorkPeriodID != sources[0].WorkPeriodID {
			return nil, apperror.NewStateConflictError("Receipts from different work periods cannot be merged")
		}
		if !s.guard.CanModify(r, actor.ID) && !actor.HasRole("supervisor", "manager", "admin") {
			return nil, apperror.NewAuthorizationDeniedError("Merging another user's receipt requires a supervisor")
		}
		sources = append(sources, r)
	}

	periodID := sources[0].WorkPeriodID
	release := s.gate.Enter(periodID)
	defer release()
	if err := s.ensureOpen(ctx, periodID); err != nil {
		return nil, err
	}

	mergedOrder := &entity.Order{
		WorkPeriodID: periodID,
		OwnerID:      actor.ID,
		LastBatch:    1,
	}
	if err := s.orders.Create(ctx, mergedOrder); err != nil {
		return nil, err
	}

	var lines []entity.OrderItem
	for _, src := range sources {
		order, err := s.orders.GetWithItems(ctx, src.OrderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, apperror.NewNotFoundError("Order")
		}
		for _, item := range order.ActiveItems() {
			lines = append(lines, entity.OrderItem{
				OrderID:     mergedOrder.ID,
				ProductID:   item.ProductID,
				Name:        item.Name,
				Category:    item.Category,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Discount:    item.Discount,
				Tax:         item.Tax,
				BatchNumber: 1,
			})
		}
	}
	if err := s.orders.AppendItems(ctx, lines); err != nil {
		return nil, err
	}

	merged := &entity.Receipt{
		OrderID:      mergedOrder.ID,
		WorkPeriodID: periodID,
		OwnerID:      actor.ID,
		State:        enum.ReceiptStatePending,
		Total:        lineTotal(lines),
	}
	if err := s.receipts.Create(ctx, merged); err != nil {
		return nil, err
	}

	for _, src := range sources {
		if err := s.saveReceipt(ctx, src, func(r *entity.Receipt) {
			r.State = enum.ReceiptStateArchived
			r.ParentReceiptID = &merged.ID
		}); err != nil {
			return nil, err
		}
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      actor.ID,
		Action:     enum.AuditActionReceiptMerge,
		EntityType: "receipt",
		EntityID:   merged.ID,
		Before:     sources,
		After:      merged,
	})

	return merged, nil
}

// Get returns the receipt with its order, payments and lineage.
func (s *LedgerService) Get(ctx context.Context, receiptID uuid.UUID) (*ReceiptDetail, error) {
	receipt, err := s.getReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetWithItems(ctx, receipt.OrderID)
	if err != nil {
		return nil, err
	}

	payments, err := s.settlement.payments.ListByReceipt(ctx, receipt.ID)
	if err != nil {
		return nil, err
	}

	children, err := s.receipts.ListChildren(ctx, receipt.ID)
	if err != nil {
		return nil, err
	}
	childIDs := make([]uuid.UUID, len(children))
	for i, c := range children {
		childIDs[i] = c.ID
	}

	return &ReceiptDetail{
		Receipt:  receipt,
		Order:    order,
		Payments: payments,
		Children: childIDs,
	}, nil
}

// List returns receipts for a work period, optionally filtered by state.
func (s *LedgerService) List(ctx context.Context, periodID uuid.UUID, states []enum.ReceiptState, limit, offset int) ([]entity.Receipt, int64, error) {
	return s.receipts.ListByPeriod(ctx, periodID, states, limit, offset)
}

func (s *LedgerService) getReceipt(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	receipt, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, apperror.NewNotFoundError("Receipt")
	}
	return receipt, nil
}

func (s *LedgerService) openPeriod(ctx context.Context, registerGroup string) (*entity.WorkPeriod, error) {
	if registerGroup == "" {
		registerGroup = "main"
	}
	period, err := s.periods.GetOpen(ctx, registerGroup)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, apperror.NewStateConflictError("No open work period for register group " + registerGroup)
	}
	return period, nil
}

func (s *LedgerService) ensureOpen(ctx context.Context, periodID uuid.UUID) error {
	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return err
	}
	if period == nil {
		return apperror.NewNotFoundError("Work period")
	}
	if !period.IsOpen() {
		return apperror.NewStateConflictError("Work period is closed")
	}
	return nil
}

// saveReceipt applies the mutation and writes it conditionally on the
// receipt version, refetching and reapplying on conflict. The keyed mutex
// already serializes writers in this process; the retry covers writers in
// other processes.
func (s *LedgerService) saveReceipt(ctx context.Context, receipt *entity.Receipt, apply func(*entity.Receipt)) error {
	apply(receipt)
	err := s.receipts.Update(ctx, receipt)
	for attempt := 0; apperror.IsVersionConflict(err) && attempt < s.policies.ConflictRetries; attempt++ {
		fresh, getErr := s.receipts.GetByID(ctx, receipt.ID)
		if getErr != nil {
			return getErr
		}
		if fresh == nil {
			return apperror.NewNotFoundError("Receipt")
		}
		apply(fresh)
		err = s.receipts.Update(ctx, fresh)
		if err == nil {
			*receipt = *fresh
		}
	}
	return err
}

// priceItems resolves the catalog entries and builds priced order lines. Tax
// is computed on the discounted net in integer basis points.
func (s *LedgerService) priceItems(ctx context.Context, orderID uuid.UUID, batch int, items []ItemInput) ([]entity.OrderItem, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, in := range items {
		if in.Quantity <= 0 {
			return nil, apperror.NewBadRequestError("Item quantity must be positive")
		}
		if in.Discount < 0 {
			return nil, apperror.NewBadRequestError("Item discount cannot be negative")
		}
		ids = append(ids, in.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	catalog := make(map[uuid.UUID]entity.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	lines := make([]entity.OrderItem, len(items))
	for i, in := range items {
		product, ok := catalog[in.ProductID]
		if !ok {
			return nil, apperror.NewNotFoundError("Product " + in.ProductID.String())
		}
		net := product.Price*int64(in.Quantity) - in.Discount
		if net < 0 {
			return nil, apperror.NewBadRequestError("Discount exceeds the line amount")
		}
		lines[i] = entity.OrderItem{
			OrderID:     orderID,
			ProductID:   product.ID,
			Name:        product.Name,
			Category:    product.Category,
			Quantity:    in.Quantity,
			UnitPrice:   product.Price,
			Discount:    in.Discount,
			Tax:         net * s.policies.VATBasisPoints / 10000,
			BatchNumber: batch,
		}
	}
	return lines, nil
}

// claimStock deducts the order's item quantities unless a sibling receipt on
// the same order already has. Split children share one order, so the claim is
// recorded on the order and taken at most once. The caller must hold the
// order lock. The returned flag reports whether this call took the stock.
func (s *LedgerService) claimStock(ctx context.Context, order *entity.Order, quantities map[uuid.UUID]int, receiptID uuid.UUID) (bool, error) {
	if order.StockDeducted {
		return false, nil
	}
	if err := s.inventory.DeductStock(ctx, quantities, receiptID); err != nil {
		return false, err
	}
	order.StockDeducted = true
	if err := s.orders.Update(ctx, order); err != nil {
		order.StockDeducted = false
		s.reverseStock(ctx, quantities, receiptID)
		return false, err
	}
	return true, nil
}

// unclaimStock compensates a claimStock whose ledger write failed. A claim
// taken by an earlier sibling is left alone.
func (s *LedgerService) unclaimStock(ctx context.Context, order *entity.Order, quantities map[uuid.UUID]int, receiptID uuid.UUID, claimed bool) {
	if !claimed {
		return
	}
	s.reverseStock(ctx, quantities, receiptID)
	order.StockDeducted = false
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.WithField("order_id", order.ID).WithError(err).Error("failed to clear stock claim")
	}
}

// orderStillClaimed reports whether a receipt other than exclude still needs
// the order's stock: a settled sibling, or one that may yet settle.
func (s *LedgerService) orderStillClaimed(ctx context.Context, orderID, exclude uuid.UUID) (bool, error) {
	siblings, err := s.receipts.ListByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, sib := range siblings {
		if sib.ID == exclude {
			continue
		}
		if sib.State == enum.ReceiptStateSettled || sib.State.IsMutable() {
			return true, nil
		}
	}
	return false, nil
}

// reverseStock is the compensation half of a stock claim; failures are logged,
// not surfaced, because the ledger write they compensate already failed.
func (s *LedgerService) reverseStock(ctx context.Context, quantities map[uuid.UUID]int, receiptID uuid.UUID) {
	if err := s.inventory.ReverseStock(ctx, quantities, receiptID); err != nil {
		s.logger.WithField("receipt_id", receiptID).WithError(err).Error("stock compensation failed")
	}
}

func stockQuantities(order *entity.Order) map[uuid.UUID]int {
	quantities := make(map[uuid.UUID]int)
	for _, item := range order.ActiveItems() {
		quantities[item.ProductID] += item.Quantity
	}
	return quantities
}

func lineTotal(lines []entity.OrderItem) int64 {
	var total int64
	for i := range lines {
		total += lines[i].LineTotal()
	}
	return total
}
