package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireAppCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperror.GetAppError(err).Code)
}

// untaxedPolicies makes line totals equal unit prices, which keeps the
// split and merge arithmetic in the assertions readable.
func untaxedPolicies() LedgerPolicies {
	p := defaultLedgerPolicies()
	p.VATBasisPoints = 0
	return p
}

func TestLedgerServiceCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 10000)
	soda := f.seedProduct("soda", "drinks", 1500, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{
		{ProductID: soda.ID, Quantity: 2, Discount: 100},
	})
	require.NoError(t, err)

	// 2 * 1500 - 100 = 2900 net, 16% VAT = 464.
	assert.Equal(t, enum.ReceiptStatePending, receipt.State)
	assert.Equal(t, int64(3364), receipt.Total)
	assert.Equal(t, owner.ID, receipt.OwnerID)

	order, err := f.orders.GetWithItems(ctx, receipt.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].BatchNumber)
	assert.Equal(t, "drinks", order.Items[0].Category)
	assert.Equal(t, receipt.Total, order.ActiveTotal())

	assert.Len(t, f.sideEffects.byKind(entity.SideEffectPrintTicket), 1)
	assert.Len(t, f.auditLog.byAction(enum.AuditActionReceiptCreate), 1)

	// Stock is not touched until settlement.
	assert.Equal(t, 10, f.products.quantityOf(soda.ID))
}

func TestLedgerServiceCreateRequiresOpenPeriod(t *testing.T) {
	f := newFixture()
	soda := f.seedProduct("soda", "drinks", 1500, 10)

	_, err := f.ledger.Create(context.Background(), testActor("cashier"), "main", []ItemInput{
		{ProductID: soda.ID, Quantity: 1},
	})
	requireAppCode(t, err, http.StatusConflict)
}

func TestLedgerServiceCreateAutoSettleMode(t *testing.T) {
	policies := defaultLedgerPolicies()
	policies.SettlementMode = SettlementModeAuto
	f := newFixtureWith(policies, defaultPeriodPolicies())
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 10)

	receipt, err := f.ledger.Create(context.Background(), testActor("cashier"), "main", []ItemInput{
		{ProductID: soda.ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, enum.ReceiptStateCreated, receipt.State)
}

func TestLedgerServiceCreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 10)
	owner := testActor("cashier")

	_, err := f.ledger.Create(ctx, owner, "main", nil)
	requireAppCode(t, err, http.StatusBadRequest)

	_, err = f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 0}})
	requireAppCode(t, err, http.StatusBadRequest)

	_, err = f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1, Discount: 2000}})
	requireAppCode(t, err, http.StatusBadRequest)

	_, err = f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: uuid.New(), Quantity: 1}})
	requireAppCode(t, err, http.StatusNotFound)
}

func TestLedgerServiceAddItems(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 10)
	cake := f.seedProduct("cake", "bakery", 2000, 5)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)
	firstTotal := receipt.Total

	added, err := f.ledger.AddItems(ctx, owner, receipt.ID, []ItemInput{{ProductID: cake.ID, Quantity: 1}}, "")
	require.NoError(t, err)

	// Only the new wave comes back, stamped with the next batch number.
	require.Len(t, added, 1)
	assert.Equal(t, 2, added[0].BatchNumber)
	assert.Equal(t, cake.ID, added[0].ProductID)

	fresh, err := f.receipts.GetByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, firstTotal+added[0].LineTotal(), fresh.Total)

	order, err := f.orders.GetWithItems(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 2, order.LastBatch)
	assert.Equal(t, fresh.Total, order.ActiveTotal())

	// One ticket per wave.
	assert.Len(t, f.sideEffects.byKind(entity.SideEffectPrintTicket), 2)
}

func TestLedgerServiceAddItemsOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 10)
	owner := testActor("cashier")
	other := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.ledger.AddItems(ctx, other, receipt.ID, []ItemInput{{ProductID: soda.ID, Quantity: 1}}, "")
	requireAppCode(t, err, http.StatusForbidden)

	// A supervisor vouches for the other cashier with a single-use grant.
	supervisor := f.seedUser("sup@till.local", "secret", "supervisor")
	grant, err := f.guard.RequestOverride(ctx, receipt, other.ID, "receipt.modify", supervisor.Email, "secret")
	require.NoError(t, err)

	_, err = f.ledger.AddItems(ctx, other, receipt.ID, []ItemInput{{ProductID: soda.ID, Quantity: 1}}, grant.Token)
	require.NoError(t, err)

	// The audit entry names both parties.
	entries := f.auditLog.byAction(enum.AuditActionReceiptItems)
	require.Len(t, entries, 1)
	assert.Equal(t, other.ID, entries[0].Actor)
	require.NotNil(t, entries[0].AuthorizedBy)
	assert.Equal(t, supervisor.ID, *entries[0].AuthorizedBy)

	// The grant is single use.
	_, err = f.ledger.AddItems(ctx, other, receipt.ID, []ItemInput{{ProductID: soda.ID, Quantity: 1}}, grant.Token)
	requireAppCode(t, err, http.StatusForbidden)
}

func TestLedgerServiceSettleExactTenders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	period := f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)
	require.Equal(t, int64(4640), receipt.Total) // 4000 + 16% VAT

	settled, err := f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 2000, IdempotencyKey: "k-cash"},
		{Method: enum.PaymentMethodMpesa, Amount: 2640, IdempotencyKey: "k-mpesa"},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, enum.ReceiptStateSettled, settled.State)
	assert.Equal(t, int64(4640), settled.PaidAmount)
	assert.Equal(t, int64(0), settled.ChangeGiven)
	assert.Equal(t, 9, f.products.quantityOf(meal.ID))
	assert.Len(t, f.sideEffects.byKind(entity.SideEffectPrintReceipt), 1)

	cash, err := f.payments.SumByPeriodAndMethod(ctx, period.ID, enum.PaymentMethodCash)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), cash)
}

func TestLedgerServiceSettleCashChange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)

	settled, err := f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 5000, IdempotencyKey: "k1"},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, int64(5000), settled.PaidAmount)
	assert.Equal(t, int64(360), settled.ChangeGiven)
	assert.Equal(t, int64(0), settled.Balance())
}

func TestLedgerServiceSettleInsufficient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 1000, IdempotencyKey: "k1"},
	}, "")
	require.ErrorIs(t, err, apperror.ErrInsufficientPayment)

	// Nothing moved: no payment, no stock, state unchanged.
	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, enum.ReceiptStatePending, fresh.State)
	assert.Equal(t, int64(0), fresh.PaidAmount)
	payments, _ := f.payments.ListByReceipt(ctx, receipt.ID)
	assert.Empty(t, payments)
	assert.Equal(t, 10, f.products.quantityOf(meal.ID))
}

func TestLedgerServiceSettleTwice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 4640, IdempotencyKey: "k1"},
	}, "")
	require.NoError(t, err)

	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 4640, IdempotencyKey: "k2"},
	}, "")
	requireAppCode(t, err, http.StatusConflict)
}

func TestLedgerServiceSettleInsufficientStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 0)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 4640, IdempotencyKey: "k1"},
	}, "")
	requireAppCode(t, err, http.StatusBadRequest)

	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, enum.ReceiptStatePending, fresh.State)
}

func TestLedgerServiceVoidPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 10)
	owner := testActor("supervisor")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.ledger.Void(ctx, owner, receipt.ID, "", "")
	requireAppCode(t, err, http.StatusBadRequest)

	voided, err := f.ledger.Void(ctx, owner, receipt.ID, "customer walked out", "")
	require.NoError(t, err)
	assert.Equal(t, enum.ReceiptStateVoided, voided.State)
	require.NotNil(t, voided.VoidReason)
	assert.Equal(t, "customer walked out", *voided.VoidReason)

	// Never settled, so no stock to restore.
	assert.Equal(t, 10, f.products.quantityOf(soda.ID))

	_, err = f.ledger.Void(ctx, owner, receipt.ID, "again", "")
	requireAppCode(t, err, http.StatusConflict)

	entries := f.auditLog.byAction(enum.AuditActionReceiptVoid)
	require.Len(t, entries, 1)
	assert.Equal(t, "customer walked out", entries[0].Reason)
}

func TestLedgerServiceVoidRequiresRank(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.ledger.Void(ctx, owner, receipt.ID, "typo", "")
	requireAppCode(t, err, http.StatusForbidden)
}

func TestLedgerServiceVoidSettledRestoresStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("supervisor")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 2}})
	require.NoError(t, err)
	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: receipt.Total, IdempotencyKey: "k1"},
	}, "")
	require.NoError(t, err)
	require.Equal(t, 8, f.products.quantityOf(meal.ID))

	voided, err := f.ledger.Void(ctx, owner, receipt.ID, "wrong table", "")
	require.NoError(t, err)
	assert.Equal(t, enum.ReceiptStateVoided, voided.State)
	assert.Equal(t, 10, f.products.quantityOf(meal.ID))
}

func TestLedgerServiceVoidSettledBlockedByPolicy(t *testing.T) {
	policies := defaultLedgerPolicies()
	policies.VoidPolicy = VoidPreSettlementOnly
	f := newFixtureWith(policies, defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("supervisor")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: receipt.Total, IdempotencyKey: "k1"},
	}, "")
	require.NoError(t, err)

	_, err = f.ledger.Void(ctx, owner, receipt.ID, "too late", "")
	requireAppCode(t, err, http.StatusConflict)
}

func TestLedgerServiceVoidRollsBackOnReversalFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("supervisor")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: receipt.Total, IdempotencyKey: "k1"},
	}, "")
	require.NoError(t, err)

	f.products.incrementErr = assert.AnError
	_, err = f.ledger.Void(ctx, owner, receipt.ID, "wrong table", "")
	requireAppCode(t, err, http.StatusServiceUnavailable)

	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, enum.ReceiptStateSettled, fresh.State)
	assert.Nil(t, fresh.VoidReason)
}

func TestLedgerServiceVoidOversellKeepsVoid(t *testing.T) {
	policies := defaultLedgerPolicies()
	policies.AllowOversell = true
	f := newFixtureWith(policies, defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("supervisor")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: receipt.Total, IdempotencyKey: "k1"},
	}, "")
	require.NoError(t, err)

	f.products.incrementErr = assert.AnError
	voided, err := f.ledger.Void(ctx, owner, receipt.ID, "wrong table", "")
	require.NoError(t, err)
	assert.Equal(t, enum.ReceiptStateVoided, voided.State)
}

func TestLedgerServiceSplitEqually(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 1000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 3}})
	require.NoError(t, err)
	require.Equal(t, int64(3000), receipt.Total)

	children, err := f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{Parts: 3}, "")
	require.NoError(t, err)
	require.Len(t, children, 3)

	var sum int64
	for _, child := range children {
		sum += child.Total
		assert.Equal(t, enum.ReceiptStatePending, child.State)
		assert.Equal(t, receipt.OrderID, child.OrderID)
		require.NotNil(t, child.ParentReceiptID)
		assert.Equal(t, receipt.ID, *child.ParentReceiptID)
		assert.Equal(t, int64(1000), child.Total)
	}
	assert.Equal(t, receipt.Total, sum)

	parent, _ := f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, enum.ReceiptStateArchived, parent.State)
}

func TestLedgerServiceSplitEquallyRemainder(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 1000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)

	children, err := f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{Parts: 3}, "")
	require.NoError(t, err)
	require.Len(t, children, 3)

	// 1000 / 3: the leftover cent goes to the first child.
	assert.Equal(t, int64(334), children[0].Total)
	assert.Equal(t, int64(333), children[1].Total)
	assert.Equal(t, int64(333), children[2].Total)
	assert.Equal(t, receipt.Total, children[0].Total+children[1].Total+children[2].Total)
}

func TestLedgerServiceSplitSettleSharedStockOnce(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 2}})
	require.NoError(t, err)
	require.Equal(t, int64(2000), receipt.Total)

	children, err := f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{Parts: 2}, "")
	require.NoError(t, err)
	require.Len(t, children, 2)

	// The children share the parent's order, so settling both takes the
	// order's stock exactly once.
	for i, child := range children {
		settled, err := f.ledger.Settle(ctx, owner, child.ID, []PaymentInput{
			{Method: enum.PaymentMethodCash, Amount: child.Total, IdempotencyKey: fmt.Sprintf("k-%d", i)},
		}, "")
		require.NoError(t, err)
		assert.Equal(t, enum.ReceiptStateSettled, settled.State)
	}
	assert.Equal(t, 8, f.products.quantityOf(soda.ID))
}

func TestLedgerServiceVoidSplitChildReleasesStockLast(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1000, 10)
	owner := testActor("supervisor")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 2}})
	require.NoError(t, err)

	children, err := f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{Parts: 2}, "")
	require.NoError(t, err)
	require.Len(t, children, 2)

	for i, child := range children {
		_, err := f.ledger.Settle(ctx, owner, child.ID, []PaymentInput{
			{Method: enum.PaymentMethodCash, Amount: child.Total, IdempotencyKey: fmt.Sprintf("k-%d", i)},
		}, "")
		require.NoError(t, err)
	}
	require.Equal(t, 8, f.products.quantityOf(soda.ID))

	// The first void leaves the stock with the still-settled sibling.
	_, err = f.ledger.Void(ctx, owner, children[0].ID, "wrong table", "")
	require.NoError(t, err)
	assert.Equal(t, 8, f.products.quantityOf(soda.ID))

	// Voiding the last sibling returns the order's stock.
	_, err = f.ledger.Void(ctx, owner, children[1].ID, "wrong table", "")
	require.NoError(t, err)
	assert.Equal(t, 10, f.products.quantityOf(soda.ID))
}

func TestLedgerServiceSplitByItems(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1000, 10)
	cake := f.seedProduct("cake", "bakery", 2000, 10)
	tea := f.seedProduct("tea", "drinks", 500, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{
		{ProductID: soda.ID, Quantity: 1},
		{ProductID: cake.ID, Quantity: 1},
		{ProductID: tea.ID, Quantity: 1},
	})
	require.NoError(t, err)

	order, err := f.orders.GetWithItems(ctx, receipt.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 3)

	assignments := map[uuid.UUID]int{}
	for _, item := range order.Items {
		if item.ProductID == cake.ID {
			assignments[item.ID] = 1
		} else {
			assignments[item.ID] = 0
		}
	}

	children, err := f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{ItemAssignments: assignments}, "")
	require.NoError(t, err)
	require.Len(t, children, 2)

	assert.Equal(t, int64(1500), children[0].Total)
	assert.Equal(t, int64(2000), children[1].Total)
	assert.NotEqual(t, receipt.OrderID, children[0].OrderID)
	assert.NotEqual(t, children[0].OrderID, children[1].OrderID)

	childOrder, err := f.orders.GetWithItems(ctx, children[0].OrderID)
	require.NoError(t, err)
	assert.Len(t, childOrder.Items, 2)
	assert.Equal(t, children[0].Total, childOrder.ActiveTotal())
}

func TestLedgerServiceSplitByItemsInvalidAllocation(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1000, 10)
	cake := f.seedProduct("cake", "bakery", 2000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{
		{ProductID: soda.ID, Quantity: 1},
		{ProductID: cake.ID, Quantity: 1},
	})
	require.NoError(t, err)

	order, err := f.orders.GetWithItems(ctx, receipt.OrderID)
	require.NoError(t, err)

	// A target index with no predecessor leaves a gap.
	gapped := map[uuid.UUID]int{
		order.Items[0].ID: 0,
		order.Items[1].ID: 2,
	}
	_, err = f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{ItemAssignments: gapped}, "")
	require.ErrorIs(t, err, apperror.ErrInvalidAllocation)

	// Every item must be assigned.
	partial := map[uuid.UUID]int{order.Items[0].ID: 0}
	_, err = f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{ItemAssignments: partial}, "")
	require.ErrorIs(t, err, apperror.ErrInvalidAllocation)

	// Failed splits leave the receipt untouched.
	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, enum.ReceiptStatePending, fresh.State)
}

func TestLedgerServiceSplitBlockedAfterPartialCapture(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 2000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.settlement.InitiateAsync(ctx, receipt, enum.PaymentMethodMpesa, 500, "MP-1", "k1")
	require.NoError(t, err)
	require.NoError(t, f.settlement.OnPaymentConfirmed(ctx, "MP-1"))

	// The partial capture was recorded against the receipt.
	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	require.Equal(t, int64(500), fresh.PaidAmount)
	require.Equal(t, enum.ReceiptStatePending, fresh.State)

	_, err = f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{Parts: 2}, "")
	requireAppCode(t, err, http.StatusConflict)
}

func TestLedgerServiceMerge(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1000, 10)
	cake := f.seedProduct("cake", "bakery", 1500, 10)
	owner := testActor("cashier")

	a, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)
	b, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: cake.ID, Quantity: 1}})
	require.NoError(t, err)

	merged, err := f.ledger.Merge(ctx, owner, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)

	assert.Equal(t, enum.ReceiptStatePending, merged.State)
	assert.Equal(t, int64(2500), merged.Total)

	order, err := f.orders.GetWithItems(ctx, merged.OrderID)
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		src, _ := f.receipts.GetByID(ctx, id)
		assert.Equal(t, enum.ReceiptStateArchived, src.State)
		require.NotNil(t, src.ParentReceiptID)
		assert.Equal(t, merged.ID, *src.ParentReceiptID)
	}

	// Archived sources are out of the state machine for good.
	_, err = f.ledger.Settle(ctx, owner, a.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 1000, IdempotencyKey: "k1"},
	}, "")
	requireAppCode(t, err, http.StatusConflict)
}

func TestLedgerServiceMergeGuards(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	f.seedOpenPeriod("bar", 0)
	soda := f.seedProduct("soda", "drinks", 1000, 10)
	owner := testActor("cashier")
	other := testActor("cashier")

	a, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)
	b, err := f.ledger.Create(ctx, owner, "bar", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)
	c, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.ledger.Merge(ctx, owner, []uuid.UUID{a.ID})
	requireAppCode(t, err, http.StatusBadRequest)

	_, err = f.ledger.Merge(ctx, owner, []uuid.UUID{a.ID, b.ID})
	requireAppCode(t, err, http.StatusConflict)

	_, err = f.ledger.Merge(ctx, other, []uuid.UUID{a.ID, c.ID})
	requireAppCode(t, err, http.StatusForbidden)

	supervisor := testActor("supervisor")
	merged, err := f.ledger.Merge(ctx, supervisor, []uuid.UUID{a.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, supervisor.ID, merged.OwnerID)
}

func TestLedgerServiceConcurrentAddItems(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 100)
	cake := f.seedProduct("cake", "bakery", 2000, 100)
	tea := f.seedProduct("tea", "drinks", 500, 100)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, product := range []*entity.Product{cake, tea} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, addErr := f.ledger.AddItems(ctx, owner, receipt.ID, []ItemInput{{ProductID: id, Quantity: 1}}, "")
			assert.NoError(t, addErr)
		}(product.ID)
	}
	wg.Wait()

	order, err := f.orders.GetWithItems(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Len(t, order.Items, 3)

	// Neither concurrent wave was lost and the total stayed consistent.
	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, order.ActiveTotal(), fresh.Total)
}

func TestLedgerServiceFinalizeCaptureSettles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.settlement.InitiateAsync(ctx, receipt, enum.PaymentMethodMpesa, 4640, "MP-9", "k1")
	require.NoError(t, err)

	// Still pending until the gateway confirms.
	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	require.Equal(t, enum.ReceiptStatePending, fresh.State)
	require.Equal(t, 10, f.products.quantityOf(meal.ID))

	require.NoError(t, f.settlement.OnPaymentConfirmed(ctx, "MP-9"))

	fresh, _ = f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, enum.ReceiptStateSettled, fresh.State)
	assert.Equal(t, int64(4640), fresh.PaidAmount)
	assert.Equal(t, int64(0), fresh.ChangeGiven)
	assert.Equal(t, 9, f.products.quantityOf(meal.ID))
	assert.Len(t, f.sideEffects.byKind(entity.SideEffectPrintReceipt), 1)
}

func TestLedgerServiceCaptureAfterPeriodCloseParks(t *testing.T) {
	periodPolicies := defaultPeriodPolicies()
	periodPolicies.ClosePolicy = CloseWarnUnsettled
	f := newFixtureWith(defaultLedgerPolicies(), periodPolicies)
	ctx := context.Background()
	manager := testActor("manager")

	period, err := f.workPeriod.Open(ctx, manager, "main", 0)
	require.NoError(t, err)
	meal := f.seedProduct("meal", "kitchen", 4000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.settlement.InitiateAsync(ctx, receipt, enum.PaymentMethodMpesa, 4640, "MP-9", "k1")
	require.NoError(t, err)

	_, err = f.workPeriod.Close(ctx, manager, period.ID, 0)
	require.NoError(t, err)

	// A confirmation arriving after the close marks the payment captured but
	// must not settle a receipt inside a closed period.
	require.NoError(t, f.settlement.OnPaymentConfirmed(ctx, "MP-9"))

	fresh, _ := f.receipts.GetByID(ctx, receipt.ID)
	assert.Equal(t, enum.ReceiptStatePending, fresh.State)
	assert.Equal(t, int64(0), fresh.PaidAmount)
	assert.Equal(t, 10, f.products.quantityOf(meal.ID))

	payments, err := f.payments.ListByReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, enum.PaymentStatusCaptured, payments[0].Status)
}

func TestLedgerServiceOperationsOnClosedPeriod(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	period := f.seedOpenPeriod("main", 0)
	soda := f.seedProduct("soda", "drinks", 1500, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: soda.ID, Quantity: 1}})
	require.NoError(t, err)

	period.Status = enum.PeriodStatusClosed
	require.NoError(t, f.periods.Update(ctx, period))

	_, err = f.ledger.AddItems(ctx, owner, receipt.ID, []ItemInput{{ProductID: soda.ID, Quantity: 1}}, "")
	requireAppCode(t, err, http.StatusConflict)

	_, err = f.ledger.Settle(ctx, owner, receipt.ID, []PaymentInput{
		{Method: enum.PaymentMethodCash, Amount: 9999, IdempotencyKey: "k1"},
	}, "")
	requireAppCode(t, err, http.StatusConflict)
}

func TestLedgerServiceGetDetail(t *testing.T) {
	f := newFixtureWith(untaxedPolicies(), defaultPeriodPolicies())
	ctx := context.Background()
	f.seedOpenPeriod("main", 0)
	meal := f.seedProduct("meal", "kitchen", 1000, 10)
	owner := testActor("cashier")

	receipt, err := f.ledger.Create(ctx, owner, "main", []ItemInput{{ProductID: meal.ID, Quantity: 2}})
	require.NoError(t, err)

	children, err := f.ledger.Split(ctx, owner, receipt.ID, SplitAllocation{Parts: 2}, "")
	require.NoError(t, err)

	detail, err := f.ledger.Get(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.ReceiptStateArchived, detail.Receipt.State)
	require.Len(t, detail.Children, 2)
	assert.ElementsMatch(t, []uuid.UUID{children[0].ID, children[1].ID}, detail.Children)

	_, err = f.ledger.Get(ctx, uuid.New())
	requireAppCode(t, err, http.StatusNotFound)
}
