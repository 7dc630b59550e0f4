// Package collaborator defines the external systems the ledger talks to.
// Inventory runs inside the commit boundary of the triggering transition;
// printing and payment capture are asynchronous and never fail a committed
// ledger write.
package collaborator

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/google/uuid"
)

// Inventory deducts stock on settlement and reverses it on void. Both calls
// are synchronous: the ledger compensates its own write if they fail.
type Inventory interface {
	DeductStock(ctx context.Context, quantities map[uuid.UUID]int, receiptID uuid.UUID) error
	ReverseStock(ctx context.Context, quantities map[uuid.UUID]int, receiptID uuid.UUID) error
}

// TicketPrinter renders kitchen tickets and customer receipts. Invoked only
// from the side-effect dispatcher, after the ledger transition committed.
type TicketPrinter interface {
	// PrintTicket prints only the newly added batch of items.
	PrintTicket(ctx context.Context, receiptID uuid.UUID, items []entity.OrderItem) error
	PrintReceipt(ctx context.Context, receiptID uuid.UUID) error
}

// PaymentGateway initiates asynchronous captures for electronic tenders.
// Confirmation and failure arrive later through the settlement processor's
// OnPaymentConfirmed / OnPaymentFailed entry points.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, method enum.PaymentMethod, amount int64, reference string) error
}

// Notifier pushes post-commit notifications (tax authority, customer SMS).
type Notifier interface {
	Notify(ctx context.Context, kind string, receiptID uuid.UUID, payload string) error
}
