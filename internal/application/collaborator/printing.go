package collaborator

import (
	"context"
	"fmt"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/dukasoft/tillpoint-api/pkg/printer"
	"github.com/google/uuid"
)

// LinePrinter is the default TicketPrinter. It emits plain text lines to the
// configured printer transport; full ticket layout lives outside the ledger.
type LinePrinter struct {
	device printer.Printer
}

// NewLinePrinter creates a ticket printer over the given transport
func NewLinePrinter(device printer.Printer) *LinePrinter {
	return &LinePrinter{device: device}
}

func (p *LinePrinter) PrintTicket(ctx context.Context, receiptID uuid.UUID, items []entity.OrderItem) error {
	lines := []string{fmt.Sprintf("TICKET %s", shortID(receiptID))}
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	if err := printer.PrintLines(p.device, lines); err != nil {
		return apperror.NewResourceUnavailableError(fmt.Sprintf("Printer unavailable: %v", err))
	}
	return nil
}

func (p *LinePrinter) PrintReceipt(ctx context.Context, receiptID uuid.UUID) error {
	lines := []string{fmt.Sprintf("RECEIPT %s", shortID(receiptID))}
	if err := printer.PrintLines(p.device, lines); err != nil {
		return apperror.NewResourceUnavailableError(fmt.Sprintf("Printer unavailable: %v", err))
	}
	return nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
