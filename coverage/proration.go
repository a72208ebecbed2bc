/*
proration.go - Partial-period pricing for class moves

PURPOSE:
  Moving a student mid-cycle between templates (possibly a different cadence
  or billing type) leaves a gap or an overlap between what was already paid
  for and what the destination schedule delivers. The proration amount is

    occurrences between old and new paid-through x destination unit price

  priced ALWAYS at the destination plan's per-occurrence price. A positive
  gap produces a charge (invoice); a negative one produces a credit,
  realized as an invoice+payment pair. Never both.

MONEY:
  All amounts are decimal; credits stay integers. Cents are rounded
  half-up at the boundary where a billable document is produced.
*/
package coverage

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRORATION
// =============================================================================

type ProrationKind string

const (
	ProrationCharge ProrationKind = "CHARGE"
	ProrationCredit ProrationKind = "CREDIT"
	ProrationNone   ProrationKind = "NONE"
)

type ProrationResult struct {
	Kind        ProrationKind
	Occurrences int             // occurrences in the gap/overlap
	UnitPrice   decimal.Decimal // destination per-occurrence price
	Amount      decimal.Decimal // always non-negative
}

// AmountCents rounds the proration amount for the billable document.
func (r ProrationResult) AmountCents() int64 {
	return r.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CalculateMoveProration prices the span between the old enrolment's
// paid-through date and the successor's projected paid-through date on the
// destination schedule.
func CalculateMoveProration(oldPaidThrough, newPaidThrough Day, destPlan Plan, destTemplates []ClassTemplate, x Exclusions) (ProrationResult, error) {
	result := ProrationResult{Kind: ProrationNone, UnitPrice: destPlan.PerOccurrencePrice()}

	var from, to Day
	switch {
	case newPaidThrough.After(oldPaidThrough):
		result.Kind = ProrationCharge
		from, to = oldPaidThrough.AddDays(1), newPaidThrough
	case oldPaidThrough.After(newPaidThrough):
		result.Kind = ProrationCredit
		from, to = newPaidThrough.AddDays(1), oldPaidThrough
	default:
		return result, nil
	}

	n, err := CountOccurrences(destTemplates, from, to, x)
	if err != nil {
		return result, err
	}
	if n == 0 {
		result.Kind = ProrationNone
		return result, nil
	}

	result.Occurrences = n
	result.Amount = result.UnitPrice.Mul(decimal.NewFromInt(int64(n)))
	return result, nil
}

// =============================================================================
// INVOICE SERVICE - Collaborator that realizes proration as documents
// =============================================================================

type InvoiceDraft struct {
	EnrolmentID EnrolmentID
	StudentID   string
	Description string
	AmountCents int64
}

// InvoiceService is implemented by the billing subsystem. The engine only
// asks for documents to exist; it never moves money itself.
type InvoiceService interface {
	// CreateInvoice realizes a charge.
	CreateInvoice(ctx context.Context, d InvoiceDraft) (invoiceID string, err error)

	// CreateInvoiceWithPayment realizes a credit as an already-settled
	// invoice+payment pair.
	CreateInvoiceWithPayment(ctx context.Context, d InvoiceDraft) (invoiceID string, err error)
}

// NopInvoiceService discards drafts. Used when invoicing is wired elsewhere.
type NopInvoiceService struct{}

func (NopInvoiceService) CreateInvoice(context.Context, InvoiceDraft) (string, error) {
	return "", nil
}

func (NopInvoiceService) CreateInvoiceWithPayment(context.Context, InvoiceDraft) (string, error) {
	return "", nil
}
