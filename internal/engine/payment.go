package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

// MemberPatch describes a member mutation a payment transition requires.
// Paying off a multi-year invoice extends the member's term; returning the
// extension as a patch, instead of mutating the member in place, keeps the
// side effect explicit and independently applicable by the caller.
type MemberPatch struct {
	MemberID utils.SixID
	EndDate  time.Time
}

// RecordPayment applies a (possibly partial) payment to an invoice. The
// invoice becomes paid once total payments reach the invoice amount,
// partially-paid otherwise. The payment is appended to the details log with
// its date. Void invoices and negative amounts are rejected.
//
// The returned patch is non-nil only when this payment completes a
// multi-year invoice.
func RecordPayment(inv models.Invoice, amount float64, paidDate time.Time, details string) (models.Invoice, *MemberPatch, error) {
	if inv.Status == models.InvoiceStatusVoid {
		return inv, nil, fmt.Errorf("cannot record a payment: %w", ErrInvoiceVoid)
	}
	if amount < 0 {
		return inv, nil, ErrNegativePayment
	}

	newTotal := inv.AmountPaid + amount
	if newTotal >= inv.Amount {
		inv.Status = models.InvoiceStatusPaid
	} else {
		inv.Status = models.InvoiceStatusPartiallyPaid
	}
	inv.AmountPaid = newTotal
	inv.PaidDate = &paidDate

	line := fmt.Sprintf("[%s] Paid $%s. %s", paidDate.Format("2006-01-02"), formatAmount(amount), details)
	inv.PaymentDetails = appendDetails(inv.PaymentDetails, line)

	return inv, termExtension(inv), nil
}

// MarkFullyPaid settles an invoice in one step: amount paid becomes the
// invoice amount, paid date becomes today. Valid from unpaid or
// partially-paid only.
func MarkFullyPaid(inv models.Invoice, now time.Time) (models.Invoice, *MemberPatch, error) {
	switch inv.Status {
	case models.InvoiceStatusVoid:
		return inv, nil, fmt.Errorf("cannot mark as paid: %w", ErrInvoiceVoid)
	case models.InvoiceStatusPaid:
		return inv, nil, fmt.Errorf("invoice is already paid: %w", ErrInvalidTransition)
	}

	inv.Status = models.InvoiceStatusPaid
	inv.AmountPaid = inv.Amount
	inv.PaidDate = &now

	line := fmt.Sprintf("[%s] Marked as fully paid.", now.Format("2006-01-02"))
	inv.PaymentDetails = appendDetails(inv.PaymentDetails, line)

	return inv, termExtension(inv), nil
}

// VoidInvoice voids an invoice. Void is terminal and zeroes the amount paid;
// the invoice stops covering any financial year. Paid invoices cannot be
// voided: settled financial history is corrected by other means.
func VoidInvoice(inv models.Invoice) (models.Invoice, error) {
	switch inv.Status {
	case models.InvoiceStatusVoid:
		return inv, fmt.Errorf("invoice is already void: %w", ErrInvalidTransition)
	case models.InvoiceStatusPaid:
		return inv, fmt.Errorf("paid invoices cannot be voided: %w", ErrInvalidTransition)
	}
	inv.Status = models.InvoiceStatusVoid
	inv.AmountPaid = 0
	return inv, nil
}

// ToggleCancellation flips the member's cancellation flag for one
// financial-year label. Invoices and payment state are untouched.
func ToggleCancellation(member models.Member, label string) models.Member {
	updated := make([]string, 0, len(member.CancelledFinancialYears)+1)
	found := false
	for _, l := range member.CancelledFinancialYears {
		if l == label {
			found = true
			continue
		}
		updated = append(updated, l)
	}
	if !found {
		updated = append(updated, label)
	}
	member.CancelledFinancialYears = updated
	return member
}

// termExtension returns the end-date patch for a freshly paid multi-year
// invoice: June 30 of (start year + number of years). Single-year invoices
// and non-paid states extend nothing.
func termExtension(inv models.Invoice) *MemberPatch {
	if inv.Status != models.InvoiceStatusPaid || inv.YearsCovered() <= 1 {
		return nil
	}
	endYear := inv.FinancialYear.StartYear() + inv.YearsCovered()
	return &MemberPatch{
		MemberID: inv.MemberID,
		EndDate:  time.Date(endYear, time.June, 30, 0, 0, 0, 0, time.UTC),
	}
}

func appendDetails(existing, line string) string {
	return strings.TrimSpace(existing + "\n" + line)
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
