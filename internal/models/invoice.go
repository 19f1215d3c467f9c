package models

import (
	"time"

	"eccnsw/memberdesk/internal/utils"
)

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially-paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusVoid          InvoiceStatus = "void"
)

// Invoice is a membership fee invoice issued to a member.
//
// LevelAtTimeOfInvoice is a snapshot, not a reference: the level catalog can
// change after issue, and historical invoices must keep displaying the fees
// they were raised against.
//
// An invoice whose financial year starts in year Y with NumberOfYears = N
// covers every financial year starting in [Y, Y+N-1]. Void invoices cover
// nothing, permanently.
type Invoice struct {
	Base                 `bson:",inline"`
	MemberID             utils.SixID     `bson:"member_id" json:"member_id"`
	FinancialYear        FinancialYear   `bson:"financial_year" json:"financial_year"`
	LevelAtTimeOfInvoice MembershipLevel `bson:"level_at_time_of_invoice" json:"level_at_time_of_invoice"`
	Date                 time.Time       `bson:"date" json:"date"`
	DueDate              *time.Time      `bson:"due_date,omitempty" json:"due_date,omitempty"`
	Amount               float64         `bson:"amount" json:"amount"`
	Status               InvoiceStatus   `bson:"status" json:"status"`
	PaidDate             *time.Time      `bson:"paid_date,omitempty" json:"paid_date,omitempty"`
	PaymentDetails       string          `bson:"payment_details,omitempty" json:"payment_details,omitempty"`
	AmountPaid           float64         `bson:"amount_paid" json:"amount_paid"`
	IncludeJoiningFee    bool            `bson:"include_joining_fee" json:"include_joining_fee"`
	NumberOfYears        int             `bson:"number_of_years" json:"number_of_years"`
	Notes                string          `bson:"notes,omitempty" json:"notes,omitempty"`
	OverdueNotified      bool            `bson:"overdue_notified" json:"overdue_notified"`
	DocumentKey          string          `bson:"document_key,omitempty" json:"document_key,omitempty"`
}

// YearsCovered returns NumberOfYears, treating legacy zero values as a
// single-year invoice.
func (inv *Invoice) YearsCovered() int {
	if inv.NumberOfYears < 1 {
		return 1
	}
	return inv.NumberOfYears
}

// Covers reports whether this invoice covers the financial year with the
// given label. Void invoices never cover anything.
func (inv *Invoice) Covers(label string) bool {
	if inv.Status == InvoiceStatusVoid {
		return false
	}
	targetStart, err := labelStartYear(label)
	if err != nil {
		return false
	}
	invoiceStart := inv.FinancialYear.StartYear()
	return targetStart >= invoiceStart && targetStart < invoiceStart+inv.YearsCovered()
}

// Outstanding reports whether the invoice still has an amount owing.
func (inv *Invoice) Outstanding() bool {
	return inv.Status == InvoiceStatusUnpaid || inv.Status == InvoiceStatusPartiallyPaid
}
