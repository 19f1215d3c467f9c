package engine

import (
	"fmt"
	"strings"
	"time"

	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

// Payment-details lines written on invoices that are created already paid.
const (
	complimentaryDetails = "Complimentary membership."
	feeWaivedDetails     = "Membership fee waived."
)

// NewMemberDueDays is how far out the due date sits on invoices raised by
// the add-member flow and bulk generation.
const NewMemberDueDays = 30

// NewMemberInvoice builds the single-year invoice raised when a member is
// first added: joining fee included whenever the level charges one, due 30
// days out. A zero-fee level yields an invoice created directly in the paid
// state as a complimentary membership.
func NewMemberInvoice(member models.Member, level models.MembershipLevel, fy models.FinancialYear, now time.Time) models.Invoice {
	includeJoining := level.JoiningFee > 0
	total := level.AnnualFee
	if includeJoining {
		total += level.JoiningFee
	}
	due := now.AddDate(0, 0, NewMemberDueDays)

	inv := models.Invoice{
		Base:                 models.NewBase(),
		MemberID:             member.ID,
		FinancialYear:        fy,
		LevelAtTimeOfInvoice: level,
		Date:                 now,
		DueDate:              &due,
		Amount:               total,
		Status:               models.InvoiceStatusUnpaid,
		IncludeJoiningFee:    includeJoining,
		NumberOfYears:        1,
	}
	if total == 0 {
		markComplimentary(&inv, now, complimentaryDetails)
	}
	return inv
}

// SingleInvoiceOptions configures ad hoc invoice generation for one member.
type SingleInvoiceOptions struct {
	FinancialYear     models.FinancialYear
	Level             models.MembershipLevel
	Date              time.Time
	DueDate           *time.Time
	NumberOfYears     int
	IncludeJoiningFee bool
	WaiveFee          bool
	Notes             string
}

// SingleInvoice builds an ad hoc invoice. WaiveFee forces the amount to zero
// regardless of the level's fees; a multi-year invoice gets a generated note
// naming the covered label range prepended to any operator notes. Zero-amount
// invoices are created paid with an explanatory payment-details line.
func SingleInvoice(member models.Member, opts SingleInvoiceOptions, now time.Time) models.Invoice {
	years := opts.NumberOfYears
	if years < 1 {
		years = 1
	}

	var amount float64
	if !opts.WaiveFee {
		amount = opts.Level.AnnualFee * float64(years)
		if opts.IncludeJoiningFee {
			amount += opts.Level.JoiningFee
		}
	}

	notes := opts.Notes
	if years > 1 {
		startYear := opts.FinancialYear.StartYear()
		endYear := startYear + years - 1
		endLabel := fmt.Sprintf("%d-%d", endYear, endYear+1)
		rangeNote := fmt.Sprintf("This invoice covers membership for %d financial years, from %s to %s.",
			years, opts.FinancialYear.Label, endLabel)
		notes = strings.TrimSpace(rangeNote + "\n\n" + notes)
	}

	date := opts.Date
	if date.IsZero() {
		date = now
	}

	inv := models.Invoice{
		Base:                 models.NewBase(),
		MemberID:             member.ID,
		FinancialYear:        opts.FinancialYear,
		LevelAtTimeOfInvoice: opts.Level,
		Date:                 date,
		DueDate:              opts.DueDate,
		Amount:               amount,
		Status:               models.InvoiceStatusUnpaid,
		IncludeJoiningFee:    opts.IncludeJoiningFee,
		NumberOfYears:        years,
		Notes:                notes,
	}
	if amount == 0 {
		markComplimentary(&inv, date, feeWaivedDetails)
	}
	return inv
}

// BulkMode selects which members a bulk generation run targets.
type BulkMode string

const (
	// BulkModeAll targets every non-archived member without an invoice for
	// the target year.
	BulkModeAll BulkMode = "all"
	// BulkModeUnpaid targets members currently projected Unpaid. Only valid
	// when generating for the currently viewed financial year.
	BulkModeUnpaid BulkMode = "unpaid"
	// BulkModeLevel targets members at one specific level.
	BulkModeLevel BulkMode = "level"
)

// BulkOptions configures a bulk generation run. Members are expected to be
// projected against ViewedYear (BulkModeUnpaid filters on those statuses).
type BulkOptions struct {
	Mode                    BulkMode
	TargetYear              models.FinancialYear
	ViewedYear              models.FinancialYear
	LevelID                 *utils.SixID
	DueDate                 time.Time
	IncludeJoiningFeeForNew bool
	Catalog                 []models.MembershipGroup
}

// BulkInvoices builds invoices for the selected member subset. Members who
// already hold a non-void invoice issued for the target year's label are
// always excluded, as are archived members. The joining fee applies per
// member only in their first year (start-date year equals the target start
// year) and only when IncludeJoiningFeeForNew is set. Members whose level id
// no longer resolves in the catalog are skipped rather than failing the run.
func BulkInvoices(members []AugmentedMember, existing []models.Invoice, opts BulkOptions, now time.Time) []models.Invoice {
	selected := selectBulkMembers(members, opts)

	invoices := make([]models.Invoice, 0, len(selected))
	for _, m := range selected {
		if hasInvoiceForYear(existing, m.ID, opts.TargetYear.Label) {
			continue
		}
		level := models.FindLevel(opts.Catalog, m.MembershipLevelID)
		if level == nil {
			continue
		}

		isFirstYear := m.StartDate.Year() == opts.TargetYear.StartYear()
		includeJoining := isFirstYear && opts.IncludeJoiningFeeForNew
		total := level.AnnualFee
		if includeJoining {
			total += level.JoiningFee
		}

		due := opts.DueDate
		inv := models.Invoice{
			Base:                 models.NewBase(),
			MemberID:             m.ID,
			FinancialYear:        opts.TargetYear,
			LevelAtTimeOfInvoice: *level,
			Date:                 now,
			DueDate:              &due,
			Amount:               total,
			Status:               models.InvoiceStatusUnpaid,
			IncludeJoiningFee:    includeJoining,
			NumberOfYears:        1,
		}
		if total == 0 {
			markComplimentary(&inv, now, complimentaryDetails)
		}
		invoices = append(invoices, inv)
	}
	return invoices
}

func selectBulkMembers(members []AugmentedMember, opts BulkOptions) []AugmentedMember {
	var selected []AugmentedMember
	for _, m := range members {
		if m.IsGloballyArchived {
			continue
		}
		switch opts.Mode {
		case BulkModeUnpaid:
			// Projected statuses are only meaningful for the viewed year.
			if opts.TargetYear.Label != opts.ViewedYear.Label {
				return nil
			}
			if m.Status != models.MemberStatusUnpaid {
				continue
			}
		case BulkModeLevel:
			if opts.LevelID == nil {
				return nil
			}
			if m.MembershipLevelID != *opts.LevelID {
				continue
			}
		}
		selected = append(selected, m)
	}
	return selected
}

func hasInvoiceForYear(invoices []models.Invoice, memberID utils.SixID, label string) bool {
	for i := range invoices {
		inv := &invoices[i]
		if inv.MemberID == memberID && inv.FinancialYear.Label == label && inv.Status != models.InvoiceStatusVoid {
			return true
		}
	}
	return false
}

func markComplimentary(inv *models.Invoice, paidDate time.Time, details string) {
	inv.Status = models.InvoiceStatusPaid
	inv.AmountPaid = 0
	inv.PaidDate = &paidDate
	inv.PaymentDetails = details
}
