package engine

import (
	"sort"
	"time"

	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/utils"
)

// Grace period after a financial year starts before a member with no
// covering invoice is reported Unpaid rather than Pending.
const graceMonths = 1

// AugmentedMember is a member augmented with fields derived for one target
// financial year. MembershipLevelID may differ from the stored member: when
// an invoice covers the target year, the level snapshotted on the latest
// covering invoice dictates the level shown for that year.
type AugmentedMember struct {
	models.Member `bson:",inline"`
	Status        models.MemberStatus `bson:"status" json:"status"`
	HasInvoice    bool                `bson:"has_invoice" json:"has_invoice"`
}

// ProjectStatuses derives every member's payment status for the target
// financial year from the full invoice history. It is a pure function of its
// inputs; now only feeds the no-invoice grace test.
func ProjectStatuses(members []models.Member, invoices []models.Invoice, target models.FinancialYear, now time.Time) []AugmentedMember {
	out := make([]AugmentedMember, 0, len(members))
	for i := range members {
		out = append(out, ProjectStatus(members[i], invoices, target, now))
	}
	return out
}

// ProjectStatus derives one member's status for the target financial year.
//
// Precedence runs across the whole covering set, not just the latest
// invoice: any paid covering invoice makes the member Paid, else any
// partially-paid one makes them Partially Paid, else an unpaid covering
// invoice makes them Unpaid. With no covering invoice at all the member is
// Pending until one calendar month past the year's start, Unpaid after.
func ProjectStatus(member models.Member, invoices []models.Invoice, target models.FinancialYear, now time.Time) AugmentedMember {
	covering := coveringInvoices(invoices, member.ID, target.Label)

	// Latest covering invoice by date. Stable sort keeps insertion order
	// as the tie-break for equal dates.
	sort.SliceStable(covering, func(i, j int) bool {
		return covering[i].Date.After(covering[j].Date)
	})

	am := AugmentedMember{Member: member}

	var anyPaid, anyPartial bool
	for i := range covering {
		switch covering[i].Status {
		case models.InvoiceStatusPaid:
			anyPaid = true
		case models.InvoiceStatusPartiallyPaid:
			anyPartial = true
		}
	}

	if len(covering) > 0 {
		am.HasInvoice = true
		am.MembershipLevelID = covering[0].LevelAtTimeOfInvoice.ID
	}

	switch {
	case anyPaid:
		am.Status = models.MemberStatusPaid
	case anyPartial:
		am.Status = models.MemberStatusPartiallyPaid
	case len(covering) > 0:
		am.Status = models.MemberStatusUnpaid
	default:
		oneMonthAfterStart := target.Start.AddDate(0, graceMonths, 0)
		if now.After(oneMonthAfterStart) && target.Start.Before(now) {
			am.Status = models.MemberStatusUnpaid
		} else {
			am.Status = models.MemberStatusPending
		}
	}

	return am
}

// OutstandingInvoice returns the invoice a payment should be recorded
// against for a member in a financial year: the most recent non-void invoice
// issued for that year's label that is not yet fully paid. Returns nil when
// nothing is outstanding.
func OutstandingInvoice(invoices []models.Invoice, memberID utils.SixID, label string) *models.Invoice {
	var candidates []models.Invoice
	for i := range invoices {
		inv := invoices[i]
		if inv.MemberID == memberID && inv.FinancialYear.Label == label && inv.Status != models.InvoiceStatusVoid {
			candidates = append(candidates, inv)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Date.After(candidates[j].Date)
	})
	for i := range candidates {
		if candidates[i].Status != models.InvoiceStatusPaid {
			return &candidates[i]
		}
	}
	return nil
}

func coveringInvoices(invoices []models.Invoice, memberID utils.SixID, label string) []models.Invoice {
	var covering []models.Invoice
	for i := range invoices {
		inv := invoices[i]
		if inv.MemberID == memberID && inv.Covers(label) {
			covering = append(covering, inv)
		}
	}
	return covering
}
