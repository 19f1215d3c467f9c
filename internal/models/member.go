package models

import (
	"time"

	"eccnsw/memberdesk/internal/utils"
)

// MemberStatus is the per-financial-year payment status projected for a
// member. It is derived from the invoice history, never stored.
type MemberStatus string

const (
	MemberStatusPaid          MemberStatus = "Paid"
	MemberStatusUnpaid        MemberStatus = "Unpaid"
	MemberStatusPending       MemberStatus = "Pending"
	MemberStatusPartiallyPaid MemberStatus = "Partially Paid"
)

// DelegateType distinguishes ordinary and youth delegate seats.
type DelegateType string

const (
	DelegateTypeOrdinary DelegateType = "delegate"
	DelegateTypeYouth    DelegateType = "youth_delegate"
)

// Delegate is one named seat on a member's delegation.
type Delegate struct {
	Name string       `bson:"name" json:"name"`
	Type DelegateType `bson:"type" json:"type"`
}

// Member is an organisation (or individual) holding a membership.
// CancelledFinancialYears holds financial-year labels the membership was
// cancelled for; cancellation is per-year, archival is permanent.
type Member struct {
	Base                    `bson:",inline"`
	Name                    string      `bson:"name" json:"name"`
	MembershipLevelID       utils.SixID `bson:"membership_level_id" json:"membership_level_id"`
	StartDate               time.Time   `bson:"start_date" json:"start_date"`
	EndDate                 time.Time   `bson:"end_date" json:"end_date"`
	ContactName             string      `bson:"contact_name" json:"contact_name"`
	Telephone               string      `bson:"telephone" json:"telephone"`
	PostalAddress           string      `bson:"postal_address" json:"postal_address"`
	IsGloballyArchived      bool        `bson:"is_globally_archived" json:"is_globally_archived"`
	ArchivedDate            *time.Time  `bson:"archived_date,omitempty" json:"archived_date,omitempty"`
	Delegates               []Delegate  `bson:"delegates" json:"delegates"`
	CancelledFinancialYears []string    `bson:"cancelled_financial_years" json:"cancelled_financial_years"`
	CreatedDate             time.Time   `bson:"created_date" json:"created_date"`
}

// IsCancelledFor reports whether the membership is cancelled for the given
// financial-year label.
func (m *Member) IsCancelledFor(label string) bool {
	for _, l := range m.CancelledFinancialYears {
		if l == label {
			return true
		}
	}
	return false
}
