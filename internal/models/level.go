package models

import (
	"eccnsw/memberdesk/internal/utils"
)

// DelegateOptions declares how many delegate seats a membership level carries.
type DelegateOptions struct {
	Delegates      int `bson:"delegates" json:"delegates"`
	YouthDelegates int `bson:"youth_delegates" json:"youth_delegates"`
}

// MembershipLevel defines a fee tier. Invoices embed a snapshot of the level
// they were issued against, so historical invoices remain renderable after
// the catalog changes.
type MembershipLevel struct {
	ID              utils.SixID     `bson:"id" json:"id"`
	Name            string          `bson:"name" json:"name"`
	JoiningFee      float64         `bson:"joining_fee" json:"joining_fee"`
	AnnualFee       float64         `bson:"annual_fee" json:"annual_fee"`
	DelegateOptions DelegateOptions `bson:"delegate_options" json:"delegate_options"`
}

// MembershipGroup is a named collection of levels. Group names are unique
// within the catalog.
type MembershipGroup struct {
	Base      `bson:",inline"`
	GroupName string            `bson:"group_name" json:"group_name"`
	Levels    []MembershipLevel `bson:"levels" json:"levels"`
}

// FindLevel looks up a level by id across a grouped catalog.
// Returns nil when the id is no longer present.
func FindLevel(groups []MembershipGroup, id utils.SixID) *MembershipLevel {
	for i := range groups {
		for j := range groups[i].Levels {
			if groups[i].Levels[j].ID == id {
				return &groups[i].Levels[j]
			}
		}
	}
	return nil
}
