package models

import (
	"eccnsw/memberdesk/internal/utils"
)

// IBase is implemented by every persisted record so insert retry logic
// can regenerate the ID on a duplicate key collision.
type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id utils.SixID)
}

// Base carries the SixID primary key embedded in every stored record.
type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID == (utils.SixID{}) {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

func (m *Base) SetID(id utils.SixID) {
	m.ID = id
}

// NewBase returns a Base with a freshly generated ID.
func NewBase() Base {
	return Base{ID: utils.NewSixID()}
}
