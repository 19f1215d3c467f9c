package models

import (
	"time"
)

// AdminProfile is the operator's display name and contact address.
type AdminProfile struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
}

// AdminAccount is the single operator account. There is exactly one document
// in the admin collection, keyed by AdminAccountID.
type AdminAccount struct {
	ID               string       `bson:"_id" json:"-"`
	PasswordHash     string       `bson:"password" json:"-"`
	Profile          AdminProfile `bson:"profile" json:"profile"`
	LoginTimestamps  []time.Time  `bson:"login_timestamps" json:"login_timestamps"`
	LogoutTimestamps []time.Time  `bson:"logout_timestamps" json:"logout_timestamps"`
	UpdatedAt        time.Time    `bson:"updated_at" json:"updated_at"`
}

// AppSettings holds operator-editable presentation settings used on rendered
// invoices. CustomLogoKey is the storage key of the uploaded logo, empty when
// the default logo applies.
type AppSettings struct {
	ID                  string `bson:"_id" json:"-"`
	CustomLogoKey       string `bson:"custom_logo_key,omitempty" json:"custom_logo_key,omitempty"`
	PaymentInstructions string `bson:"payment_instructions" json:"payment_instructions"`
}

const (
	// AdminAccountID keys the singleton admin document.
	AdminAccountID = "admin"
	// AppSettingsID keys the singleton settings document.
	AppSettingsID = "settings"
)
