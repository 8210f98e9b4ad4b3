package models

import "time"

// Exchange represents an Internet Exchange Point.
type Exchange struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Status Status `gorm:"default:ok;size:16" json:"status"`

	// IXFLastImport is bumped whenever an import run changed any
	// connection record or proposal under one of the exchange's IXLANs.
	IXFLastImport *time.Time `json:"ixf_last_import,omitempty"`

	// IXFNetCount is the number of member networks seen in the most
	// recent feed import.
	IXFNetCount int `json:"ixf_net_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Contacts []ExchangeContact `gorm:"foreignKey:ExchangeID" json:"contacts,omitempty"`
	IXLans   []IXLan           `gorm:"foreignKey:ExchangeID" json:"ixlans,omitempty"`
}

// TableName returns the table name for Exchange.
func (Exchange) TableName() string {
	return "exchanges"
}

// TechnicalContacts returns the emails of the exchange's technical
// contacts. Notifications about feed conflicts go to these addresses.
func (ix *Exchange) TechnicalContacts() []string {
	var emails []string
	for _, c := range ix.Contacts {
		if c.Role == ContactRoleTechnical && c.Email != "" {
			emails = append(emails, c.Email)
		}
	}
	return emails
}

// Contact roles recognized on exchange and network contact lists.
const (
	ContactRoleTechnical = "technical"
	ContactRolePolicy    = "policy"
)

// ExchangeContact is a contact point published by an exchange.
type ExchangeContact struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExchangeID uint   `gorm:"index;not null" json:"exchange_id"`
	Role       string `gorm:"size:32;not null" json:"role"`
	Email      string `gorm:"size:255" json:"email"`
}

// TableName returns the table name for ExchangeContact.
func (ExchangeContact) TableName() string {
	return "exchange_contacts"
}
