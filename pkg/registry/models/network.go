package models

import "time"

// Network is an AS-numbered participant.
type Network struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	ASN    uint32 `gorm:"uniqueIndex;not null" json:"asn"`
	Name   string `gorm:"size:255" json:"name"`
	Status Status `gorm:"default:ok;size:16" json:"status"`

	// IPv4Support / IPv6Support declare which address families the
	// network peers over. A feed row carrying an address in a denied
	// family raises a protocol-conflict notification.
	IPv4Support bool `gorm:"default:true" json:"ipv4_support"`
	IPv6Support bool `gorm:"default:true" json:"ipv6_support"`

	// AllowIXPUpdate is the network's consent to automatic application
	// of feed-published changes. Without it every change becomes a
	// proposal awaiting human action.
	AllowIXPUpdate bool `gorm:"default:false" json:"allow_ixp_update"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Contacts []NetworkContact `gorm:"foreignKey:NetworkID" json:"contacts,omitempty"`
}

// TableName returns the table name for Network.
func (Network) TableName() string {
	return "networks"
}

// PolicyContacts returns the emails of the network's policy contacts.
func (n *Network) PolicyContacts() []string {
	var emails []string
	for _, c := range n.Contacts {
		if c.Role == ContactRolePolicy && c.Email != "" {
			emails = append(emails, c.Email)
		}
	}
	return emails
}

// NetworkContact is a contact point published by a network.
type NetworkContact struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	NetworkID uint   `gorm:"index;not null" json:"network_id"`
	Role      string `gorm:"size:32;not null" json:"role"`
	Email     string `gorm:"size:255" json:"email"`
}

// TableName returns the table name for NetworkContact.
func (NetworkContact) TableName() string {
	return "network_contacts"
}
