package models

import (
	"net/netip"
	"time"
)

// NetworkIXLan is the authoritative local statement "network N is
// present on IXLAN L with addresses (v4?, v6?)".
//
// Invariants:
//   - IPv4 and IPv6 are each unique per IXLAN among active records.
//   - At least one of IPv4/IPv6 is non-null.
//   - Any non-null address lies within one of the IXLAN's active prefixes.
//   - Deleted rows remain for audit.
//
// Uniqueness and prefix containment are enforced by the applier so that
// violations surface as conflicted proposals rather than transaction
// aborts.
type NetworkIXLan struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	NetworkID uint   `gorm:"index;not null" json:"network_id"`
	IXLanID   uint   `gorm:"column:ixlan_id;index;not null" json:"ixlan_id"`
	ASN       uint32 `gorm:"index;not null" json:"asn"`

	IPAddr4 *string `gorm:"size:64;index" json:"ipaddr4,omitempty"`
	IPAddr6 *string `gorm:"size:64;index" json:"ipaddr6,omitempty"`

	Speed       int    `json:"speed"`
	Operational bool   `gorm:"default:true" json:"operational"`
	IsRSPeer    bool   `gorm:"default:false" json:"is_rs_peer"`
	Status      Status `gorm:"default:ok;size:16" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Network *Network `gorm:"foreignKey:NetworkID" json:"network,omitempty"`
	IXLan   *IXLan   `gorm:"foreignKey:IXLanID" json:"ixlan,omitempty"`
}

// TableName returns the table name for NetworkIXLan.
func (NetworkIXLan) TableName() string {
	return "netixlans"
}

// Identity returns the record's reconciliation identity.
func (n *NetworkIXLan) Identity() Identity {
	id := Identity{ASN: n.ASN}
	if n.IPAddr4 != nil {
		if addr, err := netip.ParseAddr(*n.IPAddr4); err == nil {
			id.IPv4 = addr.Unmap()
		}
	}
	if n.IPAddr6 != nil {
		if addr, err := netip.ParseAddr(*n.IPAddr6); err == nil {
			id.IPv6 = addr
		}
	}
	return id
}

// NetIXLanVersion is an append-only snapshot of a connection record,
// written in the same transaction as every applier mutation. Version ids
// are monotonically increasing per record; the archive references the
// snapshots immediately before and after each applied change.
type NetIXLanVersion struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	NetIXLanID uint `gorm:"column:netixlan_id;index;not null" json:"netixlan_id"`

	ASN         uint32  `json:"asn"`
	IPAddr4     *string `gorm:"size:64" json:"ipaddr4,omitempty"`
	IPAddr6     *string `gorm:"size:64" json:"ipaddr6,omitempty"`
	Speed       int     `json:"speed"`
	Operational bool    `json:"operational"`
	IsRSPeer    bool    `json:"is_rs_peer"`
	Status      Status  `gorm:"size:16" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for NetIXLanVersion.
func (NetIXLanVersion) TableName() string {
	return "netixlan_versions"
}

// Snapshot captures the current state of a connection record as a
// version row.
func (n *NetworkIXLan) Snapshot() *NetIXLanVersion {
	return &NetIXLanVersion{
		NetIXLanID:  n.ID,
		ASN:         n.ASN,
		IPAddr4:     n.IPAddr4,
		IPAddr6:     n.IPAddr6,
		Speed:       n.Speed,
		Operational: n.Operational,
		IsRSPeer:    n.IsRSPeer,
		Status:      n.Status,
	}
}
