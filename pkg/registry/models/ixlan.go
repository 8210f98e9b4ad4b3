package models

import (
	"net/netip"
	"time"
)

// IXLan is a layer-2 domain at an exchange. It owns the member-export
// feed URL and the set of address prefixes that member addresses must
// fall into.
type IXLan struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExchangeID uint   `gorm:"index;not null" json:"exchange_id"`
	Name       string `gorm:"size:255" json:"name"`
	Status     Status `gorm:"default:ok;size:16" json:"status"`

	// MemberExportURL is the IX-F member export feed for this LAN.
	// Empty means the exchange does not publish a feed.
	MemberExportURL string `gorm:"size:512" json:"member_export_url"`

	// ImportError holds the most recent feed-level error, cleared on
	// the next successful fetch.
	ImportError *string `json:"import_error,omitempty"`

	// ImportErrorNotified is when the exchange was last notified about
	// a feed-level error; used to throttle repeat notifications.
	ImportErrorNotified *time.Time `json:"import_error_notified,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Exchange *Exchange     `gorm:"foreignKey:ExchangeID" json:"exchange,omitempty"`
	Prefixes []IXLanPrefix `gorm:"foreignKey:IXLanID" json:"prefixes,omitempty"`
}

// TableName returns the table name for IXLan.
func (IXLan) TableName() string {
	return "ixlans"
}

// ActivePrefixes returns the parsed prefixes with status ok. Prefixes
// that fail to parse are skipped.
func (l *IXLan) ActivePrefixes() []netip.Prefix {
	var prefixes []netip.Prefix
	for _, p := range l.Prefixes {
		if p.Status != StatusOK {
			continue
		}
		pfx, err := netip.ParsePrefix(p.CIDR)
		if err != nil {
			continue
		}
		prefixes = append(prefixes, pfx)
	}
	return prefixes
}

// TestAddress reports whether addr falls into one of the IXLAN's active
// prefixes. An absent address passes: the check constrains only
// addresses that are actually present.
func (l *IXLan) TestAddress(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	for _, pfx := range l.ActivePrefixes() {
		if pfx.Contains(addr) {
			return true
		}
	}
	return false
}

// IXLanPrefix is an address block assigned to an IXLAN.
type IXLanPrefix struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	IXLanID uint   `gorm:"column:ixlan_id;index;not null" json:"ixlan_id"`
	CIDR    string `gorm:"size:64;not null" json:"cidr"`
	Status  Status `gorm:"default:ok;size:16" json:"status"`
}

// TableName returns the table name for IXLanPrefix.
func (IXLanPrefix) TableName() string {
	return "ixlan_prefixes"
}
