package models

import (
	"net/netip"
	"time"
)

// MemberProposal is a dated, persistent record of a pending
// reconciliation: the feed and the registry disagree about a member
// connection, and the network has not consented to automatic updates.
//
// Proposals are unique per identity key within an IXLAN; a later run
// that produces a decision for the same identity updates the existing
// row in place.
type MemberProposal struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	IXLanID uint   `gorm:"column:ixlan_id;index:idx_proposal_identity,unique;not null" json:"ixlan_id"`
	ASN     uint32 `gorm:"index:idx_proposal_identity,unique;not null" json:"asn"`

	// IPAddr4/IPAddr6 store the identity key's address components.
	// Empty string means absent; part of the unique key so that NULL
	// semantics do not defeat uniqueness.
	IPAddr4 string `gorm:"index:idx_proposal_identity,unique;size:64" json:"ipaddr4,omitempty"`
	IPAddr6 string `gorm:"index:idx_proposal_identity,unique;size:64" json:"ipaddr6,omitempty"`

	// Proposed payload.
	Speed       int    `json:"speed"`
	Operational bool   `json:"operational"`
	IsRSPeer    bool   `json:"is_rs_peer"`
	Data        string `gorm:"type:text" json:"data,omitempty"` // raw member blob

	Action Action  `gorm:"size:16;not null" json:"action"`
	Reason string  `gorm:"size:512" json:"reason"`
	Error  *string `gorm:"type:text" json:"error,omitempty"`

	State ProposalState `gorm:"default:open;size:16" json:"state"`

	// NetIXLanID links the proposal to the existing record that
	// triggered it (modify and delete proposals).
	NetIXLanID *uint `gorm:"column:netixlan_id" json:"netixlan_id,omitempty"`

	// RequirementOfID back-links a proposal that is a precondition of
	// another (a single-stack delete consumed by a dual-stack add).
	// Requirement proposals are suppressed from notifications.
	RequirementOfID *string `gorm:"size:36;index" json:"requirement_of_id,omitempty"`

	// Ticket handle, set once the proposal ages into a ticket.
	TicketID  *int64  `json:"ticket_id,omitempty"`
	TicketRef *string `gorm:"size:64" json:"ticket_ref,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated"`

	NetIXLan *NetworkIXLan `gorm:"foreignKey:NetIXLanID" json:"netixlan,omitempty"`
}

// TableName returns the table name for MemberProposal.
func (MemberProposal) TableName() string {
	return "member_proposals"
}

// Identity returns the proposal's identity key.
func (p *MemberProposal) Identity() Identity {
	id := Identity{ASN: p.ASN}
	if p.IPAddr4 != "" {
		if addr, err := netip.ParseAddr(p.IPAddr4); err == nil {
			id.IPv4 = addr.Unmap()
		}
	}
	if p.IPAddr6 != "" {
		if addr, err := netip.ParseAddr(p.IPAddr6); err == nil {
			id.IPv6 = addr
		}
	}
	return id
}

// SetIdentity writes the identity key components onto the proposal row.
func (p *MemberProposal) SetIdentity(id Identity) {
	p.ASN = id.ASN
	p.IPAddr4 = ""
	p.IPAddr6 = ""
	if id.HasIPv4() {
		p.IPAddr4 = id.IPv4.String()
	}
	if id.HasIPv6() {
		p.IPAddr6 = id.IPv6.String()
	}
}

// Changes returns the business fields that differ between the proposal's
// payload and the given connection record, in stable order.
func (p *MemberProposal) Changes(n *NetworkIXLan) []string {
	if n == nil {
		return nil
	}
	var changed []string
	if p.Speed != n.Speed {
		changed = append(changed, "speed")
	}
	if p.IsRSPeer != n.IsRSPeer {
		changed = append(changed, "is_rs_peer")
	}
	if p.Operational != n.Operational {
		changed = append(changed, "operational")
	}
	return changed
}

// HasTicket reports whether a ticket has been attached to the proposal.
func (p *MemberProposal) HasTicket() bool {
	return p.TicketID != nil || p.TicketRef != nil
}

func (p *MemberProposal) String() string {
	return p.Identity().String()
}
