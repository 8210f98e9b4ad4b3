// Package ixf consumes the IX-F member-export schema: fetching,
// caching and sanitizing the JSON documents exchanges publish about
// their current membership.
package ixf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MemberExport is the top level of an IX-F member-export document.
// Only the paths the importer consumes are modeled; unknown fields are
// ignored on decode.
type MemberExport struct {
	Version    string   `json:"version,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
	MemberList []Member `json:"member_list"`

	// Error carries a top-level feed error (transport, shape, or
	// sanitize failure) surfaced on the parsed document.
	Error string `json:"pdb_error,omitempty"`
}

// Member is one entry of member_list.
type Member struct {
	ASNum          uint32       `json:"asnum"`
	MemberType     string       `json:"member_type,omitempty"`
	Name           string       `json:"name,omitempty"`
	ConnectionList []Connection `json:"connection_list"`
}

// Type returns the member type, defaulting to "peering" and normalized
// to lower case.
func (m *Member) Type() string {
	if m.MemberType == "" {
		return "peering"
	}
	return strings.ToLower(m.MemberType)
}

// Connection is one entry of a member's connection_list.
type Connection struct {
	State    string      `json:"state,omitempty"`
	IfList   []Interface `json:"if_list,omitempty"`
	VLANList []VLANEntry `json:"vlan_list,omitempty"`
}

// NormalizedState returns the connection state, defaulting to "active"
// and normalized to lower case.
func (c *Connection) NormalizedState() string {
	if c.State == "" {
		return "active"
	}
	return strings.ToLower(c.State)
}

// Interface is one entry of if_list. Speeds appear in the wild as both
// JSON numbers and strings, so the raw value is kept and parsed lazily.
type Interface struct {
	IfSpeed json.RawMessage `json:"if_speed,omitempty"`
}

// Speed parses the interface speed as an integer in Mbit/s.
func (i *Interface) Speed() (int, error) {
	raw := strings.TrimSpace(string(i.IfSpeed))
	if raw == "" || raw == "null" {
		return 0, nil
	}
	raw = strings.Trim(raw, `"`)
	speed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid speed value: %s", raw)
	}
	return speed, nil
}

// VLANEntry is one entry of vlan_list: per-VLAN addressing for a member
// connection.
type VLANEntry struct {
	VLANID *int      `json:"vlan_id,omitempty"`
	IPv4   *VLANAddr `json:"ipv4,omitempty"`
	IPv6   *VLANAddr `json:"ipv6,omitempty"`
}

// VLANAddr is the per-family address block of a vlan_list entry.
type VLANAddr struct {
	Address     string `json:"address,omitempty"`
	RouteServer bool   `json:"routeserver,omitempty"`
	MaxPrefix   int    `json:"max_prefix,omitempty"`
}

// Addr returns the address string, or "" when the block is absent.
func (a *VLANAddr) Addr() string {
	if a == nil {
		return ""
	}
	return a.Address
}

// IsRouteServer reports the routeserver flag, false when absent.
func (a *VLANAddr) IsRouteServer() bool {
	return a != nil && a.RouteServer
}
