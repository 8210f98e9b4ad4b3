package models

import (
	"fmt"
	"net/netip"
)

// Identity is the reconciliation identity of a member connection: the
// triple (asn, ipv4, ipv6) where an absent address is the zero netip.Addr.
//
// Two identities are equal under exact component equality. An absent
// address is a first-class value, never a wildcard: (asn, v4, none) and
// (asn, v4, v6) are distinct members.
//
// Identity is comparable and safe to use as a map key.
type Identity struct {
	ASN  uint32
	IPv4 netip.Addr
	IPv6 netip.Addr
}

// NewIdentity builds an Identity from optional address strings.
// An empty string means the address is absent. Malformed addresses
// return an error; the caller decides whether to skip the row.
func NewIdentity(asn uint32, ipv4, ipv6 string) (Identity, error) {
	id := Identity{ASN: asn}

	if ipv4 != "" {
		addr, err := netip.ParseAddr(ipv4)
		if err != nil {
			return Identity{}, fmt.Errorf("invalid IPv4 address %q: %w", ipv4, err)
		}
		id.IPv4 = addr.Unmap()
	}

	if ipv6 != "" {
		addr, err := netip.ParseAddr(ipv6)
		if err != nil {
			return Identity{}, fmt.Errorf("invalid IPv6 address %q: %w", ipv6, err)
		}
		id.IPv6 = addr
	}

	return id, nil
}

// HasIPv4 reports whether the IPv4 component is present.
func (id Identity) HasIPv4() bool {
	return id.IPv4.IsValid()
}

// HasIPv6 reports whether the IPv6 component is present.
func (id Identity) HasIPv6() bool {
	return id.IPv6.IsValid()
}

// V4Only returns the identity with the IPv6 component cleared.
func (id Identity) V4Only() Identity {
	return Identity{ASN: id.ASN, IPv4: id.IPv4}
}

// V6Only returns the identity with the IPv4 component cleared.
func (id Identity) V6Only() Identity {
	return Identity{ASN: id.ASN, IPv6: id.IPv6}
}

func (id Identity) String() string {
	v4, v6 := "-", "-"
	if id.HasIPv4() {
		v4 = id.IPv4.String()
	}
	if id.HasIPv6() {
		v6 = id.IPv6.String()
	}
	return fmt.Sprintf("AS%d %s %s", id.ASN, v4, v6)
}

// IdentitySet tracks the identities seen in a feed during one run.
type IdentitySet map[Identity]struct{}

// Add inserts an identity into the set.
func (s IdentitySet) Add(id Identity) {
	s[id] = struct{}{}
}

// Contains reports whether the exact identity is in the set.
func (s IdentitySet) Contains(id Identity) bool {
	_, ok := s[id]
	return ok
}
