package models

import "testing"

func TestNewIdentity(t *testing.T) {
	id, err := NewIdentity(64500, "195.69.146.250", "2001:7f8:1::a500:2906:1")
	if err != nil {
		t.Fatalf("NewIdentity failed: %v", err)
	}
	if !id.HasIPv4() || !id.HasIPv6() {
		t.Fatalf("Expected both families present, got %v", id)
	}
	if id.ASN != 64500 {
		t.Errorf("Expected ASN 64500, got %d", id.ASN)
	}
}

func TestNewIdentity_SingleFamily(t *testing.T) {
	id, err := NewIdentity(64500, "195.69.146.250", "")
	if err != nil {
		t.Fatalf("NewIdentity failed: %v", err)
	}
	if !id.HasIPv4() || id.HasIPv6() {
		t.Fatalf("Expected IPv4 only, got %v", id)
	}
}

func TestNewIdentity_Invalid(t *testing.T) {
	if _, err := NewIdentity(64500, "not-an-ip", ""); err == nil {
		t.Error("Expected error for malformed IPv4")
	}
	if _, err := NewIdentity(64500, "", "995.69.146.250"); err == nil {
		t.Error("Expected error for malformed IPv6")
	}
}

func TestNewIdentity_UnmapsMappedV4(t *testing.T) {
	mapped, err := NewIdentity(64500, "::ffff:195.69.146.250", "")
	if err != nil {
		t.Fatalf("NewIdentity failed: %v", err)
	}
	plain, err := NewIdentity(64500, "195.69.146.250", "")
	if err != nil {
		t.Fatalf("NewIdentity failed: %v", err)
	}
	if mapped != plain {
		t.Errorf("Expected mapped and plain IPv4 to compare equal: %v vs %v", mapped, plain)
	}
}

func TestIdentity_AbsentIsNotWildcard(t *testing.T) {
	full, _ := NewIdentity(64500, "195.69.146.250", "2001:7f8:1::a500:2906:1")
	v4only := full.V4Only()

	if full == v4only {
		t.Error("Expected dual-stack and v4-only identities to differ")
	}

	set := IdentitySet{}
	set.Add(full)
	if set.Contains(v4only) {
		t.Error("Seen-set must match on exact identity, not per family")
	}
	set.Add(v4only)
	if !set.Contains(v4only) {
		t.Error("Expected v4-only identity after explicit Add")
	}
}

func TestIdentity_String(t *testing.T) {
	full, _ := NewIdentity(64500, "195.69.146.250", "2001:7f8:1::a500:2906:1")
	if got := full.String(); got != "AS64500 195.69.146.250 2001:7f8:1::a500:2906:1" {
		t.Errorf("Unexpected String(): %q", got)
	}

	v6only, _ := NewIdentity(64500, "", "2001:7f8:1::a500:2906:1")
	if got := v6only.String(); got != "AS64500 - 2001:7f8:1::a500:2906:1" {
		t.Errorf("Unexpected String(): %q", got)
	}
}

func TestProposalStateTransitions(t *testing.T) {
	cases := []struct {
		from, to ProposalState
		want     bool
	}{
		{ProposalOpen, ProposalResolved, true},
		{ProposalOpen, ProposalConflicted, true},
		{ProposalConflicted, ProposalResolved, true},
		{ProposalConflicted, ProposalOpen, true},
		{ProposalResolved, ProposalOpen, false},
		{ProposalResolved, ProposalConflicted, false},
		{ProposalOpen, ProposalOpen, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
