package ixf

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleExport = `{
	"version": "1.0",
	"timestamp": "2024-05-01T00:00:00Z",
	"member_list": [
		{
			"asnum": 64500,
			"member_type": "peering",
			"connection_list": [
				{
					"state": "active",
					"if_list": [{"if_speed": 10000}, {"if_speed": "10000"}],
					"vlan_list": [
						{
							"vlan_id": 1,
							"ipv4": {"address": "195.69.146.250", "routeserver": true},
							"ipv6": {"address": "2001:7f8:1::a500:2906:1"}
						}
					]
				}
			]
		}
	]
}`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleExport))
	}))
	defer srv.Close()

	c := NewClient(0)
	doc, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(doc.MemberList) != 1 {
		t.Fatalf("Expected 1 member, got %d", len(doc.MemberList))
	}

	member := doc.MemberList[0]
	if member.ASNum != 64500 {
		t.Errorf("Expected asnum 64500, got %d", member.ASNum)
	}

	conn := member.ConnectionList[0]
	total := 0
	for i := range conn.IfList {
		s, err := conn.IfList[i].Speed()
		if err != nil {
			t.Fatalf("Speed parse failed: %v", err)
		}
		total += s
	}
	if total != 20000 {
		t.Errorf("Expected summed speed 20000, got %d", total)
	}

	if !conn.VLANList[0].IPv4.IsRouteServer() {
		t.Error("Expected routeserver flag on ipv4 block")
	}
}

func TestFetch_CachesCleanResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleExport))
	}))

	c := NewClient(0)
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	srv.Close()

	doc, err := c.FetchCached(srv.URL)
	if err != nil {
		t.Fatalf("FetchCached failed after server shutdown: %v", err)
	}
	if len(doc.MemberList) != 1 {
		t.Errorf("Expected cached document with 1 member, got %d", len(doc.MemberList))
	}
}

func TestFetchCached_MissIsSourceError(t *testing.T) {
	c := NewClient(0)
	_, err := c.FetchCached("http://example.invalid/export.json")
	srcErr, ok := err.(*SourceError)
	if !ok {
		t.Fatalf("Expected *SourceError, got %T", err)
	}
	if srcErr.Reason != "IX-F data not locally cached for this resource yet." {
		t.Errorf("Unexpected reason: %q", srcErr.Reason)
	}
}

func TestFetch_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(0)
	_, err := c.Fetch(context.Background(), srv.URL)
	srcErr, ok := err.(*SourceError)
	if !ok {
		t.Fatalf("Expected *SourceError, got %T", err)
	}
	if srcErr.Reason != "Got HTTP status 404" {
		t.Errorf("Unexpected reason: %q", srcErr.Reason)
	}
}

func TestFetch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(0)
	_, err := c.Fetch(context.Background(), srv.URL)
	srcErr, ok := err.(*SourceError)
	if !ok {
		t.Fatalf("Expected *SourceError, got %T", err)
	}
	if srcErr.Reason != "No JSON could be parsed" {
		t.Errorf("Unexpected reason: %q", srcErr.Reason)
	}
}

func TestFetch_EmptyURL(t *testing.T) {
	c := NewClient(0)
	if _, err := c.Fetch(context.Background(), ""); err == nil {
		t.Fatal("Expected error for empty url")
	}
}

func TestSanitize_MergesSplitFamilyVLANs(t *testing.T) {
	raw := `{
		"member_list": [
			{
				"asnum": 64500,
				"connection_list": [
					{
						"vlan_list": [
							{"vlan_id": 1, "ipv4": {"address": "195.69.146.250"}},
							{"vlan_id": 1, "ipv6": {"address": "2001:7f8:1::a500:2906:1"}}
						]
					}
				]
			}
		]
	}`

	var doc MemberExport
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	Sanitize(&doc)

	vlans := doc.MemberList[0].ConnectionList[0].VLANList
	if len(vlans) != 1 {
		t.Fatalf("Expected merged vlan_list of 1, got %d", len(vlans))
	}
	if vlans[0].IPv4.Addr() != "195.69.146.250" {
		t.Errorf("Merged entry lost ipv4: %q", vlans[0].IPv4.Addr())
	}
	if vlans[0].IPv6.Addr() != "2001:7f8:1::a500:2906:1" {
		t.Errorf("Merged entry lost ipv6: %q", vlans[0].IPv6.Addr())
	}
}

func TestSanitize_LeavesSameFamilyPairsAlone(t *testing.T) {
	raw := `{
		"member_list": [
			{
				"asnum": 64500,
				"connection_list": [
					{
						"vlan_list": [
							{"ipv4": {"address": "195.69.146.250"}},
							{"ipv4": {"address": "195.69.146.251"}}
						]
					}
				]
			}
		]
	}`

	var doc MemberExport
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	Sanitize(&doc)

	if len(doc.MemberList[0].ConnectionList[0].VLANList) != 2 {
		t.Error("Two same-family entries must not be merged")
	}
}

func TestSanitize_FlagsDocumentWithoutVLANs(t *testing.T) {
	doc := MemberExport{
		MemberList: []Member{
			{ASNum: 64500, ConnectionList: []Connection{{State: "active"}}},
		},
	}

	Sanitize(&doc)

	if doc.Error != ErrNoVLANEntries {
		t.Errorf("Expected %q, got %q", ErrNoVLANEntries, doc.Error)
	}
}

func TestMemberTypeAndStateDefaults(t *testing.T) {
	m := Member{}
	if m.Type() != "peering" {
		t.Errorf("Expected default member type 'peering', got %q", m.Type())
	}
	m.MemberType = "IXP"
	if m.Type() != "ixp" {
		t.Errorf("Expected lowercased member type 'ixp', got %q", m.Type())
	}

	c := Connection{}
	if c.NormalizedState() != "active" {
		t.Errorf("Expected default state 'active', got %q", c.NormalizedState())
	}
}

func TestInterfaceSpeed_Invalid(t *testing.T) {
	i := Interface{IfSpeed: json.RawMessage(`"this-is-not-a-number"`)}
	if _, err := i.Speed(); err == nil {
		t.Error("Expected error for non-numeric speed")
	}

	i = Interface{IfSpeed: json.RawMessage(`null`)}
	s, err := i.Speed()
	if err != nil || s != 0 {
		t.Errorf("Expected null speed to parse as 0, got %d, %v", s, err)
	}
}
