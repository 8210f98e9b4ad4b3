package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/peerix/ixsync/pkg/registry/models"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()

	s, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var seedCounter int

// seedIXLan creates an exchange with one IXLAN and returns the IXLAN
// with its exchange preloaded.
func seedIXLan(t *testing.T, s *GORMStore) *models.IXLan {
	t.Helper()
	ctx := context.Background()

	seedCounter++
	ix := &models.Exchange{Name: fmt.Sprintf("Test-IX-%d", seedCounter)}
	if err := s.CreateExchange(ctx, ix); err != nil {
		t.Fatalf("Failed to create exchange: %v", err)
	}

	ixlan := &models.IXLan{
		ExchangeID:      ix.ID,
		Name:            "main",
		MemberExportURL: "https://example.com/export.json",
	}
	if err := s.CreateIXLan(ctx, ixlan); err != nil {
		t.Fatalf("Failed to create ixlan: %v", err)
	}

	loaded, err := s.GetIXLan(ctx, ixlan.ID)
	if err != nil {
		t.Fatalf("Failed to load ixlan: %v", err)
	}
	return loaded
}

func seedNetwork(t *testing.T, s *GORMStore, asn uint32) *models.Network {
	t.Helper()

	net := &models.Network{ASN: asn, Name: fmt.Sprintf("AS%d Network", asn)}
	if err := s.CreateNetwork(context.Background(), net); err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}
	return net
}

func strptr(s string) *string { return &s }

func TestNetIXLanLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)
	net := seedNetwork(t, s, 64500)

	n := &models.NetworkIXLan{
		NetworkID:   net.ID,
		IXLanID:     ixlan.ID,
		ASN:         64500,
		IPAddr4:     strptr("195.69.146.250"),
		Speed:       10000,
		Operational: true,
	}
	if err := s.CreateNetIXLan(ctx, n); err != nil {
		t.Fatalf("CreateNetIXLan failed: %v", err)
	}
	if n.ID == 0 {
		t.Fatal("Expected record id after create")
	}

	// Create appends the first version snapshot.
	v1, err := s.LatestVersion(ctx, n.ID)
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if v1 == nil || v1.Speed != 10000 {
		t.Fatalf("Expected initial version with speed 10000, got %+v", v1)
	}

	n.Speed = 20000
	if err := s.UpdateNetIXLan(ctx, n); err != nil {
		t.Fatalf("UpdateNetIXLan failed: %v", err)
	}

	v2, err := s.LatestVersion(ctx, n.ID)
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if v2.ID == v1.ID || v2.Speed != 20000 {
		t.Fatalf("Expected new version with speed 20000, got %+v", v2)
	}

	// VersionAfter walks forward from a given snapshot id.
	after, err := s.VersionAfter(ctx, n.ID, v1.ID)
	if err != nil {
		t.Fatalf("VersionAfter failed: %v", err)
	}
	if after == nil || after.ID != v2.ID {
		t.Fatalf("Expected version %d after %d, got %+v", v2.ID, v1.ID, after)
	}

	if err := s.SoftDeleteNetIXLan(ctx, n); err != nil {
		t.Fatalf("SoftDeleteNetIXLan failed: %v", err)
	}

	active, err := s.ActiveNetIXLans(ctx, ixlan.ID, 0)
	if err != nil {
		t.Fatalf("ActiveNetIXLans failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected no active records after soft delete, got %d", len(active))
	}

	// The row itself stays behind for audit.
	got, err := s.GetNetIXLan(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNetIXLan failed: %v", err)
	}
	if got.Status != models.StatusDeleted {
		t.Errorf("Expected deleted status, got %s", got.Status)
	}
}

func TestActiveNetIXLans_ASNFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)
	netA := seedNetwork(t, s, 64500)
	netB := seedNetwork(t, s, 64501)

	for _, rec := range []*models.NetworkIXLan{
		{NetworkID: netA.ID, IXLanID: ixlan.ID, ASN: 64500, IPAddr4: strptr("195.69.146.250")},
		{NetworkID: netB.ID, IXLanID: ixlan.ID, ASN: 64501, IPAddr4: strptr("195.69.146.251")},
	} {
		if err := s.CreateNetIXLan(ctx, rec); err != nil {
			t.Fatalf("CreateNetIXLan failed: %v", err)
		}
	}

	all, err := s.ActiveNetIXLans(ctx, ixlan.ID, 0)
	if err != nil {
		t.Fatalf("ActiveNetIXLans failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 active records, got %d", len(all))
	}

	only, err := s.ActiveNetIXLans(ctx, ixlan.ID, 64501)
	if err != nil {
		t.Fatalf("ActiveNetIXLans failed: %v", err)
	}
	if len(only) != 1 || only[0].ASN != 64501 {
		t.Fatalf("Expected single record for AS64501, got %+v", only)
	}
}

func TestActiveAddressInUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)
	net := seedNetwork(t, s, 64500)

	n := &models.NetworkIXLan{
		NetworkID: net.ID,
		IXLanID:   ixlan.ID,
		ASN:       64500,
		IPAddr4:   strptr("195.69.146.250"),
	}
	if err := s.CreateNetIXLan(ctx, n); err != nil {
		t.Fatalf("CreateNetIXLan failed: %v", err)
	}

	inUse, err := s.ActiveAddressInUse(ctx, ixlan.ID, "ip_addr4", "195.69.146.250", 0)
	if err != nil {
		t.Fatalf("ActiveAddressInUse failed: %v", err)
	}
	if !inUse {
		t.Error("Expected address to be in use")
	}

	// The owning record itself does not count.
	inUse, err = s.ActiveAddressInUse(ctx, ixlan.ID, "ip_addr4", "195.69.146.250", n.ID)
	if err != nil {
		t.Fatalf("ActiveAddressInUse failed: %v", err)
	}
	if inUse {
		t.Error("Excluded record must not count as a conflict")
	}

	// Deleted records release their addresses.
	if err := s.SoftDeleteNetIXLan(ctx, n); err != nil {
		t.Fatalf("SoftDeleteNetIXLan failed: %v", err)
	}
	inUse, err = s.ActiveAddressInUse(ctx, ixlan.ID, "ip_addr4", "195.69.146.250", 0)
	if err != nil {
		t.Fatalf("ActiveAddressInUse failed: %v", err)
	}
	if inUse {
		t.Error("Deleted record must not hold the address")
	}
}

func TestProposalIdentityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)

	identity, err := models.NewIdentity(64500, "195.69.146.250", "")
	if err != nil {
		t.Fatalf("NewIdentity failed: %v", err)
	}

	if _, err := s.GetProposalByIdentity(ctx, ixlan.ID, identity); !errors.Is(err, models.ErrProposalNotFound) {
		t.Fatalf("Expected ErrProposalNotFound, got %v", err)
	}

	p := &models.MemberProposal{
		IXLanID: ixlan.ID,
		Action:  models.ActionAdd,
		Reason:  "Peering connection to exchange",
		Speed:   10000,
	}
	p.SetIdentity(identity)
	if err := s.SaveProposal(ctx, p); err != nil {
		t.Fatalf("SaveProposal failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("Expected UUID assigned on create")
	}
	if p.State != models.ProposalOpen {
		t.Fatalf("Expected default state open, got %s", p.State)
	}

	got, err := s.GetProposalByIdentity(ctx, ixlan.ID, identity)
	if err != nil {
		t.Fatalf("GetProposalByIdentity failed: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("Expected proposal %s, got %s", p.ID, got.ID)
	}

	// Saving again updates the row in place.
	got.Speed = 20000
	got.State = models.ProposalConflicted
	if err := s.SaveProposal(ctx, got); err != nil {
		t.Fatalf("SaveProposal update failed: %v", err)
	}

	again, err := s.GetProposalByIdentity(ctx, ixlan.ID, identity)
	if err != nil {
		t.Fatalf("GetProposalByIdentity failed: %v", err)
	}
	if again.Speed != 20000 || again.State != models.ProposalConflicted {
		t.Errorf("Expected updated proposal, got %+v", again)
	}

	if err := s.DeleteProposal(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProposal failed: %v", err)
	}
	if err := s.DeleteProposal(ctx, p.ID); !errors.Is(err, models.ErrProposalNotFound) {
		t.Errorf("Expected ErrProposalNotFound on double delete, got %v", err)
	}
}

func TestOpenProposalsWithoutTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)

	mk := func(v4 string, state models.ProposalState) *models.MemberProposal {
		identity, err := models.NewIdentity(64500, v4, "")
		if err != nil {
			t.Fatalf("NewIdentity failed: %v", err)
		}
		p := &models.MemberProposal{IXLanID: ixlan.ID, Action: models.ActionAdd, State: state}
		p.SetIdentity(identity)
		if err := s.SaveProposal(ctx, p); err != nil {
			t.Fatalf("SaveProposal failed: %v", err)
		}
		return p
	}

	open := mk("195.69.146.1", models.ProposalOpen)
	conflicted := mk("195.69.146.2", models.ProposalConflicted)
	mk("195.69.146.3", models.ProposalResolved)

	ticketed := mk("195.69.146.4", models.ProposalOpen)
	ticketID := int64(42)
	if err := s.AttachTicket(ctx, ticketed.ID, &ticketID, strptr("T-42")); err != nil {
		t.Fatalf("AttachTicket failed: %v", err)
	}

	requirement := mk("195.69.146.5", models.ProposalOpen)
	requirement.RequirementOfID = &open.ID
	if err := s.SaveProposal(ctx, requirement); err != nil {
		t.Fatalf("SaveProposal failed: %v", err)
	}

	got, err := s.OpenProposalsWithoutTicket(ctx, time.Time{})
	if err != nil {
		t.Fatalf("OpenProposalsWithoutTicket failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected open and conflicted proposals only, got %d", len(got))
	}
	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids[open.ID] || !ids[conflicted.ID] {
		t.Errorf("Unexpected proposal set: %v", ids)
	}

	// A cutoff in the past excludes everything created now.
	got, err = s.OpenProposalsWithoutTicket(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("OpenProposalsWithoutTicket failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected cutoff to exclude fresh proposals, got %d", len(got))
	}
}

func TestFindTicketBySubject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.FindTicketBySubject(ctx, "no such subject")
	if err != nil {
		t.Fatalf("FindTicketBySubject failed: %v", err)
	}
	if got != nil {
		t.Fatal("Expected nil for unknown subject")
	}

	// Tickets without a remote handle are failed creates and cannot be
	// inherited from.
	failed := &models.Ticket{Subject: "AS64500 IX-F Conflict Resolution"}
	if err := s.CreateTicket(ctx, failed); err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	got, err = s.FindTicketBySubject(ctx, failed.Subject)
	if err != nil {
		t.Fatalf("FindTicketBySubject failed: %v", err)
	}
	if got != nil {
		t.Fatal("Ticket without remote id must not be inherited")
	}

	first := int64(100)
	second := int64(200)
	for _, id := range []*int64{&first, &second} {
		tk := &models.Ticket{Subject: failed.Subject, TicketID: id}
		if err := s.CreateTicket(ctx, tk); err != nil {
			t.Fatalf("CreateTicket failed: %v", err)
		}
	}

	got, err = s.FindTicketBySubject(ctx, failed.Subject)
	if err != nil {
		t.Fatalf("FindTicketBySubject failed: %v", err)
	}
	if got == nil || got.TicketID == nil || *got.TicketID != second {
		t.Fatalf("Expected most recent ticket with id 200, got %+v", got)
	}
}

func TestUpdateExchangeImportState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.UpdateExchangeImportState(ctx, ixlan.ExchangeID, &now, 12); err != nil {
		t.Fatalf("UpdateExchangeImportState failed: %v", err)
	}

	ix, err := s.GetExchange(ctx, ixlan.ExchangeID)
	if err != nil {
		t.Fatalf("GetExchange failed: %v", err)
	}
	if ix.IXFNetCount != 12 {
		t.Errorf("Expected net count 12, got %d", ix.IXFNetCount)
	}
	if ix.IXFLastImport == nil || !ix.IXFLastImport.Equal(now) {
		t.Errorf("Expected last import %v, got %v", now, ix.IXFLastImport)
	}

	// A nil timestamp updates the count but keeps the last-import stamp.
	if err := s.UpdateExchangeImportState(ctx, ixlan.ExchangeID, nil, 13); err != nil {
		t.Fatalf("UpdateExchangeImportState failed: %v", err)
	}
	ix, err = s.GetExchange(ctx, ixlan.ExchangeID)
	if err != nil {
		t.Fatalf("GetExchange failed: %v", err)
	}
	if ix.IXFNetCount != 13 {
		t.Errorf("Expected net count 13, got %d", ix.IXFNetCount)
	}
	if ix.IXFLastImport == nil || !ix.IXFLastImport.Equal(now) {
		t.Errorf("Expected last import unchanged, got %v", ix.IXFLastImport)
	}

	if err := s.UpdateExchangeImportState(ctx, 9999, nil, 0); !errors.Is(err, models.ErrExchangeNotFound) {
		t.Errorf("Expected ErrExchangeNotFound, got %v", err)
	}
}

func TestNetworkPresentAtExchange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)
	net := seedNetwork(t, s, 64500)

	present, err := s.NetworkPresentAtExchange(ctx, 64500, ixlan.ExchangeID)
	if err != nil {
		t.Fatalf("NetworkPresentAtExchange failed: %v", err)
	}
	if present {
		t.Error("Expected network absent before any records exist")
	}

	n := &models.NetworkIXLan{
		NetworkID: net.ID,
		IXLanID:   ixlan.ID,
		ASN:       64500,
		IPAddr4:   strptr("195.69.146.250"),
	}
	if err := s.CreateNetIXLan(ctx, n); err != nil {
		t.Fatalf("CreateNetIXLan failed: %v", err)
	}

	present, err = s.NetworkPresentAtExchange(ctx, 64500, ixlan.ExchangeID)
	if err != nil {
		t.Fatalf("NetworkPresentAtExchange failed: %v", err)
	}
	if !present {
		t.Error("Expected network present via its active record")
	}

	if err := s.SoftDeleteNetIXLan(ctx, n); err != nil {
		t.Fatalf("SoftDeleteNetIXLan failed: %v", err)
	}
	present, err = s.NetworkPresentAtExchange(ctx, 64500, ixlan.ExchangeID)
	if err != nil {
		t.Fatalf("NetworkPresentAtExchange failed: %v", err)
	}
	if present {
		t.Error("Deleted record must not count as presence")
	}
}

func TestSaveImportAttempt_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)

	if err := s.SaveImportAttempt(ctx, ixlan.ID, `{"total":1}`); err != nil {
		t.Fatalf("SaveImportAttempt failed: %v", err)
	}
	if err := s.SaveImportAttempt(ctx, ixlan.ID, `{"total":2}`); err != nil {
		t.Fatalf("SaveImportAttempt upsert failed: %v", err)
	}

	attempt, err := s.GetImportAttempt(ctx, ixlan.ID)
	if err != nil {
		t.Fatalf("GetImportAttempt failed: %v", err)
	}
	if attempt.Info != `{"total":2}` {
		t.Errorf("Expected latest attempt info, got %s", attempt.Info)
	}

	var count int64
	if err := s.db.Model(&models.ImportAttempt{}).Where("ixlan_id = ?", ixlan.ID).Count(&count).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected single attempt row per ixlan, got %d", count)
	}
}

func TestCreateNetwork_DuplicateASN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNetwork(t, s, 64500)

	err := s.CreateNetwork(ctx, &models.Network{ASN: 64500, Name: "duplicate"})
	if !errors.Is(err, models.ErrDuplicateNetwork) {
		t.Errorf("Expected ErrDuplicateNetwork, got %v", err)
	}
}

func TestPrimaryRequirement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ixlan := seedIXLan(t, s)

	parent := &models.MemberProposal{
		IXLanID: ixlan.ID,
		ASN:     64500,
		IPAddr4: "195.69.146.250",
		IPAddr6: "2001:7f8:1::a500:2906:1",
		Action:  models.ActionModify,
	}
	if err := s.SaveProposal(ctx, parent); err != nil {
		t.Fatalf("SaveProposal failed: %v", err)
	}

	got, err := s.PrimaryRequirement(ctx, parent.ID)
	if err != nil {
		t.Fatalf("PrimaryRequirement failed: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected no requirement yet, got %+v", got)
	}

	req := &models.MemberProposal{
		IXLanID:         ixlan.ID,
		ASN:             64500,
		IPAddr6:         "2001:7f8:1::a500:2906:1",
		Action:          models.ActionDelete,
		RequirementOfID: &parent.ID,
	}
	if err := s.SaveProposal(ctx, req); err != nil {
		t.Fatalf("SaveProposal failed: %v", err)
	}

	got, err = s.PrimaryRequirement(ctx, parent.ID)
	if err != nil {
		t.Fatalf("PrimaryRequirement failed: %v", err)
	}
	if got == nil || got.ID != req.ID {
		t.Errorf("Expected the back-linked requirement, got %+v", got)
	}
}

// The raw queries scope by "ixlan_id"; the migrated schema must use that
// exact column name on every table that carries the foreign key.
func TestMigratedIXLanColumnNames(t *testing.T) {
	s := newTestStore(t)

	for _, model := range []interface{}{
		&models.NetworkIXLan{},
		&models.MemberProposal{},
		&models.ImportAttempt{},
		&models.ImportLog{},
		&models.IXLanPrefix{},
	} {
		if !s.db.Migrator().HasColumn(model, "ixlan_id") {
			t.Errorf("%T: missing ixlan_id column", model)
		}
	}
}
