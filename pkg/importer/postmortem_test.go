package importer

import (
	"context"
	"testing"

	"github.com/peerix/ixsync/pkg/registry/models"
)

func TestPostMortem_Generate(t *testing.T) {
	e := newEnv(t, testConfig())
	e.addNetwork(64500, true)
	ctx := context.Background()

	v4 := "195.69.146.250"
	e.feed.setMembers(t, member(64500, v4, "", 10000, false))
	e.run(RunOptions{Save: true})
	e.feed.setMembers(t, member(64500, v4, "", 20000, false))
	e.run(RunOptions{Save: true})
	e.feed.setMembers(t, filler())
	e.run(RunOptions{Save: true})

	pm := NewPostMortem(e.store, 250)
	records, err := pm.Generate(ctx, 64500, 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	del, mod, add := records[0], records[1], records[2]

	if del.Action != models.ActionDelete {
		t.Errorf("Expected newest record to be the delete, got %s", del.Action)
	}
	if change, ok := del.Changes["status"]; !ok || change["to"] != string(models.StatusDeleted) {
		t.Errorf("Expected status change on delete, got %v", del.Changes)
	}

	if mod.Action != models.ActionModify {
		t.Errorf("Expected modify in the middle, got %s", mod.Action)
	}
	if change, ok := mod.Changes["speed"]; !ok || change["from"] != 10000 || change["to"] != 20000 {
		t.Errorf("Expected speed change 10000 -> 20000, got %v", mod.Changes)
	}

	if add.Action != models.ActionAdd {
		t.Errorf("Expected oldest record to be the add, got %s", add.Action)
	}
	if change, ok := add.Changes["ipaddr4"]; !ok || change["from"] != "" || change["to"] != v4 {
		t.Errorf("Expected ipaddr4 set from nothing, got %v", add.Changes)
	}
	if add.IPAddr4 != v4 || add.ASN != 64500 {
		t.Errorf("Unexpected record payload: %+v", add)
	}
	if add.ExchangeName != "Test-IX" {
		t.Errorf("Expected exchange name on record, got %q", add.ExchangeName)
	}
	if add.IXLanID != e.ixlan.ID {
		t.Errorf("Expected ixlan id resolved from the archive log, got %d", add.IXLanID)
	}
	if add.Created == "" {
		t.Error("Expected a created timestamp")
	}
}

func TestPostMortem_LimitClamp(t *testing.T) {
	e := newEnv(t, testConfig())
	e.addNetwork(64500, true)

	v4 := "195.69.146.250"
	e.feed.setMembers(t, member(64500, v4, "", 10000, false))
	e.run(RunOptions{Save: true})
	e.feed.setMembers(t, member(64500, v4, "", 20000, false))
	e.run(RunOptions{Save: true})
	e.feed.setMembers(t, member(64500, v4, "", 30000, false))
	e.run(RunOptions{Save: true})

	pm := NewPostMortem(e.store, 2)
	records, err := pm.Generate(context.Background(), 64500, 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected limit clamped to 2, got %d", len(records))
	}
}

func TestPostMortem_UnknownASN(t *testing.T) {
	e := newEnv(t, testConfig())

	records, err := NewPostMortem(e.store, 250).Generate(context.Background(), 65000, 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records for unknown asn, got %d", len(records))
	}
}
