package importer

import (
	"context"
	"time"

	"github.com/peerix/ixsync/pkg/registry/models"
	"github.com/peerix/ixsync/pkg/registry/store"
)

// PostMortem reconstructs the recent import history of a network from
// the archive, newest first.
type PostMortem struct {
	store    *store.GORMStore
	maxLimit int
}

// NewPostMortem creates a post-mortem reader. maxLimit caps how many
// entries a single request may ask for.
func NewPostMortem(st *store.GORMStore, maxLimit int) *PostMortem {
	if maxLimit <= 0 {
		maxLimit = 250
	}
	return &PostMortem{store: st, maxLimit: maxLimit}
}

// PostMortemRecord is one archived change as it affected the network.
type PostMortemRecord struct {
	ExchangeID   uint                      `json:"ix_id"`
	ExchangeName string                    `json:"ix_name"`
	IXLanID      uint                      `json:"ixlan_id"`
	Changes      map[string]map[string]any `json:"changes"`
	Reason       string                    `json:"reason"`
	Action       models.Action             `json:"action"`
	ASN          uint32                    `json:"asn"`
	IPAddr4      string                    `json:"ipaddr4"`
	IPAddr6      string                    `json:"ipaddr6"`
	Speed        int                       `json:"speed"`
	IsRSPeer     bool                      `json:"is_rs_peer"`
	Created      string                    `json:"created"`
}

// Generate returns up to limit archived changes for the network,
// newest first. A non-positive limit defaults to 100; limits above the
// cap are clamped.
func (pm *PostMortem) Generate(ctx context.Context, asn uint32, limit int) ([]PostMortemRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > pm.maxLimit {
		limit = pm.maxLimit
	}

	entries, err := pm.store.ImportLogEntriesForASN(ctx, asn, limit)
	if err != nil {
		return nil, err
	}

	records := make([]PostMortemRecord, 0, len(entries))
	for _, entry := range entries {
		after := entry.VersionAfter
		// Renumbered records can leave entries whose snapshot belongs to a
		// different network now.
		if after == nil || after.ASN != asn {
			continue
		}

		rec := PostMortemRecord{
			Changes:  versionChanges(entry.VersionBefore, after),
			Reason:   entry.Reason,
			Action:   entry.Action,
			ASN:      after.ASN,
			Speed:    after.Speed,
			IsRSPeer: after.IsRSPeer,
			Created:  after.CreatedAt.Format(time.DateTime),
		}
		if after.IPAddr4 != nil {
			rec.IPAddr4 = *after.IPAddr4
		}
		if after.IPAddr6 != nil {
			rec.IPAddr6 = *after.IPAddr6
		}
		if entry.Log != nil {
			rec.IXLanID = entry.Log.IXLanID
			if entry.Log.IXLan != nil && entry.Log.IXLan.Exchange != nil {
				rec.ExchangeID = entry.Log.IXLan.Exchange.ID
				rec.ExchangeName = entry.Log.IXLan.Exchange.Name
			}
		}

		records = append(records, rec)
	}
	return records, nil
}

// versionChanges diffs two snapshots field by field. A nil before means
// the record was created by the change; every field shows up as set
// from nothing.
func versionChanges(before, after *models.NetIXLanVersion) map[string]map[string]any {
	changes := map[string]map[string]any{}

	diff := func(field string, from, to any) {
		if from != to {
			changes[field] = map[string]any{"from": from, "to": to}
		}
	}

	str := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	if before == nil {
		diff("ipaddr4", "", str(after.IPAddr4))
		diff("ipaddr6", "", str(after.IPAddr6))
		diff("speed", 0, after.Speed)
		diff("is_rs_peer", false, after.IsRSPeer)
		diff("operational", false, after.Operational)
		diff("status", "", string(after.Status))
		return changes
	}

	diff("ipaddr4", str(before.IPAddr4), str(after.IPAddr4))
	diff("ipaddr6", str(before.IPAddr6), str(after.IPAddr6))
	diff("speed", before.Speed, after.Speed)
	diff("is_rs_peer", before.IsRSPeer, after.IsRSPeer)
	diff("operational", before.Operational, after.Operational)
	diff("status", string(before.Status), string(after.Status))

	return changes
}
