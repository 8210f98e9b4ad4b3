package importer

import (
	"encoding/json"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// AttemptLog is the structured diagnostics of one import run, upserted
// per IXLAN as the attempt log and returned verbatim by the preview API.
//
// Entries are built as mutable objects during the run and serialized
// only when the run finishes, so the consolidation pass can rewrite a
// decision before anything is committed.
type AttemptLog struct {
	Data   []*AttemptEntry `json:"data"`
	Errors []string        `json:"errors"`
}

// AttemptEntry is one peer-level decision in the attempt log.
type AttemptEntry struct {
	Peer   AttemptPeer `json:"peer"`
	Action string      `json:"action"`
	Reason string      `json:"reason"`
}

// AttemptPeer identifies the member a log entry is about, with the
// record payload when one is known.
type AttemptPeer struct {
	IXLanID      uint   `json:"ixlan_id"`
	ExchangeID   uint   `json:"ix_id"`
	ExchangeName string `json:"ix_name"`
	ASN          uint32 `json:"asn"`

	NetworkID   uint   `json:"net_id,omitempty"`
	IPAddr4     string `json:"ipaddr4,omitempty"`
	IPAddr6     string `json:"ipaddr6,omitempty"`
	Speed       int    `json:"speed,omitempty"`
	IsRSPeer    bool   `json:"is_rs_peer,omitempty"`
	Operational bool   `json:"operational,omitempty"`
}

// NewAttemptLog returns an empty attempt log.
func NewAttemptLog() *AttemptLog {
	return &AttemptLog{
		Data:   []*AttemptEntry{},
		Errors: []string{},
	}
}

// LogPeer appends a peer-level entry and returns it so later passes can
// amend action and reason before the log is finalized.
func (l *AttemptLog) LogPeer(peer AttemptPeer, action, reason string) *AttemptEntry {
	entry := &AttemptEntry{
		Peer:   peer,
		Action: action,
		Reason: reason,
	}
	l.Data = append(l.Data, entry)
	return entry
}

// LogError appends a run-level error message.
func (l *AttemptLog) LogError(msg string) {
	l.Errors = append(l.Errors, msg)
}

// JSON serializes the log for persistence in the attempt table.
func (l *AttemptLog) JSON() string {
	data, err := json.Marshal(l)
	if err != nil {
		return `{"data":[],"errors":["attempt log serialization failed"]}`
	}
	return string(data)
}

// peerFor builds the log identity block for a bare ASN under the run's
// IXLAN.
func (r *run) peerFor(asn uint32) AttemptPeer {
	peer := AttemptPeer{
		IXLanID: r.ixlan.ID,
		ASN:     asn,
	}
	if r.ixlan.Exchange != nil {
		peer.ExchangeID = r.ixlan.Exchange.ID
		peer.ExchangeName = r.ixlan.Exchange.Name
	}
	return peer
}

// peerForCandidate builds the log identity block carrying a candidate's
// payload.
func (r *run) peerForCandidate(c *candidate) AttemptPeer {
	peer := r.peerFor(c.identity.ASN)
	peer.NetworkID = c.network.ID
	if c.identity.HasIPv4() {
		peer.IPAddr4 = c.identity.IPv4.String()
	}
	if c.identity.HasIPv6() {
		peer.IPAddr6 = c.identity.IPv6.String()
	}
	peer.Speed = c.speed
	peer.IsRSPeer = c.isRSPeer
	peer.Operational = c.operational
	return peer
}

// peerForNetIXLan builds the log identity block carrying an existing
// record's payload.
func (r *run) peerForNetIXLan(n *models.NetworkIXLan) AttemptPeer {
	peer := r.peerFor(n.ASN)
	peer.NetworkID = n.NetworkID
	if n.IPAddr4 != nil {
		peer.IPAddr4 = *n.IPAddr4
	}
	if n.IPAddr6 != nil {
		peer.IPAddr6 = *n.IPAddr6
	}
	peer.Speed = n.Speed
	peer.IsRSPeer = n.IsRSPeer
	peer.Operational = n.Operational
	return peer
}
