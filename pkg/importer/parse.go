package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/peerix/ixsync/pkg/ixf"
	"github.com/peerix/ixsync/pkg/registry/models"
)

// Member types and connection states the importer accepts. Everything
// else is ignored with a log entry.
var (
	allowedMemberTypes = map[string]bool{
		"peering":     true,
		"ixp":         true,
		"routeserver": true,
		"probono":     true,
	}
	allowedStates = map[string]bool{
		"":            true,
		"active":      true,
		"inactive":    true,
		"connected":   true,
		"operational": true,
	}
)

// candidate is one surviving feed row: the proposed state of a member
// connection after filtering, identity stripping and speed summation.
type candidate struct {
	// identity carries only the address families the network supports.
	identity models.Identity

	network     *models.Network
	speed       int
	operational bool
	isRSPeer    bool

	// raw is the member blob, persisted on proposals for the UI.
	raw string

	// errText accumulates per-connection parse problems (bad speeds)
	// surfaced on the resulting proposal.
	errText string
}

// parse walks member_list -> connection_list -> vlan_list and fills the
// run's candidate list and seen-set. Per-row problems are logged and
// skipped; only malformed document shape returns an error.
func (r *run) parse(ctx context.Context, doc *ixf.MemberExport) error {
	for mi := range doc.MemberList {
		member := &doc.MemberList[mi]

		memberType := member.Type()
		if !allowedMemberTypes[memberType] {
			r.attempt.LogPeer(r.peerFor(member.ASNum), "ignore",
				fmt.Sprintf("Invalid member type: %s", memberType))
			continue
		}

		asn := member.ASNum
		if r.opts.ASN != 0 && asn != r.opts.ASN {
			continue
		}

		network, err := r.imp.store.GetNetworkByASN(ctx, asn)
		if err != nil {
			if errors.Is(err, models.ErrNetworkNotFound) {
				r.attempt.LogPeer(r.peerFor(asn), "ignore",
					"Network does not exist in the registry")
				continue
			}
			return err
		}
		if network.Status != models.StatusOK {
			r.attempt.LogPeer(r.peerFor(asn), "ignore",
				fmt.Sprintf("Network status is '%s'", network.Status))
			continue
		}

		r.parseConnections(member, network)
	}
	return nil
}

func (r *run) parseConnections(member *ixf.Member, network *models.Network) {
	for ci := range member.ConnectionList {
		conn := &member.ConnectionList[ci]

		state := conn.NormalizedState()
		if !allowedStates[state] {
			r.attempt.LogPeer(r.peerFor(member.ASNum), "ignore",
				fmt.Sprintf("Invalid connection state: %s", state))
			continue
		}

		var connErrors []string
		speed := r.parseSpeed(conn, &connErrors)

		r.parseVLANs(member, conn, network, speed, connErrors)
	}
}

// parseSpeed sums the integer if_speed values of a connection's if_list.
// Non-integer values are logged and contribute zero.
func (r *run) parseSpeed(conn *ixf.Connection, connErrors *[]string) int {
	speed := 0
	for i := range conn.IfList {
		s, err := conn.IfList[i].Speed()
		if err != nil {
			msg := fmt.Sprintf("Invalid speed value: %s", strings.Trim(string(conn.IfList[i].IfSpeed), `"`))
			r.attempt.LogError(msg)
			*connErrors = append(*connErrors, msg)
			continue
		}
		speed += s
	}
	return speed
}

func (r *run) parseVLANs(member *ixf.Member, conn *ixf.Connection, network *models.Network, speed int, connErrors []string) {
	asn := member.ASNum

	for vi := range conn.VLANList {
		lan := &conn.VLANList[vi]

		v4 := lan.IPv4.Addr()
		v6 := lan.IPv6.Addr()

		if v4 == "" && v6 == "" {
			r.attempt.LogError(fmt.Sprintf(
				"Could not find ipv4 or 6 address in vlan_list entry for vlan_id %s (AS%d)",
				vlanIDString(lan), asn))
			continue
		}

		identity, err := models.NewIdentity(asn, v4, v6)
		if err != nil {
			r.invalidIPErrors = append(r.invalidIPErrors, err.Error())
			r.attempt.LogError(fmt.Sprintf(
				"Ip address error '%v' in vlan_list entry for vlan_id %s",
				err, vlanIDString(lan)))
			continue
		}

		if !r.prefixFilter(identity) {
			continue
		}

		// Protocol conflicts are notified but never applied or
		// persisted as proposals.
		if r.protocolConflict(identity, network) {
			r.queueProtocolConflict(identity, network)
		}

		r.seen.Add(identity)

		// When the feed row is dual-stack but the network supports only
		// one family, the single-family key is also marked seen so the
		// matching local record is not treated as gone.
		if identity.HasIPv4() && identity.HasIPv6() {
			if !network.IPv6Support {
				r.seen.Add(identity.V4Only())
			} else if !network.IPv4Support {
				r.seen.Add(identity.V6Only())
			}
		}

		stripped := r.stripUnsupported(identity, network)
		if !stripped.HasIPv4() && !stripped.HasIPv6() {
			r.attempt.LogError(fmt.Sprintf(
				"AS%d has disabled support for all address families present in this entry", asn))
			continue
		}

		raw, _ := json.Marshal(member)

		r.pending = append(r.pending, &candidate{
			identity:    stripped,
			network:     network,
			speed:       speed,
			operational: conn.NormalizedState() != "inactive",
			isRSPeer:    lan.IPv4.IsRouteServer() || lan.IPv6.IsRouteServer(),
			raw:         string(raw),
			errText:     strings.Join(connErrors, "\n"),
		})
	}
}

// prefixFilter applies the IXLAN address-space rules: a row survives
// when every family it carries alone is in-prefix, or, for dual-stack
// rows, when at least one family is in-prefix.
func (r *run) prefixFilter(id models.Identity) bool {
	v4OK := r.ixlan.TestAddress(id.IPv4)
	v6OK := r.ixlan.TestAddress(id.IPv6)

	switch {
	case id.HasIPv4() && id.HasIPv6():
		return v4OK || v6OK
	case id.HasIPv4():
		return v4OK
	default:
		return v6OK
	}
}

func (r *run) protocolConflict(id models.Identity, network *models.Network) bool {
	return (id.HasIPv4() && !network.IPv4Support) ||
		(id.HasIPv6() && !network.IPv6Support)
}

// stripUnsupported clears address families the network has declared
// unsupported, so a single-family record is reconciled for the family
// that remains.
func (r *run) stripUnsupported(id models.Identity, network *models.Network) models.Identity {
	if id.HasIPv4() && !network.IPv4Support {
		id = id.V6Only()
	}
	if id.HasIPv6() && !network.IPv6Support {
		id = id.V4Only()
	}
	return id
}

func vlanIDString(lan *ixf.VLANEntry) string {
	if lan.VLANID == nil {
		return "<none>"
	}
	return fmt.Sprintf("%d", *lan.VLANID)
}
