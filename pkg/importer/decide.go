package importer

import (
	"fmt"
	"strings"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// deleteDecision is a local record whose identity key is gone from the
// feed.
type deleteDecision struct {
	netixlan *models.NetworkIXLan
	network  *models.Network

	// consumed marks the decision as collapsed into a consolidated
	// modify; it is dropped from the apply stream.
	consumed bool

	// requirement marks the deletion as a precondition of a
	// consolidated modify. It is still applied (or proposed) but its
	// notification is suppressed and, without consent, its proposal is
	// back-linked to the parent.
	requirement bool

	// proposal is set once the deletion was persisted as a proposal, so
	// the consolidation parent can back-link it.
	proposal *models.MemberProposal
}

// saveDecision is the per-candidate outcome of the matching pass.
type saveDecision struct {
	candidate *candidate
	action    models.Action

	// existing is the matched record for modify/noop, or the
	// consolidation target when a delete+add pair collapsed.
	existing *models.NetworkIXLan

	changed []string
	reason  string

	// requirements are the delete decisions consumed or subordinated by
	// this consolidated modify.
	requirements []*deleteDecision
}

// decideDeletions scans the active records on the IXLAN and marks every
// record whose identity key is absent from the feed's seen-set.
func (r *run) decideDeletions(existing []*models.NetworkIXLan) {
	for _, nix := range existing {
		id := nix.Identity()
		if r.seen.Contains(id) {
			continue
		}
		d := &deleteDecision{
			netixlan: nix,
			network:  nix.Network,
		}
		r.deletions[id] = d
		r.deletionList = append(r.deletionList, d)
	}
}

// decideSaves matches each candidate against the active records by
// exact identity and produces add, modify or noop.
func (r *run) decideSaves(existing []*models.NetworkIXLan) {
	byIdentity := make(map[models.Identity]*models.NetworkIXLan, len(existing))
	for _, nix := range existing {
		byIdentity[nix.Identity()] = nix
	}

	for _, c := range r.pending {
		d := &saveDecision{candidate: c}

		if nix, ok := byIdentity[c.identity]; ok {
			d.existing = nix
			d.changed = changesBetween(c, nix)
			if len(d.changed) == 0 {
				d.action = models.ActionNoop
			} else {
				d.action = models.ActionModify
				d.reason = fmt.Sprintf("%s: %s", ReasonValuesChanged, strings.Join(d.changed, ", "))
			}
		} else {
			d.action = models.ActionAdd
			d.reason = ReasonNewEntry
		}

		r.saves = append(r.saves, d)
	}
}

// consolidate collapses a dual-stack add whose single-stack siblings are
// pending deletion into one modify of a sibling record. Runs as a pass
// over the finished decision lists, before anything is applied.
func (r *run) consolidate() {
	for _, d := range r.saves {
		if d.action != models.ActionAdd {
			continue
		}
		id := d.candidate.identity
		if !id.HasIPv4() || !id.HasIPv6() {
			continue
		}

		del4 := r.deletions[id.V4Only()]
		del6 := r.deletions[id.V6Only()]
		if del4 == nil && del6 == nil {
			continue
		}

		// The modify target keeps its row; the other sibling, if any,
		// stays in the delete stream as a hidden requirement so its
		// address is freed before the save.
		var info string
		switch {
		case del4 != nil && del6 != nil:
			info = "IP addresses moved to same entry"
			d.existing = del4.netixlan
			del4.consumed = true
			del4.requirement = true
			del6.requirement = true
			d.requirements = []*deleteDecision{del4, del6}
		case del4 != nil:
			info = "IPv6 not set"
			d.existing = del4.netixlan
			del4.consumed = true
			del4.requirement = true
			d.requirements = []*deleteDecision{del4}
		default:
			info = "IPv4 not set"
			d.existing = del6.netixlan
			del6.consumed = true
			del6.requirement = true
			d.requirements = []*deleteDecision{del6}
		}

		d.action = models.ActionModify
		d.changed = changesBetween(d.candidate, d.existing)
		d.reason = fmt.Sprintf("%s: %s %s", ReasonValuesChanged, strings.Join(d.changed, ", "), info)
	}
}

// changesBetween returns the business fields that differ between a
// candidate and an existing record, in stable order.
func changesBetween(c *candidate, nix *models.NetworkIXLan) []string {
	var changed []string
	if c.speed != nix.Speed {
		changed = append(changed, "speed")
	}
	if c.isRSPeer != nix.IsRSPeer {
		changed = append(changed, "is_rs_peer")
	}
	if c.operational != nix.Operational {
		changed = append(changed, "operational")
	}
	return changed
}
