package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/peerix/ixsync/pkg/registry/models"
	"github.com/peerix/ixsync/pkg/registry/store"
)

// applyDeletions executes the deletion stream: soft-deletes for
// consenting networks, delete proposals for the rest. Runs before the
// save stream so freed addresses can be reused within the transaction.
func (r *run) applyDeletions(ctx context.Context, tx *store.GORMStore) error {
	for _, d := range r.deletionList {
		if d.consumed {
			continue
		}
		nix := d.netixlan

		if d.network != nil && d.network.AllowIXPUpdate {
			vBefore, err := r.latestVersionID(ctx, tx, nix.ID)
			if err != nil {
				return err
			}
			if r.save {
				if err := tx.SoftDeleteNetIXLan(ctx, nix); err != nil {
					return err
				}
			} else {
				nix.Status = models.StatusDeleted
			}
			r.recordApplied(models.ActionDelete, nix, ReasonEntryGone, vBefore)
			r.attempt.LogPeer(r.peerForNetIXLan(nix), "delete", ReasonEntryGone)
			if err := r.fulfillProposal(ctx, tx, nix.Identity()); err != nil {
				return err
			}
			continue
		}

		p, changed, err := r.upsertProposal(ctx, tx, proposalSpec{
			identity:    nix.Identity(),
			action:      models.ActionDelete,
			reason:      ReasonEntryGone,
			speed:       nix.Speed,
			operational: nix.Operational,
			isRSPeer:    nix.IsRSPeer,
			netixlanID:  &nix.ID,
		})
		if err != nil {
			return err
		}
		d.proposal = p
		if changed && !d.requirement {
			r.queueNotification(p, d.network, "remove", true, true, true)
		}
		r.attempt.LogPeer(r.peerForNetIXLan(nix), "suggest-delete", ReasonEntryGone)
	}
	return nil
}

// applySaves executes the save stream in feed order.
func (r *run) applySaves(ctx context.Context, tx *store.GORMStore) error {
	for _, d := range r.saves {
		var err error
		switch d.action {
		case models.ActionNoop:
			err = r.applyNoop(ctx, tx, d)
		case models.ActionModify, models.ActionAdd:
			if d.candidate.network.AllowIXPUpdate {
				err = r.applyConsented(ctx, tx, d)
			} else {
				err = r.proposeSave(ctx, tx, d)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyNoop confirms the live state already matches the feed; any
// lingering proposal for the identity is resolved.
func (r *run) applyNoop(ctx context.Context, tx *store.GORMStore, d *saveDecision) error {
	r.imp.metrics.RecordAction(string(models.ActionNoop))

	p, err := tx.GetProposalByIdentity(ctx, r.ixlan.ID, d.candidate.identity)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil
		}
		return err
	}
	return r.resolveProposal(ctx, tx, p, d.candidate.network)
}

// applyConsented applies an add or modify directly. Validation failures
// do not abort the run; the proposal moves to conflicted instead.
func (r *run) applyConsented(ctx context.Context, tx *store.GORMStore, d *saveDecision) error {
	c := d.candidate

	var excludeID uint
	if d.existing != nil {
		excludeID = d.existing.ID
	}
	if err := r.validateCandidate(ctx, tx, c, excludeID); err != nil {
		verr, ok := models.Validation(err)
		if !ok {
			return err
		}
		return r.setConflict(ctx, tx, d, verr)
	}

	switch d.action {
	case models.ActionModify:
		nix := d.existing
		vBefore, err := r.latestVersionID(ctx, tx, nix.ID)
		if err != nil {
			return err
		}
		applyCandidate(nix, c)
		if r.save {
			if err := tx.UpdateNetIXLan(ctx, nix); err != nil {
				return err
			}
		}
		r.recordApplied(models.ActionModify, nix, d.reason, vBefore)
		r.attempt.LogPeer(r.peerForNetIXLan(nix), "modify", d.reason)

	case models.ActionAdd:
		nix := &models.NetworkIXLan{
			NetworkID: c.network.ID,
			IXLanID:   r.ixlan.ID,
			ASN:       c.identity.ASN,
			Status:    models.StatusOK,
		}
		applyCandidate(nix, c)
		if r.save {
			if err := tx.CreateNetIXLan(ctx, nix); err != nil {
				return err
			}
		}
		r.recordApplied(models.ActionAdd, nix, d.reason, 0)
		r.attempt.LogPeer(r.peerForNetIXLan(nix), "add", d.reason)
	}

	return r.fulfillProposal(ctx, tx, c.identity)
}

// proposeSave persists the add/modify as a proposal and queues the
// notification when the ask is new or its payload changed.
func (r *run) proposeSave(ctx context.Context, tx *store.GORMStore, d *saveDecision) error {
	c := d.candidate

	var netixlanID *uint
	if d.existing != nil {
		netixlanID = &d.existing.ID
	}

	p, changed, err := r.upsertProposal(ctx, tx, proposalSpec{
		identity:    c.identity,
		action:      d.action,
		reason:      d.reason,
		speed:       c.speed,
		operational: c.operational,
		isRSPeer:    c.isRSPeer,
		data:        c.raw,
		errText:     c.errText,
		netixlanID:  netixlanID,
	})
	if err != nil {
		return err
	}

	// Back-link requirement deletions to their consolidation parent.
	for _, req := range d.requirements {
		if req.proposal == nil || p.ID == "" {
			continue
		}
		req.proposal.RequirementOfID = &p.ID
		if r.save {
			if err := tx.SaveProposal(ctx, req.proposal); err != nil {
				return err
			}
		}
	}

	if changed {
		switch d.action {
		case models.ActionAdd:
			// A network with no other presence at this exchange is only
			// asked directly; the exchange and AC are left out.
			present, err := tx.NetworkPresentAtExchange(ctx, c.identity.ASN, r.ixlan.ExchangeID)
			if err != nil {
				return err
			}
			if present {
				r.queueNotification(p, c.network, "add", true, true, true)
			} else {
				r.queueNotification(p, c.network, "add", false, false, true)
			}
		case models.ActionModify:
			r.queueNotification(p, c.network, "modify", true, true, true)
		}
	}

	r.attempt.LogPeer(r.peerForCandidate(c), "suggest-"+string(d.action), d.reason)
	return nil
}

// setConflict moves the decision's proposal to the conflicted state and
// queues a conflict notification.
func (r *run) setConflict(ctx context.Context, tx *store.GORMStore, d *saveDecision, verr *models.ValidationError) error {
	c := d.candidate

	var netixlanID *uint
	if d.existing != nil {
		netixlanID = &d.existing.ID
	}

	p, changed, err := r.upsertProposal(ctx, tx, proposalSpec{
		identity:    c.identity,
		action:      d.action,
		reason:      d.reason,
		speed:       c.speed,
		operational: c.operational,
		isRSPeer:    c.isRSPeer,
		data:        c.raw,
		errText:     verr.Msg,
		netixlanID:  netixlanID,
		conflicted:  true,
	})
	if err != nil {
		return err
	}
	if changed {
		r.queueNotification(p, c.network, "conflict", true, true, true)
	}
	r.attempt.LogPeer(r.peerForCandidate(c), "suggest-"+string(d.action), verr.Msg)
	return nil
}

// validateCandidate enforces the business rules the database does not:
// prefix containment and per-IXLAN address uniqueness.
func (r *run) validateCandidate(ctx context.Context, tx *store.GORMStore, c *candidate, excludeID uint) error {
	id := c.identity

	if id.HasIPv4() && !r.ixlan.TestAddress(id.IPv4) {
		return &models.ValidationError{
			Msg: fmt.Sprintf("IPv4 address %s does not match any prefix on this ixlan", id.IPv4),
		}
	}
	if id.HasIPv6() && !r.ixlan.TestAddress(id.IPv6) {
		return &models.ValidationError{
			Msg: fmt.Sprintf("IPv6 address %s does not match any prefix on this ixlan", id.IPv6),
		}
	}

	if id.HasIPv4() {
		inUse, err := tx.ActiveAddressInUse(ctx, r.ixlan.ID, "ip_addr4", id.IPv4.String(), excludeID)
		if err != nil {
			return err
		}
		if inUse {
			return &models.ValidationError{
				Msg: fmt.Sprintf("IPv4 address %s already exists on this ixlan", id.IPv4),
			}
		}
	}
	if id.HasIPv6() {
		inUse, err := tx.ActiveAddressInUse(ctx, r.ixlan.ID, "ip_addr6", id.IPv6.String(), excludeID)
		if err != nil {
			return err
		}
		if inUse {
			return &models.ValidationError{
				Msg: fmt.Sprintf("IPv6 address %s already exists on this ixlan", id.IPv6),
			}
		}
	}
	return nil
}

// applyCandidate writes a candidate's payload onto a record.
func applyCandidate(nix *models.NetworkIXLan, c *candidate) {
	nix.IPAddr4 = nil
	nix.IPAddr6 = nil
	if c.identity.HasIPv4() {
		v4 := c.identity.IPv4.String()
		nix.IPAddr4 = &v4
	}
	if c.identity.HasIPv6() {
		v6 := c.identity.IPv6.String()
		nix.IPAddr6 = &v6
	}
	nix.Speed = c.speed
	nix.Operational = c.operational
	nix.IsRSPeer = c.isRSPeer
	nix.Status = models.StatusOK
}

// proposalSpec is the desired state of a proposal row.
type proposalSpec struct {
	identity    models.Identity
	action      models.Action
	reason      string
	speed       int
	operational bool
	isRSPeer    bool
	data        string
	errText     string
	netixlanID  *uint
	conflicted  bool
}

// upsertProposal creates or refreshes the proposal for an identity key.
// The returned flag reports whether the ask is new or materially
// different from the stored one, which gates re-notification.
func (r *run) upsertProposal(ctx context.Context, tx *store.GORMStore, spec proposalSpec) (*models.MemberProposal, bool, error) {
	existing, err := tx.GetProposalByIdentity(ctx, r.ixlan.ID, spec.identity)
	if err != nil && !errors.Is(err, models.ErrProposalNotFound) {
		return nil, false, err
	}

	p := existing
	isNew := p == nil
	if isNew {
		p = &models.MemberProposal{
			IXLanID: r.ixlan.ID,
			State:   models.ProposalOpen,
		}
		p.SetIdentity(spec.identity)
	}

	errChanged := spec.errText != "" && (p.Error == nil || *p.Error != spec.errText)
	changed := isNew ||
		p.Action != spec.action ||
		p.Speed != spec.speed ||
		p.Operational != spec.operational ||
		p.IsRSPeer != spec.isRSPeer ||
		errChanged

	p.Action = spec.action
	p.Reason = spec.reason
	p.Speed = spec.speed
	p.Operational = spec.operational
	p.IsRSPeer = spec.isRSPeer
	p.NetIXLanID = spec.netixlanID
	if spec.data != "" {
		p.Data = spec.data
	}
	if spec.errText != "" {
		errText := spec.errText
		p.Error = &errText
	} else if isNew {
		p.Error = nil
	}

	if spec.conflicted {
		if p.State.CanTransition(models.ProposalConflicted) {
			p.State = models.ProposalConflicted
		}
	} else if p.State == models.ProposalConflicted && p.State.CanTransition(models.ProposalOpen) {
		// The conflict cleared but consent is still absent; the ask
		// reopens.
		p.State = models.ProposalOpen
		p.Error = nil
		if spec.errText != "" {
			errText := spec.errText
			p.Error = &errText
		}
	}

	if changed {
		r.imp.metrics.RecordProposal(string(p.State))
	}

	if r.save {
		if err := tx.SaveProposal(ctx, p); err != nil {
			return nil, false, err
		}
	}
	return p, changed, nil
}

// fulfillProposal retires a proposal whose ask the applier just
// satisfied.
func (r *run) fulfillProposal(ctx context.Context, tx *store.GORMStore, id models.Identity) error {
	p, err := tx.GetProposalByIdentity(ctx, r.ixlan.ID, id)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil
		}
		return err
	}
	if !r.save {
		return nil
	}
	return tx.DeleteProposal(ctx, p.ID)
}

// resolveProposal marks a proposal resolved, queues the notification and
// retires the row.
func (r *run) resolveProposal(ctx context.Context, st *store.GORMStore, p *models.MemberProposal, network *models.Network) error {
	if !p.State.CanTransition(models.ProposalResolved) {
		return nil
	}
	p.State = models.ProposalResolved
	r.imp.metrics.RecordProposal(string(models.ProposalResolved))

	if r.save {
		if err := st.DeleteProposal(ctx, p.ID); err != nil && !errors.Is(err, models.ErrProposalNotFound) {
			return err
		}
	}
	r.queueNotification(p, network, "resolved", true, true, true)
	return nil
}

func (r *run) recordApplied(action models.Action, nix *models.NetworkIXLan, reason string, versionBeforeID uint) {
	r.applied[action] = append(r.applied[action], &appliedAction{
		netixlan:        nix,
		reason:          reason,
		versionBeforeID: versionBeforeID,
	})
	r.imp.metrics.RecordAction(string(action))
}

func (r *run) latestVersionID(ctx context.Context, tx *store.GORMStore, netixlanID uint) (uint, error) {
	v, err := tx.LatestVersion(ctx, netixlanID)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return v.ID, nil
}
