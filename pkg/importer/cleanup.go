package importer

import (
	"context"
	"errors"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// cleanup evaluates the end-of-run proposal resolution rules:
//
//   - a delete proposal resolves once its target record is deleted,
//   - a noop proposal resolves immediately,
//   - an add or modify proposal resolves once its identity key is no
//     longer in the feed (the ask is obsolete).
//
// Each resolution queues a resolved notification. Preview runs skip
// cleanup entirely.
func (r *run) cleanup(ctx context.Context) error {
	if !r.save {
		return nil
	}

	st := r.imp.store

	proposals, err := st.ProposalsForIXLan(ctx, r.ixlan.ID, r.opts.ASN)
	if err != nil {
		return err
	}

	for _, p := range proposals {
		network, err := st.GetNetworkByASN(ctx, p.ASN)
		if err != nil && !errors.Is(err, models.ErrNetworkNotFound) {
			return err
		}

		switch p.Action {
		case models.ActionDelete:
			if p.NetIXLan != nil && p.NetIXLan.Status == models.StatusDeleted {
				if err := r.resolveProposal(ctx, st, p, network); err != nil {
					return err
				}
			}

		case models.ActionNoop:
			if err := r.resolveProposal(ctx, st, p, network); err != nil {
				return err
			}

		case models.ActionAdd, models.ActionModify:
			if !r.opts.SkipImport && !r.seen.Contains(p.Identity()) {
				if err := r.resolveProposal(ctx, st, p, network); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
