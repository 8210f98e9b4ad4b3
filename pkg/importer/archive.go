package importer

import (
	"context"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// archiveOrder fixes the order entries appear in an import event.
var archiveOrder = []models.Action{
	models.ActionDelete,
	models.ActionModify,
	models.ActionAdd,
}

// archive appends one import event with an entry per applied change,
// referencing the version snapshots immediately before and after the
// mutation. Runs after the transaction has committed; preview runs
// write nothing.
func (r *run) archive(ctx context.Context) error {
	if !r.save {
		return nil
	}

	st := r.imp.store

	log := &models.ImportLog{IXLanID: r.ixlan.ID}

	for _, action := range archiveOrder {
		for _, info := range r.applied[action] {
			versionAfter, err := st.VersionAfter(ctx, info.netixlan.ID, info.versionBeforeID)
			if err != nil {
				return err
			}
			if versionAfter == nil {
				// No observable version change, nothing to archive.
				continue
			}

			entry := models.ImportLogEntry{
				NetIXLanID:     info.netixlan.ID,
				Action:         action,
				Reason:         info.reason,
				VersionAfterID: versionAfter.ID,
			}
			if info.versionBeforeID != 0 {
				before := info.versionBeforeID
				entry.VersionBeforeID = &before
			}
			log.Entries = append(log.Entries, entry)
		}
	}

	return st.CreateImportLog(ctx, log)
}
