package store

import (
	"context"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// ============================================
// IMPORT ARCHIVE OPERATIONS
// ============================================

// CreateImportLog appends an import event with its entries to the
// archive. Events with no entries are still recorded so the archive
// shows the run happened.
func (s *GORMStore) CreateImportLog(ctx context.Context, log *models.ImportLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

// ImportLogEntriesForASN returns the most recent archive entries whose
// connection record belongs to the given ASN, newest first. This is the
// post-mortem query; it is read-only.
func (s *GORMStore) ImportLogEntriesForASN(ctx context.Context, asn uint32, limit int) ([]*models.ImportLogEntry, error) {
	entries := []*models.ImportLogEntry{}
	err := s.db.WithContext(ctx).
		Preload("Log").
		Preload("Log.IXLan").
		Preload("Log.IXLan.Exchange").
		Preload("NetIXLan").
		Preload("VersionBefore").
		Preload("VersionAfter").
		Joins("JOIN netixlans ON netixlans.id = import_log_entries.netixlan_id").
		Joins("JOIN import_logs ON import_logs.id = import_log_entries.import_log_id").
		Where("netixlans.asn = ?", asn).
		Order("import_logs.created_at DESC, import_log_entries.id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
