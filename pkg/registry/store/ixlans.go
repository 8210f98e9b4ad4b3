package store

import (
	"context"
	"time"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// ============================================
// EXCHANGE / IXLAN OPERATIONS
// ============================================

func (s *GORMStore) GetExchange(ctx context.Context, id uint) (*models.Exchange, error) {
	return getByField[models.Exchange](s.db, ctx, "id", id, models.ErrExchangeNotFound, "Contacts")
}

func (s *GORMStore) CreateExchange(ctx context.Context, ix *models.Exchange) error {
	if ix.Status == "" {
		ix.Status = models.StatusOK
	}
	return s.db.WithContext(ctx).Create(ix).Error
}

// UpdateExchangeImportState writes the post-run rollup fields on the
// exchange: the last-import timestamp (when the run changed anything)
// and the member count seen in the feed.
func (s *GORMStore) UpdateExchangeImportState(ctx context.Context, id uint, lastImport *time.Time, netCount int) error {
	updates := map[string]any{
		"ixf_net_count": netCount,
	}
	if lastImport != nil {
		updates["ixf_last_import"] = *lastImport
	}

	result := s.db.WithContext(ctx).
		Model(&models.Exchange{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrExchangeNotFound
	}
	return nil
}

func (s *GORMStore) CreateIXLan(ctx context.Context, ixlan *models.IXLan) error {
	if ixlan.Status == "" {
		ixlan.Status = models.StatusOK
	}
	return s.db.WithContext(ctx).Create(ixlan).Error
}

func (s *GORMStore) GetIXLan(ctx context.Context, id uint) (*models.IXLan, error) {
	return getByField[models.IXLan](s.db, ctx, "id", id, models.ErrIXLanNotFound, "Exchange", "Exchange.Contacts", "Prefixes")
}

// ListIXLansWithFeeds returns all active IXLANs that publish a member
// export feed, for the scheduler to walk.
func (s *GORMStore) ListIXLansWithFeeds(ctx context.Context) ([]*models.IXLan, error) {
	ixlans := []*models.IXLan{}
	err := s.db.WithContext(ctx).
		Preload("Exchange").
		Preload("Exchange.Contacts").
		Preload("Prefixes").
		Where("status = ? AND member_export_url <> ''", models.StatusOK).
		Find(&ixlans).Error
	if err != nil {
		return nil, err
	}
	return ixlans, nil
}

// SetIXLanImportError records (or clears) the most recent feed-level
// error on an IXLAN.
func (s *GORMStore) SetIXLanImportError(ctx context.Context, id uint, errMsg *string) error {
	return s.db.WithContext(ctx).
		Model(&models.IXLan{}).
		Where("id = ?", id).
		Update("import_error", errMsg).Error
}

// SetIXLanErrorNotified stamps the feed-error notification throttle and
// stores the error that was notified about.
func (s *GORMStore) SetIXLanErrorNotified(ctx context.Context, id uint, notified time.Time, errMsg string) error {
	return s.db.WithContext(ctx).
		Model(&models.IXLan{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"import_error_notified": notified,
			"import_error":          errMsg,
		}).Error
}
