package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// ============================================
// ATTEMPT / EMAIL / TICKET LOG OPERATIONS
// ============================================

// SaveImportAttempt upserts the per-IXLAN attempt log. Only the most
// recent attempt is kept per IXLAN.
func (s *GORMStore) SaveImportAttempt(ctx context.Context, ixlanID uint, info string) error {
	attempt := models.ImportAttempt{
		IXLanID: ixlanID,
		Info:    info,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ixlan_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"info", "updated_at"}),
		}).
		Create(&attempt).Error
}

// GetImportAttempt returns the most recent attempt log for an IXLAN.
func (s *GORMStore) GetImportAttempt(ctx context.Context, ixlanID uint) (*models.ImportAttempt, error) {
	return getByField[models.ImportAttempt](s.db, ctx, "ixlan_id", ixlanID, models.ErrImportLogNotFound)
}

// CreateEmailLog records a notification send or gated skip.
func (s *GORMStore) CreateEmailLog(ctx context.Context, log *models.EmailLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

// MarkEmailSent stamps the email log row once dispatch succeeded.
func (s *GORMStore) MarkEmailSent(ctx context.Context, id uint, sent time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.EmailLog{}).
		Where("id = ?", id).
		Update("sent_at", sent).Error
}

// CreateTicket records a ticket row.
func (s *GORMStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return s.db.WithContext(ctx).Create(ticket).Error
}

// UpdateTicket persists mutations to an existing ticket row (publish
// stamp, failure subject rewrite, inherited handle).
func (s *GORMStore) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	return s.db.WithContext(ctx).Save(ticket).Error
}
