package store

import (
	"context"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// ============================================
// CONNECTION RECORD OPERATIONS
// ============================================

// ActiveNetIXLans returns the active connection records on an IXLAN.
// When asn is non-zero only that network's records are returned (the
// single-ASN run mode).
func (s *GORMStore) ActiveNetIXLans(ctx context.Context, ixlanID uint, asn uint32) ([]*models.NetworkIXLan, error) {
	q := s.db.WithContext(ctx).
		Preload("Network").
		Preload("Network.Contacts").
		Where("ixlan_id = ? AND status = ?", ixlanID, models.StatusOK)

	if asn != 0 {
		q = q.Where("asn = ?", asn)
	}

	netixlans := []*models.NetworkIXLan{}
	if err := q.Order("id").Find(&netixlans).Error; err != nil {
		return nil, err
	}
	return netixlans, nil
}

// GetNetIXLan fetches one connection record by id.
func (s *GORMStore) GetNetIXLan(ctx context.Context, id uint) (*models.NetworkIXLan, error) {
	return getByField[models.NetworkIXLan](s.db, ctx, "id", id, models.ErrNetIXLanNotFound, "Network", "IXLan")
}

// CreateNetIXLan inserts a connection record and appends its first
// version snapshot in the same transaction scope.
func (s *GORMStore) CreateNetIXLan(ctx context.Context, n *models.NetworkIXLan) error {
	if n.Status == "" {
		n.Status = models.StatusOK
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateNetIXLan
		}
		return err
	}
	return s.appendVersion(ctx, n)
}

// UpdateNetIXLan persists the record's current field values and appends
// a version snapshot.
func (s *GORMStore) UpdateNetIXLan(ctx context.Context, n *models.NetworkIXLan) error {
	result := s.db.WithContext(ctx).
		Model(&models.NetworkIXLan{}).
		Where("id = ?", n.ID).
		Select("IPAddr4", "IPAddr6", "Speed", "Operational", "IsRSPeer", "Status").
		Updates(n)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNetIXLanNotFound
	}
	return s.appendVersion(ctx, n)
}

// SoftDeleteNetIXLan marks the record deleted. The row stays behind for
// audit; a version snapshot records the transition.
func (s *GORMStore) SoftDeleteNetIXLan(ctx context.Context, n *models.NetworkIXLan) error {
	n.Status = models.StatusDeleted
	result := s.db.WithContext(ctx).
		Model(&models.NetworkIXLan{}).
		Where("id = ?", n.ID).
		Update("status", models.StatusDeleted)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNetIXLanNotFound
	}
	return s.appendVersion(ctx, n)
}

// appendVersion writes an append-only snapshot of the record.
func (s *GORMStore) appendVersion(ctx context.Context, n *models.NetworkIXLan) error {
	return s.db.WithContext(ctx).Create(n.Snapshot()).Error
}

// LatestVersion returns the most recent version snapshot for a record,
// or nil when the record has no history yet.
func (s *GORMStore) LatestVersion(ctx context.Context, netixlanID uint) (*models.NetIXLanVersion, error) {
	var v models.NetIXLanVersion
	err := s.db.WithContext(ctx).
		Where("netixlan_id = ?", netixlanID).
		Order("id DESC").
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

// VersionAfter returns the first version snapshot for a record with an
// id greater than afterID (the version immediately after a change). The
// archiver uses it to locate the post-change version for an entry.
// Returns nil when no such snapshot exists.
func (s *GORMStore) VersionAfter(ctx context.Context, netixlanID uint, afterID uint) (*models.NetIXLanVersion, error) {
	var versions []models.NetIXLanVersion
	q := s.db.WithContext(ctx).Where("netixlan_id = ?", netixlanID)
	if afterID != 0 {
		q = q.Where("id > ?", afterID)
	}
	if err := q.Order("id").Limit(1).Find(&versions).Error; err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return &versions[0], nil
}

// ActiveAddressInUse reports whether the given address column value is
// already held by a different active record on the IXLAN. The applier
// uses this to enforce per-IXLAN address uniqueness as a business rule.
func (s *GORMStore) ActiveAddressInUse(ctx context.Context, ixlanID uint, column, addr string, excludeID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.NetworkIXLan{}).
		Where("ixlan_id = ? AND status = ? AND "+column+" = ? AND id <> ?",
			ixlanID, models.StatusOK, addr, excludeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// NetworkPresentAtExchange reports whether the network has any other
// active connection record under any IXLAN of the given exchange.
func (s *GORMStore) NetworkPresentAtExchange(ctx context.Context, asn uint32, exchangeID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.NetworkIXLan{}).
		Joins("JOIN ixlans ON ixlans.id = netixlans.ixlan_id").
		Where("netixlans.asn = ? AND netixlans.status = ? AND ixlans.exchange_id = ?",
			asn, models.StatusOK, exchangeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// NetIXLansChangedSince reports whether any connection record under the
// IXLAN was touched at or after the given time. Drives the exchange
// rollup after a run.
func (s *GORMStore) NetIXLansChangedSince(ctx context.Context, ixlanID uint, since any) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.NetworkIXLan{}).
		Where("ixlan_id = ? AND updated_at >= ?", ixlanID, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
