package store

import (
	"context"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// ============================================
// NETWORK OPERATIONS
// ============================================

func (s *GORMStore) GetNetworkByASN(ctx context.Context, asn uint32) (*models.Network, error) {
	return getByField[models.Network](s.db, ctx, "asn", asn, models.ErrNetworkNotFound, "Contacts")
}

func (s *GORMStore) ListNetworks(ctx context.Context) ([]*models.Network, error) {
	return listAll[models.Network](s.db, ctx, "Contacts")
}

func (s *GORMStore) CreateNetwork(ctx context.Context, network *models.Network) error {
	if network.Status == "" {
		network.Status = models.StatusOK
	}
	if err := s.db.WithContext(ctx).Create(network).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateNetwork
		}
		return err
	}
	return nil
}

func (s *GORMStore) UpdateNetwork(ctx context.Context, network *models.Network) error {
	result := s.db.WithContext(ctx).
		Model(&models.Network{}).
		Where("id = ?", network.ID).
		Select("Name", "Status", "IPv4Support", "IPv6Support", "AllowIXPUpdate").
		Updates(network)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNetworkNotFound
	}
	return nil
}
