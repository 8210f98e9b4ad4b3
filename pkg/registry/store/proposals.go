package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerix/ixsync/pkg/registry/models"
)

// ============================================
// PROPOSAL OPERATIONS
// ============================================

// GetProposalByIdentity returns the proposal for the given identity key
// on an IXLAN, regardless of state. Uniqueness is by identity key within
// an IXLAN.
func (s *GORMStore) GetProposalByIdentity(ctx context.Context, ixlanID uint, id models.Identity) (*models.MemberProposal, error) {
	v4, v6 := "", ""
	if id.HasIPv4() {
		v4 = id.IPv4.String()
	}
	if id.HasIPv6() {
		v6 = id.IPv6.String()
	}

	var proposal models.MemberProposal
	err := s.db.WithContext(ctx).
		Where("ixlan_id = ? AND asn = ? AND ip_addr4 = ? AND ip_addr6 = ?", ixlanID, id.ASN, v4, v6).
		First(&proposal).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrProposalNotFound)
	}
	return &proposal, nil
}

// SaveProposal creates or updates a proposal row. New rows get a UUID.
func (s *GORMStore) SaveProposal(ctx context.Context, p *models.MemberProposal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
		if p.State == "" {
			p.State = models.ProposalOpen
		}
		return s.db.WithContext(ctx).Create(p).Error
	}
	return s.db.WithContext(ctx).Save(p).Error
}

// ProposalsForIXLan lists proposals under an IXLAN, optionally filtered
// by ASN, for the end-of-run cleanup pass.
func (s *GORMStore) ProposalsForIXLan(ctx context.Context, ixlanID uint, asn uint32) ([]*models.MemberProposal, error) {
	q := s.db.WithContext(ctx).
		Preload("NetIXLan").
		Where("ixlan_id = ?", ixlanID)

	if asn != 0 {
		q = q.Where("asn = ?", asn)
	}

	proposals := []*models.MemberProposal{}
	if err := q.Order("created_at").Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

// OpenProposalsWithoutTicket returns open and conflicted proposals with
// no ticket attached that are not requirements of other proposals,
// created at or before the cutoff. A zero cutoff disables age-gating.
func (s *GORMStore) OpenProposalsWithoutTicket(ctx context.Context, cutoff time.Time) ([]*models.MemberProposal, error) {
	q := s.db.WithContext(ctx).
		Preload("NetIXLan").
		Where("state IN ? AND ticket_id IS NULL AND requirement_of_id IS NULL",
			[]models.ProposalState{models.ProposalOpen, models.ProposalConflicted})

	if !cutoff.IsZero() {
		q = q.Where("created_at <= ?", cutoff)
	}

	proposals := []*models.MemberProposal{}
	if err := q.Order("created_at").Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

// PrimaryRequirement returns the oldest proposal back-linked to the
// given proposal as a requirement, or nil when it has none.
func (s *GORMStore) PrimaryRequirement(ctx context.Context, proposalID string) (*models.MemberProposal, error) {
	proposals := []*models.MemberProposal{}
	err := s.db.WithContext(ctx).
		Where("requirement_of_id = ?", proposalID).
		Order("created_at").
		Limit(1).
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 {
		return nil, nil
	}
	return proposals[0], nil
}

// ProposalsChangedSince reports whether any proposal under the IXLAN was
// touched at or after the given time.
func (s *GORMStore) ProposalsChangedSince(ctx context.Context, ixlanID uint, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.MemberProposal{}).
		Where("ixlan_id = ? AND updated_at >= ?", ixlanID, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteProposal removes a proposal row (used when a proposal is
// fulfilled by the applier in the same run it was created).
func (s *GORMStore) DeleteProposal(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.MemberProposal{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrProposalNotFound
	}
	return nil
}

// AttachTicket stores the ticket handle on a proposal.
func (s *GORMStore) AttachTicket(ctx context.Context, proposalID string, ticketID *int64, ticketRef *string) error {
	return s.db.WithContext(ctx).
		Model(&models.MemberProposal{}).
		Where("id = ?", proposalID).
		Updates(map[string]any{
			"ticket_id":  ticketID,
			"ticket_ref": ticketRef,
		}).Error
}

// FindTicketBySubject returns the most recent ticket with the given
// subject that has a remote ticket id, for create-or-inherit semantics.
func (s *GORMStore) FindTicketBySubject(ctx context.Context, subject string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.WithContext(ctx).
		Where("subject = ? AND ticket_id IS NOT NULL", subject).
		Order("id DESC").
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ticket, nil
}
