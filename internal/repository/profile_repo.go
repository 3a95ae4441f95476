package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// ProfileRepository read-only access to profiles and connections
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID finds a profile by ID
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByIDs returns profiles in id order; unknown ids are skipped
func (r *ProfileRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Profile, error) {
	var profiles []*domain.Profile
	if len(ids) == 0 {
		return profiles, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&profiles).Error
	return profiles, err
}

// AcceptedPeerIDs returns the other side of every accepted connection of userID
func (r *ProfileRepository) AcceptedPeerIDs(ctx context.Context, userID string) ([]string, error) {
	var conns []domain.Connection
	err := r.db.WithContext(ctx).
		Where("status = ? AND (requester_id = ? OR addressee_id = ?)", domain.ConnectionAccepted, userID, userID).
		Order("id ASC").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(conns))
	peers := make([]string, 0, len(conns))
	for _, c := range conns {
		peer := c.AddresseeID
		if peer == userID {
			peer = c.RequesterID
		}
		if peer == userID || seen[peer] {
			continue
		}
		seen[peer] = true
		peers = append(peers, peer)
	}
	return peers, nil
}

// CastsOfStore returns cast profiles affiliated with storeID
func (r *ProfileRepository) CastsOfStore(ctx context.Context, storeID string) ([]*domain.Profile, error) {
	var casts []*domain.Profile
	err := r.db.WithContext(ctx).
		Where("role = ? AND store_id = ?", domain.RoleCast, storeID).
		Order("id ASC").
		Find(&casts).Error
	return casts, err
}
