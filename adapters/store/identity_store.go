package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/ports"
	"gorm.io/gorm"
)

// IdentityStore is a gorm implementation of ports.IdentityStore
type IdentityStore struct {
	db *gorm.DB
}

// NewIdentityStore creates a new identity store
func NewIdentityStore(db *gorm.DB) ports.IdentityStore {
	return &IdentityStore{db: db}
}

// CreateIdentity inserts identity, relying on the unique address index
func (s *IdentityStore) CreateIdentity(ctx context.Context, identity *core.Identity) error {
	rec := toIdentityRecord(identity)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", identity.Address, core.ErrAlreadyRegistered)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	identity.CreatedAt = rec.CreatedAt
	identity.UpdatedAt = rec.UpdatedAt
	return nil
}

// GetIdentityByAddress looks up an identity by its checksummed address
func (s *IdentityStore) GetIdentityByAddress(ctx context.Context, address string) (*core.Identity, error) {
	var rec IdentityRecord
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", address, core.ErrNotRegistered)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	identity := rec.toCore()
	return &identity, nil
}

// TouchLogin records a successful login
func (s *IdentityStore) TouchLogin(ctx context.Context, identityID string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&IdentityRecord{}).
		Where("id = ?", identityID).
		Update("last_login_at", at)
	if res.Error != nil {
		return fmt.Errorf("failed to record login: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("identity %s: %w", identityID, core.ErrNotRegistered)
	}
	return nil
}

// ListIdentities returns identities ordered by creation time
func (s *IdentityStore) ListIdentities(ctx context.Context, role *core.Role) ([]core.Identity, error) {
	q := s.db.WithContext(ctx).Order("created_at, id")
	if role != nil {
		q = q.Where("role = ?", role.String())
	}
	var recs []IdentityRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	out := make([]core.Identity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toCore())
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

func toIdentityRecord(i *core.Identity) IdentityRecord {
	return IdentityRecord{
		ID:          i.ID,
		Address:     i.Address,
		Role:        i.Role.String(),
		DisplayName: i.Profile.DisplayName,
		Email:       i.Profile.Email,
		Bio:         i.Profile.Bio,
		AvatarURL:   i.Profile.AvatarURL,
		Website:     i.Profile.Website,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
		LastLoginAt: i.LastLoginAt,
	}
}

func (r IdentityRecord) toCore() core.Identity {
	return core.Identity{
		ID:      r.ID,
		Address: r.Address,
		Role:    core.Role(r.Role),
		Profile: core.Profile{
			DisplayName: r.DisplayName,
			Email:       r.Email,
			Bio:         r.Bio,
			AvatarURL:   r.AvatarURL,
			Website:     r.Website,
		},
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		LastLoginAt: r.LastLoginAt,
	}
}
