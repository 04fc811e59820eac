package storage

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// Resolve returns the most recently updated active account of ownerID on platform.
// Expired accounts count as not connected.
func (s *GormStorage) Resolve(ctx context.Context, ownerID string, platform core.Platform) (*core.Credentials, error) {
	var acc core.SocialAccount
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND platform = ? AND is_active = ?", ownerID, platform, true).
		Order("updated_at DESC").
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrAccountNotConnected
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s account", platform)
	}
	if acc.ExpiresAt != nil && !acc.ExpiresAt.After(s.now()) {
		return nil, errors.Wrap(core.ErrAccountNotConnected, "access token expired")
	}
	return &core.Credentials{
		AccountID:    acc.AccountID,
		AccessToken:  acc.AccessToken,
		RefreshToken: acc.RefreshToken,
		ExpiresAt:    acc.ExpiresAt,
	}, nil
}

// SaveAccount inserts or updates a social account.
func (s *GormStorage) SaveAccount(ctx context.Context, acc *core.SocialAccount) error {
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	return errors.Wrap(s.db.WithContext(ctx).Save(acc).Error, "save social account")
}

// DeactivateAccount marks every account of ownerID on platform inactive.
func (s *GormStorage) DeactivateAccount(ctx context.Context, ownerID string, platform core.Platform) error {
	err := s.db.WithContext(ctx).
		Model(&core.SocialAccount{}).
		Where("owner_id = ? AND platform = ?", ownerID, platform).
		Update("is_active", false).Error
	return errors.Wrap(err, "deactivate social account")
}
