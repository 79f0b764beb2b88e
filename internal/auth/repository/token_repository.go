package repository

import (
	"context"
	"time"

	authdomain "grocery-backend/internal/auth/domain"

	"gorm.io/gorm"
)

// TokenRepository manages the single push token stored on each user
type TokenRepository interface {
	SaveToken(ctx context.Context, userID, token string) error
	GetToken(ctx context.Context, userID string) (string, error)
	// ClearToken nulls the user's token only while it still equals token.
	// It reports whether a row changed.
	ClearToken(ctx context.Context, userID, token string) (bool, error)
	DeleteToken(ctx context.Context, userID string) error
}

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new instance of tokenRepository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{
		db: db,
	}
}

// SaveToken registers token for userID. A token moving to another account is
// released from its previous owner first so one device never receives two
// users' notifications.
func (r *tokenRepository) SaveToken(ctx context.Context, userID, token string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&authdomain.User{}).
			Where("push_token = ? AND id <> ?", token, userID).
			Updates(map[string]interface{}{"push_token": nil, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&authdomain.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{"push_token": token, "updated_at": now}).Error
	})
}

// GetToken returns "" when the user is unknown or has no token
func (r *tokenRepository) GetToken(ctx context.Context, userID string) (string, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Select("id", "push_token").Where("id = ?", userID).Limit(1).Find(&user).Error
	if err != nil {
		return "", err
	}
	return user.Token(), nil
}

func (r *tokenRepository) ClearToken(ctx context.Context, userID, token string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&authdomain.User{}).
		Where("id = ? AND push_token = ?", userID, token).
		Updates(map[string]interface{}{"push_token": nil, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteToken removes the user's token unconditionally
func (r *tokenRepository) DeleteToken(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&authdomain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"push_token": nil, "updated_at": time.Now()}).Error
}
