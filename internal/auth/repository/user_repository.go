package repository

import (
	"context"
	"errors"

	authdomain "grocery-backend/internal/auth/domain"

	"gorm.io/gorm"
)

// UserRepository reads users and staff rosters
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	FindStaff(ctx context.Context, storeID string, role authdomain.Role, statuses []authdomain.OnlineStatus) ([]*authdomain.User, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindStaff returns the users of a store holding role. An empty statuses
// slice matches every online status.
func (r *userRepository) FindStaff(ctx context.Context, storeID string, role authdomain.Role, statuses []authdomain.OnlineStatus) ([]*authdomain.User, error) {
	var users []*authdomain.User
	query := r.db.WithContext(ctx).Where("store_id = ? AND role = ?", storeID, role)
	if len(statuses) > 0 {
		query = query.Where("online_status IN ?", statuses)
	}
	if err := query.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
