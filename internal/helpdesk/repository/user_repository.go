package repository

import (
	helpdomain "distributor-backend/internal/helpdesk/domain"

	"gorm.io/gorm"
)

// UserRepository defines the interface for agent lookups
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(user *helpdomain.User) error
	FindByID(id uint) (*helpdomain.User, error)
	// ActiveIDs filters ids down to agents whose account is active.
	ActiveIDs(ids []uint) ([]uint, error)
}

// userRepository implements UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(user *helpdomain.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) FindByID(id uint) (*helpdomain.User, error) {
	var user helpdomain.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ActiveIDs(ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var active []uint
	err := r.db.Model(&helpdomain.User{}).
		Where("id IN ? AND status = ?", ids, helpdomain.UserStatusActive).
		Pluck("id", &active).Error
	if err != nil {
		return nil, err
	}
	return active, nil
}
