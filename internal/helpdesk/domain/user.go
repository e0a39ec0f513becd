package domain

import "time"

// UserStatus represents an agent account state
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
	UserStatusDeleted  UserStatus = "deleted"
)

// User is a helpdesk agent
type User struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"not null"`
	Email     string     `json:"email" gorm:"uniqueIndex;not null"`
	Status    UserStatus `json:"status" gorm:"default:active;index"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsActive reports whether the agent may receive assignments.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
