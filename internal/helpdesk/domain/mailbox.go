package domain

import "time"

// Mailbox is a shared inbox. Assignment distribution settings are stored as a
// raw JSON blob in Settings and interpreted exclusively by the assignment
// settings resolver.
type Mailbox struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Name  string `json:"name" gorm:"not null"`
	Email string `json:"email" gorm:"uniqueIndex;not null"`

	// DefaultUserID is the mailbox-level default assignee (0 = none).
	DefaultUserID uint `json:"default_user_id" gorm:"default:0"`

	// Settings holds the raw, possibly partial distributor policy.
	Settings []byte `json:"-" gorm:"type:jsonb"`

	Users []User `json:"-" gorm:"many2many:mailbox_users"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Mailbox) TableName() string {
	return "mailboxes"
}
