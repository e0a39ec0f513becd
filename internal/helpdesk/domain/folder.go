package domain

import "time"

// FolderType distinguishes the built-in mailbox folders
type FolderType string

const (
	FolderTypeUnassigned FolderType = "unassigned"
	FolderTypeAssigned   FolderType = "assigned"
	FolderTypeMine       FolderType = "mine"
)

// Folder groups conversations in the mailbox sidebar. Counters are
// denormalized and recomputed after every assignment commit.
type Folder struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	MailboxID uint       `json:"mailbox_id" gorm:"index;not null"`
	Type      FolderType `json:"type" gorm:"index;not null"`

	// UserID scopes "mine" folders to one agent (0 otherwise).
	UserID uint `json:"user_id" gorm:"default:0;index"`

	OpenCount  int `json:"open_count" gorm:"default:0"`
	TotalCount int `json:"total_count" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Folder) TableName() string {
	return "folders"
}
