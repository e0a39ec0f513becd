package domain

import "time"

// ConversationStatus represents the current state of a conversation
type ConversationStatus string

const (
	ConversationStatusActive  ConversationStatus = "active"
	ConversationStatusPending ConversationStatus = "pending"
	ConversationStatusClosed  ConversationStatus = "closed"
	ConversationStatusSpam    ConversationStatus = "spam"
)

// Conversation is a customer thread inside a mailbox.
//
// Labels live in three places, probed in order by the repository: the typed
// conversation_tags relation, the denormalized TagsCache column, and finally
// the free-form Meta blob under the "tags" key.
type Conversation struct {
	ID         uint               `json:"id" gorm:"primaryKey"`
	Number     int                `json:"number" gorm:"index"`
	MailboxID  uint               `json:"mailbox_id" gorm:"index;not null"`
	CustomerID uint               `json:"customer_id" gorm:"index"`
	Subject    string             `json:"subject"`
	Status     ConversationStatus `json:"status" gorm:"default:active;index"`

	// UserID is the assignee; nil means unassigned. The distributor sets it
	// but never clears it.
	UserID *uint `json:"user_id" gorm:"index"`

	FolderID uint `json:"folder_id" gorm:"index"`

	Tags      []Tag  `json:"-" gorm:"many2many:conversation_tags"`
	TagsCache string `json:"-"`
	Meta      []byte `json:"-" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// IsOpen reports whether the conversation counts toward an agent's load.
func (c *Conversation) IsOpen() bool {
	return c.Status == ConversationStatusActive || c.Status == ConversationStatusPending
}

// Assigned reports whether an assignee is set.
func (c *Conversation) Assigned() bool {
	return c.UserID != nil && *c.UserID != 0
}

// Tag is a label attached to conversations
type Tag struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Tag) TableName() string {
	return "tags"
}
