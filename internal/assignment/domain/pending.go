package domain

import "time"

// PendingStatus is the lifecycle of a deferred assignment row. Every status
// other than pending is terminal.
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusAssigned PendingStatus = "assigned"
	PendingStatusSkipped  PendingStatus = "skipped"
	PendingStatusFailed   PendingStatus = "failed"
)

// PendingAssignment is a persisted "assign later" record. At most one row
// exists per conversation; re-enqueueing updates run_at and snapshot in
// place.
type PendingAssignment struct {
	ID             uint          `json:"id" gorm:"primaryKey"`
	MailboxID      uint          `json:"mailbox_id" gorm:"index;not null"`
	ConversationID uint          `json:"conversation_id" gorm:"uniqueIndex;not null"`
	RunAt          time.Time     `json:"run_at" gorm:"index;not null"`
	Status         PendingStatus `json:"status" gorm:"size:20;default:pending;index"`
	ProcessedAt    *time.Time    `json:"processed_at"`
	Reason         string        `json:"reason,omitempty" gorm:"type:text"`

	// Snapshot captures mode and pool at enqueue time. Informational only;
	// the drain assigns from the live policy.
	Snapshot []byte `json:"-" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PendingAssignment) TableName() string {
	return "pending_assignments"
}

// PolicySnapshot is the JSON shape stored in PendingAssignment.Snapshot.
type PolicySnapshot struct {
	Mode  Mode   `json:"mode"`
	Users []uint `json:"users"`
}
