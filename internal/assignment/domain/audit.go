package domain

import "time"

// AuditAction is the terminal decision recorded for a conversation
type AuditAction string

const (
	AuditActionEnqueued AuditAction = "enqueued"
	AuditActionAssigned AuditAction = "assigned"
	AuditActionSkipped  AuditAction = "skipped"
	AuditActionFailed   AuditAction = "failed"
)

// AuditMode is the algorithm that actually produced the decision. It may
// differ from the mailbox's configured mode: a sticky or fallback outcome is
// recorded as such while the persisted policy mode stays untouched.
type AuditMode string

const (
	AuditModeRoundRobin AuditMode = "round_robin"
	AuditModeLeastOpen  AuditMode = "least_open"
	AuditModeSticky     AuditMode = "sticky"
	AuditModeFallback   AuditMode = "fallback"
	AuditModeDeferred   AuditMode = "deferred"
	AuditModeNone       AuditMode = ""
)

// AuditRecord is one immutable row of the per-mailbox decision log. Rows
// beyond the newest 200 per mailbox are pruned after every insert.
type AuditRecord struct {
	ID             uint        `json:"id" gorm:"primaryKey"`
	MailboxID      uint        `json:"mailbox_id" gorm:"index;not null"`
	ConversationID uint        `json:"conversation_id" gorm:"index;not null"`
	AssignedUserID *uint       `json:"assigned_user_id" gorm:"index"`
	Action         AuditAction `json:"action" gorm:"size:30;index;not null"`
	Mode           AuditMode   `json:"mode,omitempty" gorm:"size:30;index"`
	Reason         string      `json:"reason,omitempty" gorm:"type:text"`
	Meta           []byte      `json:"-" gorm:"type:jsonb"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index"`
}

func (AuditRecord) TableName() string {
	return "assignment_audit"
}

// AuditKeepPerMailbox bounds the audit trail per mailbox.
const AuditKeepPerMailbox = 200
