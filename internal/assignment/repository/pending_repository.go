package repository

import (
	"time"

	assigndomain "distributor-backend/internal/assignment/domain"
	"distributor-backend/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingRepository defines the interface for the deferred assignment queue
type PendingRepository interface {
	WithTx(tx *gorm.DB) PendingRepository
	// Upsert enqueues a deferred assignment. A second call for the same
	// conversation updates run_at and snapshot in place and re-opens the row
	// instead of creating a duplicate.
	Upsert(p *assigndomain.PendingAssignment) error
	// Due returns pending rows with run_at <= now, oldest first, up to limit.
	Due(now time.Time, limit int) ([]assigndomain.PendingAssignment, error)
	// LockByID reads the row under an exclusive row lock so concurrent
	// drains cannot claim it twice.
	LockByID(id uint) (*assigndomain.PendingAssignment, error)
	// MarkProcessed moves the row to a terminal status.
	MarkProcessed(p *assigndomain.PendingAssignment, status assigndomain.PendingStatus, reason string) error
	FindByConversationID(conversationID uint) (*assigndomain.PendingAssignment, error)
	ListByMailbox(mailboxID uint, limit int) ([]assigndomain.PendingAssignment, error)
}

// pendingRepository implements PendingRepository using GORM
type pendingRepository struct {
	db *gorm.DB
}

// NewPendingRepository creates a new instance of pendingRepository
func NewPendingRepository(db *gorm.DB) PendingRepository {
	return &pendingRepository{db: db}
}

func (r *pendingRepository) WithTx(tx *gorm.DB) PendingRepository {
	return &pendingRepository{db: tx}
}

func (r *pendingRepository) Upsert(p *assigndomain.PendingAssignment) error {
	now := time.Now()
	p.Status = assigndomain.PendingStatusPending
	p.ProcessedAt = nil
	p.Reason = ""
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	// Atomic upsert: INSERT ... ON CONFLICT (conversation_id) DO UPDATE
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mailbox_id", "run_at", "status", "snapshot", "reason", "processed_at", "updated_at",
		}),
	}).Create(p).Error
}

func (r *pendingRepository) Due(now time.Time, limit int) ([]assigndomain.PendingAssignment, error) {
	var rows []assigndomain.PendingAssignment
	err := r.db.
		Where("status = ? AND run_at <= ?", assigndomain.PendingStatusPending, now).
		Order("run_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *pendingRepository) LockByID(id uint) (*assigndomain.PendingAssignment, error) {
	var row assigndomain.PendingAssignment
	err := database.ForUpdate(r.db).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *pendingRepository) MarkProcessed(p *assigndomain.PendingAssignment, status assigndomain.PendingStatus, reason string) error {
	now := time.Now()
	err := r.db.Model(p).Updates(map[string]interface{}{
		"status":       status,
		"reason":       reason,
		"processed_at": now,
		"updated_at":   now,
	}).Error
	if err != nil {
		return err
	}
	p.Status = status
	p.Reason = reason
	p.ProcessedAt = &now
	return nil
}

func (r *pendingRepository) FindByConversationID(conversationID uint) (*assigndomain.PendingAssignment, error) {
	var row assigndomain.PendingAssignment
	err := r.db.Where("conversation_id = ?", conversationID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *pendingRepository) ListByMailbox(mailboxID uint, limit int) ([]assigndomain.PendingAssignment, error) {
	var rows []assigndomain.PendingAssignment
	err := r.db.
		Where("mailbox_id = ?", mailboxID).
		Order("run_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
