package repository

import (
	assigndomain "distributor-backend/internal/assignment/domain"

	"gorm.io/gorm"
)

// AuditRepository appends and reads immutable assignment audit records.
// Insert and prune errors are tolerated by the audit sink, not here.
type AuditRepository interface {
	WithTx(tx *gorm.DB) AuditRepository
	Insert(rec *assigndomain.AuditRecord) error
	// PruneMailbox deletes rows beyond the newest keep records (by id
	// descending) for the mailbox.
	PruneMailbox(mailboxID uint, keep int) error
	ListByMailbox(mailboxID uint, limit int) ([]assigndomain.AuditRecord, error)
	CountByMailbox(mailboxID uint) (int64, error)
}

// auditRepository implements AuditRepository using GORM
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new instance of auditRepository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) WithTx(tx *gorm.DB) AuditRepository {
	return &auditRepository{db: tx}
}

func (r *auditRepository) Insert(rec *assigndomain.AuditRecord) error {
	return r.db.Create(rec).Error
}

func (r *auditRepository) PruneMailbox(mailboxID uint, keep int) error {
	return r.db.Exec(`
		DELETE FROM assignment_audit
		WHERE mailbox_id = ?
		  AND id NOT IN (
			SELECT id FROM (
				SELECT id FROM assignment_audit
				WHERE mailbox_id = ?
				ORDER BY id DESC
				LIMIT ?
			) keepers
		  )`,
		mailboxID, mailboxID, keep).Error
}

func (r *auditRepository) ListByMailbox(mailboxID uint, limit int) ([]assigndomain.AuditRecord, error) {
	var rows []assigndomain.AuditRecord
	err := r.db.
		Where("mailbox_id = ?", mailboxID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *auditRepository) CountByMailbox(mailboxID uint) (int64, error) {
	var n int64
	err := r.db.Model(&assigndomain.AuditRecord{}).
		Where("mailbox_id = ?", mailboxID).
		Count(&n).Error
	return n, err
}
