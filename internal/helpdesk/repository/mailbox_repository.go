package repository

import (
	helpdomain "distributor-backend/internal/helpdesk/domain"
	"distributor-backend/pkg/database"

	"gorm.io/gorm"
)

// MailboxRepository defines the interface for mailbox operations
type MailboxRepository interface {
	WithTx(tx *gorm.DB) MailboxRepository
	Create(mailbox *helpdomain.Mailbox) error
	FindByID(id uint) (*helpdomain.Mailbox, error)
	// LockByID reads the mailbox under an exclusive row lock. It is the first
	// lock taken by the assignment engine; the conversation lock always comes
	// after it.
	LockByID(id uint) (*helpdomain.Mailbox, error)
	UserIDs(mailboxID uint) ([]uint, error)
	SaveSettings(mailbox *helpdomain.Mailbox) error
}

// mailboxRepository implements MailboxRepository using GORM
type mailboxRepository struct {
	db *gorm.DB
}

// NewMailboxRepository creates a new instance of mailboxRepository
func NewMailboxRepository(db *gorm.DB) MailboxRepository {
	return &mailboxRepository{db: db}
}

func (r *mailboxRepository) WithTx(tx *gorm.DB) MailboxRepository {
	return &mailboxRepository{db: tx}
}

func (r *mailboxRepository) Create(mailbox *helpdomain.Mailbox) error {
	return r.db.Create(mailbox).Error
}

func (r *mailboxRepository) FindByID(id uint) (*helpdomain.Mailbox, error) {
	var mailbox helpdomain.Mailbox
	err := r.db.Where("id = ?", id).First(&mailbox).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &mailbox, nil
}

func (r *mailboxRepository) LockByID(id uint) (*helpdomain.Mailbox, error) {
	var mailbox helpdomain.Mailbox
	err := database.ForUpdate(r.db).Where("id = ?", id).First(&mailbox).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &mailbox, nil
}

// UserIDs returns the ids of agents with access to the mailbox.
func (r *mailboxRepository) UserIDs(mailboxID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Table("mailbox_users").
		Where("mailbox_id = ?", mailboxID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveSettings persists the raw settings blob.
func (r *mailboxRepository) SaveSettings(mailbox *helpdomain.Mailbox) error {
	return r.db.Model(mailbox).Update("settings", mailbox.Settings).Error
}
