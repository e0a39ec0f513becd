package repository

import (
	"time"

	helpdomain "distributor-backend/internal/helpdesk/domain"

	"gorm.io/gorm"
)

// FolderRepository defines the interface for folder operations
type FolderRepository interface {
	WithTx(tx *gorm.DB) FolderRepository
	Create(folder *helpdomain.Folder) error
	// FindByType returns the folder of the given type in the mailbox.
	// userID is only consulted for "mine" folders.
	FindByType(mailboxID uint, folderType helpdomain.FolderType, userID uint) (*helpdomain.Folder, error)
	// RecalcCounters recomputes the denormalized open/total counters from
	// the conversations table.
	RecalcCounters(folderID uint) error
}

// folderRepository implements FolderRepository using GORM
type folderRepository struct {
	db *gorm.DB
}

// NewFolderRepository creates a new instance of folderRepository
func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) WithTx(tx *gorm.DB) FolderRepository {
	return &folderRepository{db: tx}
}

func (r *folderRepository) Create(folder *helpdomain.Folder) error {
	return r.db.Create(folder).Error
}

func (r *folderRepository) FindByType(mailboxID uint, folderType helpdomain.FolderType, userID uint) (*helpdomain.Folder, error) {
	query := r.db.Where("mailbox_id = ? AND type = ?", mailboxID, folderType)
	if folderType == helpdomain.FolderTypeMine {
		query = query.Where("user_id = ?", userID)
	}

	var folder helpdomain.Folder
	err := query.First(&folder).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &folder, nil
}

func (r *folderRepository) RecalcCounters(folderID uint) error {
	var total, open int64

	if err := r.db.Model(&helpdomain.Conversation{}).
		Where("folder_id = ?", folderID).
		Count(&total).Error; err != nil {
		return err
	}

	if err := r.db.Model(&helpdomain.Conversation{}).
		Where("folder_id = ? AND status IN ?", folderID,
			[]helpdomain.ConversationStatus{helpdomain.ConversationStatusActive, helpdomain.ConversationStatusPending}).
		Count(&open).Error; err != nil {
		return err
	}

	return r.db.Model(&helpdomain.Folder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"total_count": total,
			"open_count":  open,
			"updated_at":  time.Now(),
		}).Error
}
