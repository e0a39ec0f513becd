package repository

import (
	"encoding/json"
	"strings"
	"time"

	helpdomain "distributor-backend/internal/helpdesk/domain"
	"distributor-backend/pkg/database"

	"gorm.io/gorm"
)

// ConversationRepository defines the interface for conversation operations
type ConversationRepository interface {
	WithTx(tx *gorm.DB) ConversationRepository
	Create(conv *helpdomain.Conversation) error
	FindByID(id uint) (*helpdomain.Conversation, error)
	// NextNumber returns the next conversation number in the mailbox.
	NextNumber(mailboxID uint) (int, error)
	// AttachTags links the named tags to the conversation, creating tag
	// rows on first use.
	AttachTags(conv *helpdomain.Conversation, names []string) error
	// LockByID reads the conversation under an exclusive row lock. Callers
	// must already hold the mailbox lock (mailbox-then-conversation order).
	LockByID(id uint) (*helpdomain.Conversation, error)
	// Assign sets the assignee and folder in one update. The assignee is
	// never cleared through this repository.
	Assign(conv *helpdomain.Conversation, userID uint, folderID uint) error
	// OpenCountsByUser returns per-agent counts of open (active or pending)
	// conversations in the mailbox, restricted to userIDs. Agents without
	// open conversations are absent from the map.
	OpenCountsByUser(mailboxID uint, userIDs []uint) (map[uint]int, error)
	// RecentAssignedByCustomer returns up to limit assigned conversations of
	// the same customer in the mailbox created after since, newest first,
	// excluding excludeID.
	RecentAssignedByCustomer(mailboxID, customerID, excludeID uint, since time.Time, limit int) ([]helpdomain.Conversation, error)
	// TagNames resolves the conversation's labels, probing the typed tag
	// relation, then the cached list column, then the meta blob. A source
	// that errors or yields nothing falls through to the next; the last
	// error is returned only when every source came up empty.
	TagNames(conv *helpdomain.Conversation) ([]string, error)
}

// conversationRepository implements ConversationRepository using GORM
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new instance of conversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) WithTx(tx *gorm.DB) ConversationRepository {
	return &conversationRepository{db: tx}
}

func (r *conversationRepository) Create(conv *helpdomain.Conversation) error {
	return r.db.Create(conv).Error
}

func (r *conversationRepository) FindByID(id uint) (*helpdomain.Conversation, error) {
	var conv helpdomain.Conversation
	err := r.db.Where("id = ?", id).First(&conv).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) NextNumber(mailboxID uint) (int, error) {
	var max int
	err := r.db.Model(&helpdomain.Conversation{}).
		Where("mailbox_id = ?", mailboxID).
		Select("COALESCE(MAX(number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *conversationRepository) AttachTags(conv *helpdomain.Conversation, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var tag helpdomain.Tag
		if err := r.db.Where("name = ?", name).FirstOrCreate(&tag, helpdomain.Tag{Name: name}).Error; err != nil {
			return err
		}
		if err := r.db.Model(conv).Association("Tags").Append(&tag); err != nil {
			return err
		}
	}
	return nil
}

func (r *conversationRepository) LockByID(id uint) (*helpdomain.Conversation, error) {
	var conv helpdomain.Conversation
	err := database.ForUpdate(r.db).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Assign(conv *helpdomain.Conversation, userID uint, folderID uint) error {
	err := r.db.Model(conv).Updates(map[string]interface{}{
		"user_id":    userID,
		"folder_id":  folderID,
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		return err
	}
	conv.UserID = &userID
	conv.FolderID = folderID
	return nil
}

func (r *conversationRepository) OpenCountsByUser(mailboxID uint, userIDs []uint) (map[uint]int, error) {
	if len(userIDs) == 0 {
		return map[uint]int{}, nil
	}

	type row struct {
		UserID uint
		Cnt    int
	}
	var rows []row
	err := r.db.Model(&helpdomain.Conversation{}).
		Select("user_id, COUNT(*) as cnt").
		Where("mailbox_id = ? AND user_id IN ? AND status IN ?",
			mailboxID, userIDs,
			[]helpdomain.ConversationStatus{helpdomain.ConversationStatusActive, helpdomain.ConversationStatusPending}).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int, len(rows))
	for _, rr := range rows {
		counts[rr.UserID] = rr.Cnt
	}
	return counts, nil
}

func (r *conversationRepository) RecentAssignedByCustomer(mailboxID, customerID, excludeID uint, since time.Time, limit int) ([]helpdomain.Conversation, error) {
	var convs []helpdomain.Conversation
	err := r.db.
		Where("mailbox_id = ? AND customer_id = ? AND id <> ? AND user_id IS NOT NULL AND created_at >= ?",
			mailboxID, customerID, excludeID, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepository) TagNames(conv *helpdomain.Conversation) ([]string, error) {
	var lastErr error

	// 1. Typed relation.
	var names []string
	err := r.db.Table("tags").
		Joins("JOIN conversation_tags ct ON ct.tag_id = tags.id").
		Where("ct.conversation_id = ?", conv.ID).
		Pluck("tags.name", &names).Error
	if err != nil {
		lastErr = err
	} else if len(names) > 0 {
		return names, nil
	}

	// 2. Cached comma-separated column.
	if cached := splitTagList(conv.TagsCache); len(cached) > 0 {
		return cached, nil
	}

	// 3. Meta blob, "tags" key.
	if len(conv.Meta) > 0 {
		var meta struct {
			Tags []string `json:"tags"`
		}
		if err := json.Unmarshal(conv.Meta, &meta); err != nil {
			lastErr = err
		} else if len(meta.Tags) > 0 {
			return meta.Tags, nil
		}
	}

	return nil, lastErr
}

func splitTagList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
