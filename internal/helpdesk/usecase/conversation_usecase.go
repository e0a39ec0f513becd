package usecase

import (
	"context"
	"errors"

	assignUsecase "distributor-backend/internal/assignment/usecase"
	helpdomain "distributor-backend/internal/helpdesk/domain"
	helprepo "distributor-backend/internal/helpdesk/repository"

	"github.com/rs/zerolog"
)

// ErrMailboxNotFound is returned when a conversation targets an unknown
// mailbox.
var ErrMailboxNotFound = errors.New("mailbox not found")

// CreateConversationInput is the new-customer-conversation event payload.
type CreateConversationInput struct {
	MailboxID  uint
	CustomerID uint
	Subject    string
	Tags       []string
}

// ConversationUsecase handles conversation ingestion and lookup
type ConversationUsecase interface {
	// CreateCustomerConversation stores the conversation and synchronously
	// runs auto-assignment, exactly like the host firing its
	// conversation-created event.
	CreateCustomerConversation(ctx context.Context, input CreateConversationInput) (*helpdomain.Conversation, error)
	GetConversation(id uint) (*helpdomain.Conversation, error)
}

type conversationUsecase struct {
	conversations helprepo.ConversationRepository
	mailboxes     helprepo.MailboxRepository
	folders       helprepo.FolderRepository
	resolver      *assignUsecase.SettingsResolver
	assigner      *assignUsecase.Assigner
	processor     *assignUsecase.PendingProcessor
	log           zerolog.Logger
}

// NewConversationUsecase creates a new ConversationUsecase
func NewConversationUsecase(
	conversations helprepo.ConversationRepository,
	mailboxes helprepo.MailboxRepository,
	folders helprepo.FolderRepository,
	resolver *assignUsecase.SettingsResolver,
	assigner *assignUsecase.Assigner,
	processor *assignUsecase.PendingProcessor,
	log zerolog.Logger,
) ConversationUsecase {
	return &conversationUsecase{
		conversations: conversations,
		mailboxes:     mailboxes,
		folders:       folders,
		resolver:      resolver,
		assigner:      assigner,
		processor:     processor,
		log:           log.With().Str("component", "conversation_usecase").Logger(),
	}
}

func (u *conversationUsecase) CreateCustomerConversation(ctx context.Context, input CreateConversationInput) (*helpdomain.Conversation, error) {
	mailbox, err := u.mailboxes.FindByID(input.MailboxID)
	if err != nil {
		return nil, err
	}
	if mailbox == nil {
		return nil, ErrMailboxNotFound
	}

	number, err := u.conversations.NextNumber(mailbox.ID)
	if err != nil {
		return nil, err
	}

	conv := &helpdomain.Conversation{
		Number:     number,
		MailboxID:  mailbox.ID,
		CustomerID: input.CustomerID,
		Subject:    input.Subject,
		Status:     helpdomain.ConversationStatusActive,
	}

	unassigned, err := u.folders.FindByType(mailbox.ID, helpdomain.FolderTypeUnassigned, 0)
	if err != nil {
		return nil, err
	}
	if unassigned != nil {
		conv.FolderID = unassigned.ID
	}

	if err := u.conversations.Create(conv); err != nil {
		return nil, err
	}

	if len(input.Tags) > 0 {
		if err := u.conversations.AttachTags(conv, input.Tags); err != nil {
			return nil, err
		}
	}

	if conv.FolderID != 0 {
		if err := u.folders.RecalcCounters(conv.FolderID); err != nil {
			u.log.Warn().Err(err).Uint("folder_id", conv.FolderID).Msg("folder counter recompute failed")
		}
	}

	// Installs without the scheduler piggyback a small drain on incoming
	// traffic before routing the new conversation.
	policy := u.resolver.Resolve(mailbox.Settings)
	if policy.DeferEnabled && policy.WebFallback {
		u.processor.WebFallbackDrain(ctx)
	}

	if err := u.assigner.AssignIfEnabled(ctx, conv.ID); err != nil {
		return nil, err
	}

	return u.conversations.FindByID(conv.ID)
}

func (u *conversationUsecase) GetConversation(id uint) (*helpdomain.Conversation, error) {
	return u.conversations.FindByID(id)
}
