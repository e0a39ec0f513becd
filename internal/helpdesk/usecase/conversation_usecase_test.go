package usecase

import (
	"context"
	"testing"

	assigndomain "distributor-backend/internal/assignment/domain"
	assignrepo "distributor-backend/internal/assignment/repository"
	assignusecase "distributor-backend/internal/assignment/usecase"
	helpdomain "distributor-backend/internal/helpdesk/domain"
	helprepo "distributor-backend/internal/helpdesk/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db       *gorm.DB
	usecase  ConversationUsecase
	resolver *assignusecase.SettingsResolver
	pending  assignrepo.PendingRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&helpdomain.User{},
		&helpdomain.Mailbox{},
		&helpdomain.Folder{},
		&helpdomain.Tag{},
		&helpdomain.Conversation{},
		&assigndomain.PendingAssignment{},
		&assigndomain.AuditRecord{},
	))

	log := zerolog.Nop()
	mailboxes := helprepo.NewMailboxRepository(db)
	conversations := helprepo.NewConversationRepository(db)
	users := helprepo.NewUserRepository(db)
	folders := helprepo.NewFolderRepository(db)
	pending := assignrepo.NewPendingRepository(db)
	audits := assignrepo.NewAuditRepository(db)

	resolver := assignusecase.NewSettingsResolver(assigndomain.DefaultPolicy())
	sink := assignusecase.NewAuditSink(audits, log)
	assigner := assignusecase.NewAssigner(db, mailboxes, conversations, users, folders, pending, resolver, sink, log)
	processor := assignusecase.NewPendingProcessor(db, pending, conversations, assigner, log)

	return &testEnv{
		db:       db,
		usecase:  NewConversationUsecase(conversations, mailboxes, folders, resolver, assigner, processor, log),
		resolver: resolver,
		pending:  pending,
	}
}

func (e *testEnv) seedMailbox(t *testing.T, policy assigndomain.Policy, memberIDs ...uint) *helpdomain.Mailbox {
	t.Helper()
	mailbox := &helpdomain.Mailbox{Name: "Support", Email: t.Name() + "@example.test", Settings: e.resolver.Marshal(policy)}
	require.NoError(t, e.db.Create(mailbox).Error)
	for _, id := range memberIDs {
		require.NoError(t, e.db.Create(&helpdomain.User{ID: id, Name: "Agent", Email: agentMail(id), Status: helpdomain.UserStatusActive}).Error)
		require.NoError(t, e.db.Exec("INSERT INTO mailbox_users (mailbox_id, user_id) VALUES (?, ?)", mailbox.ID, id).Error)
	}
	return mailbox
}

func agentMail(id uint) string {
	return "agent" + string(rune('a'+id%26)) + "@example.test"
}

func TestCreateCustomerConversationAssignsSynchronously(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	policy := assigndomain.DefaultPolicy()
	policy.Enabled = true
	policy.Users = []uint{2, 5}
	mailbox := env.seedMailbox(t, policy, 2, 5)

	unassigned := &helpdomain.Folder{MailboxID: mailbox.ID, Type: helpdomain.FolderTypeUnassigned}
	require.NoError(t, env.db.Create(unassigned).Error)

	conv, err := env.usecase.CreateCustomerConversation(ctx, CreateConversationInput{
		MailboxID:  mailbox.ID,
		CustomerID: 42,
		Subject:    "Printer on fire",
		Tags:       []string{"hardware"},
	})
	require.NoError(t, err)
	require.NotNil(t, conv)

	assert.Equal(t, 1, conv.Number)
	require.True(t, conv.Assigned(), "assignment runs synchronously on creation")
	assert.Equal(t, uint(2), *conv.UserID)
}

func TestCreateCustomerConversationUnknownMailbox(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.usecase.CreateCustomerConversation(context.Background(), CreateConversationInput{MailboxID: 999})
	assert.ErrorIs(t, err, ErrMailboxNotFound)
}

func TestCreateCustomerConversationDefersWhenConfigured(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	policy := assigndomain.DefaultPolicy()
	policy.Enabled = true
	policy.Users = []uint{2}
	policy.DeferEnabled = true
	mailbox := env.seedMailbox(t, policy, 2)

	conv, err := env.usecase.CreateCustomerConversation(ctx, CreateConversationInput{
		MailboxID:  mailbox.ID,
		CustomerID: 42,
		Subject:    "Later please",
	})
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.False(t, conv.Assigned())

	row, err := env.pending.FindByConversationID(conv.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, assigndomain.PendingStatusPending, row.Status)
}

func TestCreateCustomerConversationDisabledMailbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mailbox := env.seedMailbox(t, assigndomain.DefaultPolicy())

	conv, err := env.usecase.CreateCustomerConversation(ctx, CreateConversationInput{
		MailboxID:  mailbox.ID,
		CustomerID: 42,
		Subject:    "Hello",
	})
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.False(t, conv.Assigned(), "distribution off leaves the conversation untouched")
}
