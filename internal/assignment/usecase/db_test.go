package usecase

import (
	"testing"
	"time"

	assigndomain "distributor-backend/internal/assignment/domain"
	assignrepo "distributor-backend/internal/assignment/repository"
	helpdomain "distributor-backend/internal/helpdesk/domain"
	helprepo "distributor-backend/internal/helpdesk/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fixture bundles the engine with its repositories over one test database.
type fixture struct {
	db            *gorm.DB
	mailboxes     helprepo.MailboxRepository
	conversations helprepo.ConversationRepository
	users         helprepo.UserRepository
	folders       helprepo.FolderRepository
	pending       assignrepo.PendingRepository
	audits        assignrepo.AuditRepository
	resolver      *SettingsResolver
	sink          *AuditSink
	assigner      *Assigner
	processor     *PendingProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := testLogger()

	f := &fixture{
		db:            db,
		mailboxes:     helprepo.NewMailboxRepository(db),
		conversations: helprepo.NewConversationRepository(db),
		users:         helprepo.NewUserRepository(db),
		folders:       helprepo.NewFolderRepository(db),
		resolver:      NewSettingsResolver(assigndomain.DefaultPolicy()),
	}
	f.pending = assignrepo.NewPendingRepository(db)
	f.audits = assignrepo.NewAuditRepository(db)
	f.sink = NewAuditSink(f.audits, log)
	f.assigner = NewAssigner(db, f.mailboxes, f.conversations, f.users, f.folders, f.pending, f.resolver, f.sink, log)
	f.processor = NewPendingProcessor(db, f.pending, f.conversations, f.assigner, log)
	return f
}

func (f *fixture) createAgent(t *testing.T, id uint, status helpdomain.UserStatus) *helpdomain.User {
	t.Helper()
	user := &helpdomain.User{ID: id, Name: "Agent", Email: agentEmail(id), Status: status}
	require.NoError(t, f.users.Create(user))
	return user
}

func (f *fixture) createMailbox(t *testing.T, policy assigndomain.Policy, memberIDs ...uint) *helpdomain.Mailbox {
	t.Helper()
	mailbox := &helpdomain.Mailbox{Name: "Support", Email: mailboxEmail(t), Settings: f.resolver.Marshal(policy)}
	require.NoError(t, f.mailboxes.Create(mailbox))
	for _, id := range memberIDs {
		require.NoError(t, f.db.Exec("INSERT INTO mailbox_users (mailbox_id, user_id) VALUES (?, ?)", mailbox.ID, id).Error)
	}
	return mailbox
}

func (f *fixture) createConversation(t *testing.T, mailboxID uint, mutate ...func(*helpdomain.Conversation)) *helpdomain.Conversation {
	t.Helper()
	conv := &helpdomain.Conversation{
		MailboxID:  mailboxID,
		CustomerID: 1,
		Subject:    "Need help",
		Status:     helpdomain.ConversationStatusActive,
		CreatedAt:  time.Now(),
	}
	for _, m := range mutate {
		m(conv)
	}
	require.NoError(t, f.conversations.Create(conv))
	return conv
}

// assignedTo seeds an already-assigned open conversation, used to shape
// least-open counts and sticky history.
func (f *fixture) assignedTo(t *testing.T, mailboxID, userID uint, mutate ...func(*helpdomain.Conversation)) *helpdomain.Conversation {
	t.Helper()
	uid := userID
	return f.createConversation(t, mailboxID, append([]func(*helpdomain.Conversation){
		func(c *helpdomain.Conversation) { c.UserID = &uid },
	}, mutate...)...)
}

func (f *fixture) policy(t *testing.T, mailboxID uint) assigndomain.Policy {
	t.Helper()
	mailbox, err := f.mailboxes.FindByID(mailboxID)
	require.NoError(t, err)
	require.NotNil(t, mailbox)
	return f.resolver.Resolve(mailbox.Settings)
}

func (f *fixture) reload(t *testing.T, conversationID uint) *helpdomain.Conversation {
	t.Helper()
	conv, err := f.conversations.FindByID(conversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func agentEmail(id uint) string {
	return "agent" + string(rune('a'+id%26)) + "@example.test"
}

func mailboxEmail(t *testing.T) string {
	return t.Name() + "@example.test"
}

// enabledPolicy is the baseline policy used by most engine tests.
func enabledPolicy(users ...uint) assigndomain.Policy {
	p := assigndomain.DefaultPolicy()
	p.Enabled = true
	p.Users = users
	p.AuditEnabled = true
	return p
}
