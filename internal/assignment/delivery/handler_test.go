package delivery

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	assigndomain "distributor-backend/internal/assignment/domain"
	assignrepo "distributor-backend/internal/assignment/repository"
	"distributor-backend/internal/assignment/usecase"
	helpdomain "distributor-backend/internal/helpdesk/domain"
	helprepo "distributor-backend/internal/helpdesk/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	resolver := usecase.NewSettingsResolver(assigndomain.DefaultPolicy())
	sink := usecase.NewAuditSink(audits, log)
	assigner := usecase.NewAssigner(db, mailboxes, conversations, users, folders, pending, resolver, sink, log)
	processor := usecase.NewPendingProcessor(db, pending, conversations, assigner, log)
	settings := usecase.NewSettingsService(mailboxes, resolver, log)

	handler := NewAssignmentHandler(processor, settings, audits, pending)

	r := gin.New()
	r.POST("/api/assignments/process", handler.ProcessPending)
	return r
}

func processRequest(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/assignments/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProcessPendingAcceptsEmptyBody(t *testing.T) {
	r := newTestRouter(t)

	w := processRequest(t, r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"examined": 0}`, w.Body.String())
}

func TestProcessPendingValidatesLimit(t *testing.T) {
	r := newTestRouter(t)

	w := processRequest(t, r, `{"limit": 1000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = processRequest(t, r, `{"limit": -1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = processRequest(t, r, `{"limit": 5}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"examined": 0}`, w.Body.String())
}

func TestProcessPendingRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(t)

	w := processRequest(t, r, `{"limit": "ten"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
