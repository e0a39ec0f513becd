package delivery

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	assigndomain "distributor-backend/internal/assignment/domain"
	assignrepo "distributor-backend/internal/assignment/repository"
	"distributor-backend/internal/assignment/usecase"

	"github.com/gin-gonic/gin"
)

// AssignmentHandler exposes the distributor's operational and settings
// endpoints.
type AssignmentHandler struct {
	processor *usecase.PendingProcessor
	settings  *usecase.SettingsService
	audits    assignrepo.AuditRepository
	pending   assignrepo.PendingRepository
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(
	processor *usecase.PendingProcessor,
	settings *usecase.SettingsService,
	audits assignrepo.AuditRepository,
	pending assignrepo.PendingRepository,
) *AssignmentHandler {
	return &AssignmentHandler{
		processor: processor,
		settings:  settings,
		audits:    audits,
		pending:   pending,
	}
}

// ProcessPendingRequest is the manual drain trigger payload.
type ProcessPendingRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=500"`
}

// ProcessPending drains due deferred assignments on demand.
// POST /api/assignments/process
func (h *AssignmentHandler) ProcessPending(c *gin.Context) {
	// An empty body means "use the default limit".
	var req ProcessPendingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = usecase.ProcessLimitDefault
	}

	examined, err := h.processor.ProcessDue(c.Request.Context(), req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"examined": examined})
}

// GetSettings returns the resolved assignment policy of a mailbox.
// GET /api/mailboxes/:id/assignment-settings
func (h *AssignmentHandler) GetSettings(c *gin.Context) {
	mailboxID, ok := pathID(c)
	if !ok {
		return
	}

	policy, err := h.settings.Get(mailboxID)
	if err != nil {
		if errors.Is(err, usecase.ErrMailboxNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, policy)
}

// UpdateSettingsRequest carries the editable policy fields. Omitted numeric
// fields keep their defaults.
type UpdateSettingsRequest struct {
	Enabled                 bool     `json:"enabled"`
	Mode                    string   `json:"mode" binding:"omitempty,oneof=round_robin least_open"`
	Users                   []uint   `json:"users"`
	DeferEnabled            bool     `json:"defer_enabled"`
	DeferMinutes            int      `json:"defer_minutes" binding:"omitempty,min=1,max=60"`
	WebFallback             bool     `json:"web_fallback"`
	StickyEnabled           bool     `json:"sticky_enabled"`
	StickyDays              int      `json:"sticky_days" binding:"omitempty,min=1,max=365"`
	ExcludeTags             []string `json:"exclude_tags"`
	FallbackUserID          uint     `json:"fallback_user_id"`
	OverrideDefaultAssignee *bool    `json:"override_default_assignee"`
	AuditEnabled            bool     `json:"audit_enabled"`
}

// UpdateSettings validates and persists a mailbox's assignment policy.
// PUT /api/mailboxes/:id/assignment-settings
func (h *AssignmentHandler) UpdateSettings(c *gin.Context) {
	mailboxID, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	defaults := assigndomain.DefaultPolicy()
	policy := assigndomain.Policy{
		Enabled:                 req.Enabled,
		Mode:                    assigndomain.Mode(req.Mode),
		Users:                   req.Users,
		DeferEnabled:            req.DeferEnabled,
		DeferMinutes:            defaults.DeferMinutes,
		WebFallback:             req.WebFallback,
		StickyEnabled:           req.StickyEnabled,
		StickyDays:              defaults.StickyDays,
		ExcludeTags:             req.ExcludeTags,
		FallbackUserID:          req.FallbackUserID,
		OverrideDefaultAssignee: defaults.OverrideDefaultAssignee,
		AuditEnabled:            req.AuditEnabled,
	}
	if req.DeferMinutes != 0 {
		policy.DeferMinutes = req.DeferMinutes
	}
	if req.StickyDays != 0 {
		policy.StickyDays = req.StickyDays
	}
	if req.OverrideDefaultAssignee != nil {
		policy.OverrideDefaultAssignee = *req.OverrideDefaultAssignee
	}

	saved, err := h.settings.Update(mailboxID, policy)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrMailboxNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrEmptyPool):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, saved)
}

// ListAudit returns the newest audit records for a mailbox.
// GET /api/mailboxes/:id/assignment-audit
func (h *AssignmentHandler) ListAudit(c *gin.Context) {
	mailboxID, ok := pathID(c)
	if !ok {
		return
	}
	limit := queryLimit(c, 50, assigndomain.AuditKeepPerMailbox)

	records, err := h.audits.ListByMailbox(mailboxID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// ListPending returns queued deferred assignments for a mailbox.
// GET /api/mailboxes/:id/pending-assignments
func (h *AssignmentHandler) ListPending(c *gin.Context) {
	mailboxID, ok := pathID(c)
	if !ok {
		return
	}
	limit := queryLimit(c, 50, usecase.ProcessLimitMax)

	rows, err := h.pending.ListByMailbox(mailboxID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": rows})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mailbox id"})
		return 0, false
	}
	return uint(id), true
}

func queryLimit(c *gin.Context, def, max int) int {
	limit := def
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
