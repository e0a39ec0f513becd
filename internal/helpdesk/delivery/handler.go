package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"distributor-backend/internal/helpdesk/usecase"

	"github.com/gin-gonic/gin"
)

// ConversationHandler exposes conversation ingestion and lookup.
type ConversationHandler struct {
	conversations usecase.ConversationUsecase
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(conversations usecase.ConversationUsecase) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// CreateConversationRequest is the new-customer-conversation event body.
type CreateConversationRequest struct {
	MailboxID  uint     `json:"mailbox_id" binding:"required"`
	CustomerID uint     `json:"customer_id"`
	Subject    string   `json:"subject"`
	Tags       []string `json:"tags"`
}

// CreateConversation ingests a customer conversation and routes it.
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversations.CreateCustomerConversation(c.Request.Context(), usecase.CreateConversationInput{
		MailboxID:  req.MailboxID,
		CustomerID: req.CustomerID,
		Subject:    req.Subject,
		Tags:       req.Tags,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrMailboxNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// GetConversation returns one conversation.
// GET /api/conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	conv, err := h.conversations.GetConversation(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, conv)
}
