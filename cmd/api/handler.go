package api

import (
	assignDelivery "distributor-backend/internal/assignment/delivery"
	helpDelivery "distributor-backend/internal/helpdesk/delivery"
	"distributor-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// Handler bundles the HTTP layer of the service.
type Handler struct {
	engine *gin.Engine
}

// NewHandler creates the gin engine and registers all routes.
func NewHandler(
	conversationHandler *helpDelivery.ConversationHandler,
	assignmentHandler *assignDelivery.AssignmentHandler,
	cfg *config.Config,
) *Handler {
	engine := gin.Default()
	SetupRoutes(engine, conversationHandler, assignmentHandler, cfg)
	return &Handler{engine: engine}
}

// Start runs the HTTP server
func (h *Handler) Start(addr string) error {
	return h.engine.Run(addr)
}
