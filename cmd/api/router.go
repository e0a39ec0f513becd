package api

import (
	"net/http"

	assignDelivery "distributor-backend/internal/assignment/delivery"
	authDelivery "distributor-backend/internal/auth/delivery"
	helpDelivery "distributor-backend/internal/helpdesk/delivery"
	"distributor-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, conversationHandler *helpDelivery.ConversationHandler, assignmentHandler *assignDelivery.AssignmentHandler, cfg *config.Config) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Conversation ingestion: called by the host on new customer
		// conversations, so it carries no operator auth.
		conversations := api.Group("/conversations")
		{
			conversations.POST("", conversationHandler.CreateConversation)
			conversations.GET("/:id", conversationHandler.GetConversation)
		}

		// Operational surface (protected)
		assignments := api.Group("/assignments")
		assignments.Use(authDelivery.AuthMiddleware(cfg.JWTSecret))
		{
			assignments.POST("/process", assignmentHandler.ProcessPending)
		}

		// Per-mailbox distributor configuration and diagnostics (protected)
		mailboxes := api.Group("/mailboxes")
		mailboxes.Use(authDelivery.AuthMiddleware(cfg.JWTSecret))
		{
			mailboxes.GET("/:id/assignment-settings", assignmentHandler.GetSettings)
			mailboxes.PUT("/:id/assignment-settings", assignmentHandler.UpdateSettings)
			mailboxes.GET("/:id/assignment-audit", assignmentHandler.ListAudit)
			mailboxes.GET("/:id/pending-assignments", assignmentHandler.ListPending)
		}
	}
}
