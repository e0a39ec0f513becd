package main

import (
	api "distributor-backend/cmd/api"
	assignDelivery "distributor-backend/internal/assignment/delivery"
	assigndomain "distributor-backend/internal/assignment/domain"
	assignRepo "distributor-backend/internal/assignment/repository"
	"distributor-backend/internal/assignment/scheduler"
	assignUsecase "distributor-backend/internal/assignment/usecase"
	helpDelivery "distributor-backend/internal/helpdesk/delivery"
	helpdomain "distributor-backend/internal/helpdesk/domain"
	helpRepo "distributor-backend/internal/helpdesk/repository"
	helpUsecase "distributor-backend/internal/helpdesk/usecase"
	"distributor-backend/pkg/config"
	"distributor-backend/pkg/database"
	"distributor-backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&helpdomain.User{},
		&helpdomain.Mailbox{},
		&helpdomain.Folder{},
		&helpdomain.Tag{},
		&helpdomain.Conversation{},
		&assigndomain.PendingAssignment{},
		&assigndomain.AuditRecord{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Initialize repositories (dependency injection)
	mailboxRepo := helpRepo.NewMailboxRepository(db)
	conversationRepo := helpRepo.NewConversationRepository(db)
	userRepo := helpRepo.NewUserRepository(db)
	folderRepo := helpRepo.NewFolderRepository(db)
	pendingRepo := assignRepo.NewPendingRepository(db)
	auditRepo := assignRepo.NewAuditRepository(db)

	// Initialize the assignment engine
	resolver := assignUsecase.NewSettingsResolver(assigndomain.DefaultPolicy())
	sink := assignUsecase.NewAuditSink(auditRepo, log)
	assigner := assignUsecase.NewAssigner(db, mailboxRepo, conversationRepo, userRepo, folderRepo, pendingRepo, resolver, sink, log)
	processor := assignUsecase.NewPendingProcessor(db, pendingRepo, conversationRepo, assigner, log)
	settingsService := assignUsecase.NewSettingsService(mailboxRepo, resolver, log)

	conversationUsecase := helpUsecase.NewConversationUsecase(conversationRepo, mailboxRepo, folderRepo, resolver, assigner, processor, log)

	// Start the deferred assignment drain
	drain := scheduler.NewDrainScheduler(processor, cfg.DrainInterval, cfg.DrainLimit, log)
	drain.Start()
	defer drain.Stop()

	// Initialize HTTP handler
	conversationHandler := helpDelivery.NewConversationHandler(conversationUsecase)
	assignmentHandler := assignDelivery.NewAssignmentHandler(processor, settingsService, auditRepo, pendingRepo)
	handler := api.NewHandler(conversationHandler, assignmentHandler, cfg)

	// Start server
	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
