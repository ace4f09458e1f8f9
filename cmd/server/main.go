package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/trackroom/backend/internal/config"
	"github.com/trackroom/backend/internal/database"
	"github.com/trackroom/backend/internal/handlers"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/mutation"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/internal/storage"
	"github.com/trackroom/backend/pkg/logger"
	"github.com/trackroom/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	auditService := services.NewAuditService(db, storageClient)
	auditService.StartExporter(cfg.Audit.ExportInterval)

	roleService := services.NewRoleService(db)
	portalService := services.NewPortalService(db)
	approvalService := services.NewApprovalService(db, portalService)

	retryStore := handlers.NewRetryStore()
	writeStore := mutation.NewGormStore(db)
	writers := mutation.NewRegistry(func(userID uuid.UUID) *mutation.Writer {
		notifier := &handlers.NotificationNotifier{DB: db, UserID: userID, Retries: retryStore}
		return mutation.NewWriter(writeStore, notifier, cfg.Mutation.DebounceWindow)
	})
	defer writers.CloseAll()

	authHandler := handlers.NewAuthHandler(db, auditService)
	usersHandler := handlers.NewUsersHandler(db)
	releasesHandler := handlers.NewReleasesHandler(db, roleService, storageClient, auditService)
	membersHandler := handlers.NewMembersHandler(db, roleService, auditService)
	tracksHandler := handlers.NewTracksHandler(db, roleService, storageClient, auditService)
	sharesHandler := handlers.NewSharesHandler(db, roleService, approvalService, auditService)
	portalHandler := handlers.NewPortalHandler(db, portalService, approvalService, storageClient, auditService)
	editsHandler := handlers.NewEditsHandler(db, roleService, writers)
	notificationsHandler := handlers.NewNotificationsHandler(db, retryStore)
	auditHandler := handlers.NewAuditHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 500 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Get("/users/search", authMiddleware.RequireAuth, usersHandler.Search)

	releaseRoutes := api.Group("/releases", authMiddleware.RequireAuth)
	releaseRoutes.Post("/", releasesHandler.Create)
	releaseRoutes.Get("/", releasesHandler.List)
	releaseRoutes.Get("/:id", releasesHandler.Get)
	releaseRoutes.Delete("/:id", releasesHandler.Delete)
	releaseRoutes.Post("/:id/cover", releasesHandler.UploadCoverArt)
	releaseRoutes.Post("/:id/edits", editsHandler.Submit)

	releaseRoutes.Post("/:id/members", membersHandler.Invite)
	releaseRoutes.Get("/:id/members", membersHandler.List)
	releaseRoutes.Post("/:id/members/accept", membersHandler.Accept)
	releaseRoutes.Delete("/:id/members/:memberId", membersHandler.Remove)

	releaseRoutes.Post("/:id/tracks", tracksHandler.Create)
	releaseRoutes.Delete("/:id/tracks/:trackId", tracksHandler.Delete)
	releaseRoutes.Post("/:id/tracks/:trackId/versions", tracksHandler.UploadVersion)
	releaseRoutes.Get("/:id/versions/:versionId/download-url", tracksHandler.DownloadURL)

	releaseRoutes.Post("/:id/share", sharesHandler.Create)
	releaseRoutes.Get("/:id/share", sharesHandler.Get)
	releaseRoutes.Put("/:id/share", sharesHandler.Update)
	releaseRoutes.Delete("/:id/share", sharesHandler.Revoke)
	releaseRoutes.Put("/:id/share/tracks/:trackId", sharesHandler.UpsertTrackSetting)
	releaseRoutes.Put("/:id/share/versions/:versionId", sharesHandler.UpsertVersionSetting)
	releaseRoutes.Post("/:id/share/tracks/:trackId/deliver", sharesHandler.DeliverTrack)

	portalRoutes := api.Group("/portal")
	portalRoutes.Get("/:token", portalHandler.View)
	portalRoutes.Post("/:token/tracks/:trackId/request-changes", portalHandler.RequestChanges)
	portalRoutes.Post("/:token/tracks/:trackId/approve", portalHandler.Approve)
	portalRoutes.Get("/:token/tracks/:trackId/versions/:versionId/download", portalHandler.Download)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationsHandler.List)
	notificationRoutes.Get("/unread-count", notificationsHandler.UnreadCount)
	notificationRoutes.Put("/read-all", notificationsHandler.MarkAllRead)
	notificationRoutes.Put("/:id/read", notificationsHandler.MarkRead)
	notificationRoutes.Post("/:id/retry", notificationsHandler.Retry)

	api.Get("/audit-logs", authMiddleware.RequireAuth, middleware.AdminOnly, auditHandler.List)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
