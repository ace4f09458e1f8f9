package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/trackroom/backend/internal/database"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/internal/mutation"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/pkg/logger"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	retries *RetryStore
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	auditService := services.NewAuditService(db, nil)
	roleService := services.NewRoleService(db)
	portalService := services.NewPortalService(db)
	approvalService := services.NewApprovalService(db, portalService)

	retryStore := NewRetryStore()
	writeStore := mutation.NewGormStore(db)
	writers := mutation.NewRegistry(func(userID uuid.UUID) *mutation.Writer {
		notifier := &NotificationNotifier{DB: db, UserID: userID, Retries: retryStore}
		return mutation.NewWriter(writeStore, notifier, 10*time.Millisecond)
	})
	t.Cleanup(writers.CloseAll)

	authHandler := NewAuthHandler(db, auditService)
	usersHandler := NewUsersHandler(db)
	releasesHandler := NewReleasesHandler(db, roleService, nil, auditService)
	membersHandler := NewMembersHandler(db, roleService, auditService)
	tracksHandler := NewTracksHandler(db, roleService, nil, auditService)
	sharesHandler := NewSharesHandler(db, roleService, approvalService, auditService)
	portalHandler := NewPortalHandler(db, portalService, approvalService, nil, auditService)
	editsHandler := NewEditsHandler(db, roleService, writers)
	notificationsHandler := NewNotificationsHandler(db, retryStore)
	auditHandler := NewAuditHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:3001"))
	app.Use(middleware.RequestLogger())

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
	releaseRoutes.Post("/:id/edits", editsHandler.Submit)

	releaseRoutes.Post("/:id/members", membersHandler.Invite)
	releaseRoutes.Get("/:id/members", membersHandler.List)
	releaseRoutes.Post("/:id/members/accept", membersHandler.Accept)
	releaseRoutes.Delete("/:id/members/:memberId", membersHandler.Remove)

	releaseRoutes.Post("/:id/tracks", tracksHandler.Create)
	releaseRoutes.Delete("/:id/tracks/:trackId", tracksHandler.Delete)

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

	return &testEnv{app: app, db: db, retries: retryStore}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in envelope, got %+v", body)
	}
	return data
}

// waitForCondition polls until fn passes or the deadline hits. Used where a
// background goroutine (audit queue, write coalescer) finishes the work.
func waitForCondition(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
