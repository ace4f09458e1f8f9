package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/internal/storage"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type ReleasesHandler struct {
	DB      *gorm.DB
	Roles   *services.RoleService
	Storage *storage.MinIOClient
	Audit   *services.AuditService
}

func NewReleasesHandler(db *gorm.DB, roles *services.RoleService, storageClient *storage.MinIOClient, audit *services.AuditService) *ReleasesHandler {
	return &ReleasesHandler{DB: db, Roles: roles, Storage: storageClient, Audit: audit}
}

type createReleaseRequest struct {
	Title  string               `json:"title"`
	Artist string               `json:"artist"`
	Format models.ReleaseFormat `json:"format"`
}

func (h *ReleasesHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}
	if req.Format == "" {
		req.Format = models.ReleaseFormatSingle
	}

	release := models.Release{
		Title:   req.Title,
		Artist:  strings.TrimSpace(req.Artist),
		Format:  req.Format,
		OwnerID: currentUser.ID,
	}
	if err := h.DB.Create(&release).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating release")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "release.create",
		ResourceType: "release",
		ResourceID:   &release.ID,
		Details:      map[string]interface{}{"title": release.Title},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, release)
}

func (h *ReleasesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)

	memberSubquery := h.DB.
		Table("release_members").
		Select("release_id").
		Where("user_id = ? AND accepted_at IS NOT NULL", currentUser.ID)

	baseQuery := h.DB.Model(&models.Release{}).
		Where("owner_id = ? OR id IN (?)", currentUser.ID, memberSubquery)

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting releases")
	}

	var releases []models.Release
	if err := utils.ApplyPagination(baseQuery.Order("created_at DESC"), p).Find(&releases).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing releases")
	}

	return utils.Paginated(c, releases, p.Page, p.Limit, total)
}

func (h *ReleasesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if role == models.RoleNone {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var release models.Release
	if err := h.DB.
		Preload("Tracks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Tracks.Versions").
		First(&release, "id = ?", releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading release")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"release": release, "role": role})
}

func (h *ReleasesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.CanDeleteRelease(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	if err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("release_id = ?", releaseID).Delete(&models.ReleaseMember{}).Error; err != nil {
			return err
		}
		var share models.PortalShare
		if err := tx.First(&share, "release_id = ?", releaseID).Error; err == nil {
			if err := tx.Where("share_id = ?", share.ID).Delete(&models.PortalTrackSetting{}).Error; err != nil {
				return err
			}
			if err := tx.Where("share_id = ?", share.ID).Delete(&models.PortalVersionSetting{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&share).Error; err != nil {
				return err
			}
		}
		trackSubquery := tx.Table("tracks").Select("id").Where("release_id = ?", releaseID)
		if err := tx.Where("track_id IN (?)", trackSubquery).Delete(&models.AudioVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("release_id = ?", releaseID).Delete(&models.Track{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Release{}, "id = ?", releaseID).Error
	}); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting release")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "release.delete",
		ResourceType: "release",
		ResourceID:   &releaseID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "release deleted"})
}

func (h *ReleasesHandler) UploadCoverArt(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.CanEditRelease(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading upload")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	objectPath := fmt.Sprintf("releases/%s/cover%s", releaseID, extensionFor(contentType))

	if err := h.Storage.Upload(c.Context(), objectPath, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "failed storing cover art")
	}

	if err := h.DB.Model(&models.Release{}).Where("id = ?", releaseID).
		Update("cover_art_path", objectPath).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving cover art path")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"coverArtPath": objectPath})
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
