package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/internal/storage"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type TracksHandler struct {
	DB      *gorm.DB
	Roles   *services.RoleService
	Storage *storage.MinIOClient
	Audit   *services.AuditService
}

func NewTracksHandler(db *gorm.DB, roles *services.RoleService, storageClient *storage.MinIOClient, audit *services.AuditService) *TracksHandler {
	return &TracksHandler{DB: db, Roles: roles, Storage: storageClient, Audit: audit}
}

type createTrackRequest struct {
	Title    string `json:"title"`
	Position int    `json:"position"`
}

func (h *TracksHandler) Create(c *fiber.Ctx) error {
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

	var req createTrackRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}

	if req.Position == 0 {
		var maxPosition int
		h.DB.Model(&models.Track{}).
			Where("release_id = ?", releaseID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition)
		req.Position = maxPosition + 1
	}

	track := models.Track{
		ReleaseID: releaseID,
		Title:     req.Title,
		Position:  req.Position,
	}
	if err := h.DB.Create(&track).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating track")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "track.create",
		ResourceType: "track",
		ResourceID:   &track.ID,
		Details:      map[string]interface{}{"release_id": releaseID.String(), "title": track.Title},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, track)
}

func (h *TracksHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	trackID, err := parseUUID(c.Params("trackId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid track id")
	}

	var track models.Track
	if err := h.DB.First(&track, "id = ?", trackID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "track not found")
	}

	role, err := h.Roles.ResolveRole(c.Context(), track.ReleaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.CanEditRelease(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var versions []models.AudioVersion
	h.DB.Where("track_id = ?", trackID).Find(&versions)

	if err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&models.AudioVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", trackID).Delete(&models.PortalTrackSetting{}).Error; err != nil {
			return err
		}
		return tx.Delete(&track).Error
	}); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting track")
	}

	// Object cleanup happens after the DB commit. Orphaned objects are
	// harmless compared to DB rows pointing at deleted objects.
	for _, v := range versions {
		if v.ObjectPath != "" {
			_ = h.Storage.Delete(c.Context(), v.ObjectPath)
		}
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "track.delete",
		ResourceType: "track",
		ResourceID:   &trackID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "track deleted"})
}

func (h *TracksHandler) UploadVersion(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	trackID, err := parseUUID(c.Params("trackId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid track id")
	}

	var track models.Track
	if err := h.DB.First(&track, "id = ?", trackID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "track not found")
	}

	role, err := h.Roles.ResolveRole(c.Context(), track.ReleaseID, currentUser.ID)
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
	label := strings.TrimSpace(c.FormValue("label"))
	if label == "" {
		label = fileHeader.Filename
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading upload")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	version := models.AudioVersion{
		TrackID:     trackID,
		Label:       label,
		ContentType: contentType,
		Size:        fileHeader.Size,
	}
	version.ObjectPath = fmt.Sprintf("releases/%s/tracks/%s/%d-%s",
		track.ReleaseID, trackID, time.Now().UnixNano(), sanitizeObjectName(fileHeader.Filename))

	if err := h.Storage.Upload(c.Context(), version.ObjectPath, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "failed storing audio")
	}

	if err := h.DB.Create(&version).Error; err != nil {
		_ = h.Storage.Delete(c.Context(), version.ObjectPath)
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving version")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "version.upload",
		ResourceType: "audio_version",
		ResourceID:   &version.ID,
		Details:      map[string]interface{}{"track_id": trackID.String(), "label": label, "size": fileHeader.Size},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, version)
}

// DownloadURL hands an editor a presigned link for any version of a track
// they can see. Portal visitors go through the portal download gate instead.
func (h *TracksHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	versionID, err := parseUUID(c.Params("versionId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid version id")
	}

	var version models.AudioVersion
	if err := h.DB.First(&version, "id = ?", versionID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "version not found")
	}
	var track models.Track
	if err := h.DB.First(&track, "id = ?", version.TrackID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "track not found")
	}

	role, err := h.Roles.ResolveRole(c.Context(), track.ReleaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if role == models.RoleNone {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	disposition := fmt.Sprintf("attachment; filename=%q", version.Label)
	url, err := h.Storage.PresignedGetURL(c.Context(), version.ObjectPath, 15*time.Minute, version.ContentType, disposition)
	if err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "failed generating download link")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

func sanitizeObjectName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return strings.TrimSpace(name)
}
