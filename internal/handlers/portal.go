package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/internal/storage"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

// PortalHandler serves the unauthenticated client portal. The share token in
// the URL is the only credential; every request re-reads the share row so
// revocation and payment flips take effect immediately.
type PortalHandler struct {
	DB       *gorm.DB
	Portal   *services.PortalService
	Approval *services.ApprovalService
	Storage  *storage.MinIOClient
	Audit    *services.AuditService
}

func NewPortalHandler(db *gorm.DB, portal *services.PortalService, approval *services.ApprovalService, storageClient *storage.MinIOClient, audit *services.AuditService) *PortalHandler {
	return &PortalHandler{DB: db, Portal: portal, Approval: approval, Storage: storageClient, Audit: audit}
}

func (h *PortalHandler) View(c *fiber.Ctx) error {
	view, err := h.Portal.FetchView(c.Context(), c.Params("token"))
	if err != nil {
		return serviceError(c, err, "failed loading portal")
	}
	return utils.Success(c, fiber.StatusOK, view)
}

type portalFeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// RequestChanges moves a track to changes_requested with the visitor's notes.
func (h *PortalHandler) RequestChanges(c *fiber.Ctx) error {
	share, err := h.Portal.GetShareByToken(c.Context(), c.Params("token"))
	if err != nil {
		return serviceError(c, err, "failed loading portal")
	}

	trackID, err := parseUUID(c.Params("trackId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid track id")
	}

	var req portalFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Feedback = strings.TrimSpace(req.Feedback)
	if req.Feedback == "" {
		return utils.Error(c, fiber.StatusBadRequest, "feedback is required")
	}

	setting, err := h.Approval.Transition(c.Context(), share.ID, trackID,
		models.ApprovalChangesRequested, services.ActorPortalVisitor, req.Feedback)
	if err != nil {
		return serviceError(c, err, "failed requesting changes")
	}

	h.Audit.LogAsync(services.AuditEntry{
		Action:       "portal.request_changes",
		ResourceType: "track",
		ResourceID:   &trackID,
		Details:      map[string]interface{}{"share_id": share.ID.String()},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, setting)
}

func (h *PortalHandler) Approve(c *fiber.Ctx) error {
	share, err := h.Portal.GetShareByToken(c.Context(), c.Params("token"))
	if err != nil {
		return serviceError(c, err, "failed loading portal")
	}

	trackID, err := parseUUID(c.Params("trackId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid track id")
	}

	setting, err := h.Approval.Transition(c.Context(), share.ID, trackID,
		models.ApprovalApproved, services.ActorPortalVisitor, "")
	if err != nil {
		return serviceError(c, err, "failed approving track")
	}

	h.Audit.LogAsync(services.AuditEntry{
		Action:       "portal.approve",
		ResourceType: "track",
		ResourceID:   &trackID,
		Details:      map[string]interface{}{"share_id": share.ID.String()},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, setting)
}

// Download re-checks the full gate on every call, then hands out a short
// presigned link. A payment flip or a toggle change is honored immediately.
func (h *PortalHandler) Download(c *fiber.Ctx) error {
	share, err := h.Portal.GetShareByToken(c.Context(), c.Params("token"))
	if err != nil {
		return serviceError(c, err, "failed loading portal")
	}

	trackID, err := parseUUID(c.Params("trackId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid track id")
	}
	versionID, err := parseUUID(c.Params("versionId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid version id")
	}

	allowed, err := h.Portal.CanDownloadTrack(c.Context(), share, trackID)
	if err != nil {
		return serviceError(c, err, "failed checking download gate")
	}
	if !allowed {
		return utils.Error(c, fiber.StatusForbidden, "download not available")
	}

	var versionSetting models.PortalVersionSetting
	if err := h.DB.First(&versionSetting, "share_id = ? AND version_id = ?", share.ID, versionID).Error; err != nil || !versionSetting.Visible {
		return utils.Error(c, fiber.StatusNotFound, "version not available")
	}

	var version models.AudioVersion
	if err := h.DB.First(&version, "id = ? AND track_id = ?", versionID, trackID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "version not found")
	}

	disposition := fmt.Sprintf("attachment; filename=%q", version.Label)
	url, err := h.Storage.PresignedGetURL(c.Context(), version.ObjectPath, 15*time.Minute, version.ContentType, disposition)
	if err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "failed generating download link")
	}

	h.Audit.LogAsync(services.AuditEntry{
		Action:       "portal.download",
		ResourceType: "audio_version",
		ResourceID:   &versionID,
		Details:      map[string]interface{}{"share_id": share.ID.String()},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}
