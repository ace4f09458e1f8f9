package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/pkg/sharetoken"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type SharesHandler struct {
	DB       *gorm.DB
	Roles    *services.RoleService
	Approval *services.ApprovalService
	Audit    *services.AuditService
}

func NewSharesHandler(db *gorm.DB, roles *services.RoleService, approval *services.ApprovalService, audit *services.AuditService) *SharesHandler {
	return &SharesHandler{DB: db, Roles: roles, Approval: approval, Audit: audit}
}

// Create enables the client portal for a release. Re-enabling a revoked
// share mints a fresh token so old links stay dead.
func (h *SharesHandler) Create(c *fiber.Ctx) error {
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
	if !services.CanManageMembers(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var share models.PortalShare
	err = h.DB.First(&share, "release_id = ?", releaseID).Error
	switch {
	case err == nil && !share.Revoked:
		return utils.Success(c, fiber.StatusOK, share)
	case err == nil && share.Revoked:
		token, tokenErr := sharetoken.New()
		if tokenErr != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
		}
		if err := h.DB.Model(&share).Updates(map[string]interface{}{
			"token":   token,
			"revoked": false,
		}).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed re-enabling share")
		}
		share.Token = token
		share.Revoked = false
	case errors.Is(err, gorm.ErrRecordNotFound):
		token, tokenErr := sharetoken.New()
		if tokenErr != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
		}
		share = models.PortalShare{
			ReleaseID: releaseID,
			Token:     token,
			Status:    models.PortalStatusInReview,
		}
		if err := h.DB.Create(&share).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating share")
		}
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading share")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "share.enable",
		ResourceType: "portal_share",
		ResourceID:   &share.ID,
		Details:      map[string]interface{}{"release_id": releaseID.String()},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, share)
}

func (h *SharesHandler) Get(c *fiber.Ctx) error {
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

	var share models.PortalShare
	if err := h.DB.
		Preload("TrackSettings").
		Preload("VersionSettings").
		First(&share, "release_id = ?", releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no portal share for release")
	}

	return utils.Success(c, fiber.StatusOK, share)
}

type updateShareRequest struct {
	ShowDirection             *bool `json:"showDirection"`
	ShowSpecs                 *bool `json:"showSpecs"`
	ShowReferences            *bool `json:"showReferences"`
	ShowPaymentStatus         *bool `json:"showPaymentStatus"`
	ShowDistribution          *bool `json:"showDistribution"`
	RequirePaymentForDownload *bool `json:"requirePaymentForDownload"`
}

// Update flips facet toggles. Only fields present in the body change.
func (h *SharesHandler) Update(c *fiber.Ctx) error {
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
	if !services.CanManageMembers(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var share models.PortalShare
	if err := h.DB.First(&share, "release_id = ?", releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no portal share for release")
	}

	var req updateShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.ShowDirection != nil {
		updates["show_direction"] = *req.ShowDirection
	}
	if req.ShowSpecs != nil {
		updates["show_specs"] = *req.ShowSpecs
	}
	if req.ShowReferences != nil {
		updates["show_references"] = *req.ShowReferences
	}
	if req.ShowPaymentStatus != nil {
		updates["show_payment_status"] = *req.ShowPaymentStatus
	}
	if req.ShowDistribution != nil {
		updates["show_distribution"] = *req.ShowDistribution
	}
	if req.RequirePaymentForDownload != nil {
		updates["require_payment_for_download"] = *req.RequirePaymentForDownload
	}
	if len(updates) == 0 {
		return utils.Success(c, fiber.StatusOK, share)
	}

	if err := h.DB.Model(&share).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating share")
	}
	if err := h.DB.First(&share, "id = ?", share.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reloading share")
	}

	return utils.Success(c, fiber.StatusOK, share)
}

func (h *SharesHandler) Revoke(c *fiber.Ctx) error {
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
	if !services.CanManageMembers(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var share models.PortalShare
	if err := h.DB.First(&share, "release_id = ?", releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no portal share for release")
	}

	if err := h.DB.Model(&share).Update("revoked", true).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed revoking share")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "share.revoke",
		ResourceType: "portal_share",
		ResourceID:   &share.ID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "share revoked"})
}

type trackSettingRequest struct {
	Visible         *bool `json:"visible"`
	DownloadEnabled *bool `json:"downloadEnabled"`
}

// UpsertTrackSetting creates or updates the per-track portal row. Tracks
// without a row stay hidden, so the first toggle creates it.
func (h *SharesHandler) UpsertTrackSetting(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}
	trackID, err := parseUUID(c.Params("trackId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid track id")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.CanEditRelease(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var share models.PortalShare
	if err := h.DB.First(&share, "release_id = ?", releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no portal share for release")
	}

	var track models.Track
	if err := h.DB.First(&track, "id = ? AND release_id = ?", trackID, releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "track not found")
	}

	var req trackSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var setting models.PortalTrackSetting
	err = h.DB.First(&setting, "share_id = ? AND track_id = ?", share.ID, trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.PortalTrackSetting{
			ShareID:        share.ID,
			TrackID:        trackID,
			ApprovalStatus: models.ApprovalAwaitingReview,
		}
		if req.Visible != nil {
			setting.Visible = *req.Visible
		}
		if req.DownloadEnabled != nil {
			setting.DownloadEnabled = *req.DownloadEnabled
		}
		if err := h.DB.Create(&setting).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating track setting")
		}
		return utils.Success(c, fiber.StatusCreated, setting)
	} else if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading track setting")
	}

	updates := map[string]interface{}{}
	if req.Visible != nil {
		updates["visible"] = *req.Visible
	}
	if req.DownloadEnabled != nil {
		updates["download_enabled"] = *req.DownloadEnabled
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&setting).Updates(updates).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed updating track setting")
		}
		if err := h.DB.First(&setting, "id = ?", setting.ID).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed reloading track setting")
		}
	}

	return utils.Success(c, fiber.StatusOK, setting)
}

type versionSettingRequest struct {
	Visible bool `json:"visible"`
}

func (h *SharesHandler) UpsertVersionSetting(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}
	versionID, err := parseUUID(c.Params("versionId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid version id")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.CanEditRelease(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var share models.PortalShare
	if err := h.DB.First(&share, "release_id = ?", releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no portal share for release")
	}

	var version models.AudioVersion
	if err := h.DB.
		Joins("JOIN tracks ON tracks.id = audio_versions.track_id").
		Where("audio_versions.id = ? AND tracks.release_id = ?", versionID, releaseID).
		First(&version).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "version not found")
	}

	var req versionSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var setting models.PortalVersionSetting
	err = h.DB.First(&setting, "share_id = ? AND version_id = ?", share.ID, versionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.PortalVersionSetting{
			ShareID:   share.ID,
			VersionID: versionID,
			Visible:   req.Visible,
		}
		if err := h.DB.Create(&setting).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating version setting")
		}
		return utils.Success(c, fiber.StatusCreated, setting)
	} else if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading version setting")
	}

	if err := h.DB.Model(&setting).Update("visible", req.Visible).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating version setting")
	}
	setting.Visible = req.Visible

	return utils.Success(c, fiber.StatusOK, setting)
}

// DeliverTrack is the editor-only approved -> delivered transition.
func (h *SharesHandler) DeliverTrack(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}
	trackID, err := parseUUID(c.Params("trackId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid track id")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.CanEditRelease(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var share models.PortalShare
	if err := h.DB.First(&share, "release_id = ?", releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no portal share for release")
	}

	setting, err := h.Approval.Transition(c.Context(), share.ID, trackID, models.ApprovalDelivered, services.ActorEditor, "")
	if err != nil {
		return serviceError(c, err, "failed delivering track")
	}

	var track models.Track
	h.DB.Select("title").First(&track, "id = ?", trackID)
	var release models.Release
	h.DB.Select("owner_id").First(&release, "id = ?", releaseID)

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "track.deliver",
		ResourceType: "track",
		ResourceID:   &trackID,
		Details: map[string]interface{}{
			"release_id":  releaseID.String(),
			"owner_id":    release.OwnerID.String(),
			"track_title": track.Title,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, setting)
}
