package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type MembersHandler struct {
	DB    *gorm.DB
	Roles *services.RoleService
	Audit *services.AuditService
}

func NewMembersHandler(db *gorm.DB, roles *services.RoleService, audit *services.AuditService) *MembersHandler {
	return &MembersHandler{DB: db, Roles: roles, Audit: audit}
}

type inviteMemberRequest struct {
	Email string            `json:"email"`
	Role  models.MemberRole `json:"role"`
}

func (h *MembersHandler) Invite(c *fiber.Ctx) error {
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

	var req inviteMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Role.IsValid() {
		return utils.Error(c, fiber.StatusBadRequest, "role must be collaborator or client")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var invitee models.User
	if err := h.DB.First(&invitee, "email = ?", email).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no user with that email")
	}
	if invitee.ID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot invite yourself")
	}

	var existing int64
	h.DB.Model(&models.ReleaseMember{}).
		Where("release_id = ? AND user_id = ?", releaseID, invitee.ID).
		Count(&existing)
	if existing > 0 {
		return utils.Error(c, fiber.StatusConflict, "user is already a member")
	}

	member := models.ReleaseMember{
		ReleaseID:   releaseID,
		UserID:      invitee.ID,
		Role:        req.Role,
		InvitedByID: currentUser.ID,
	}
	if err := h.DB.Create(&member).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating invitation")
	}

	var release models.Release
	h.DB.Select("title").First(&release, "id = ?", releaseID)

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "member.invite",
		ResourceType: "release",
		ResourceID:   &releaseID,
		Details: map[string]interface{}{
			"target_user_id": invitee.ID.String(),
			"role":           string(req.Role),
			"release_title":  release.Title,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, member)
}

// Accept turns a pending invitation into an active membership. Until this
// runs the invitee resolves to no role at all on the release.
func (h *MembersHandler) Accept(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}

	var member models.ReleaseMember
	if err := h.DB.First(&member, "release_id = ? AND user_id = ?", releaseID, currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no invitation found")
	}
	if member.IsAccepted() {
		return utils.Error(c, fiber.StatusConflict, "invitation already accepted")
	}

	now := time.Now()
	if err := h.DB.Model(&member).Update("accepted_at", now).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed accepting invitation")
	}
	member.AcceptedAt = &now

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "member.accept",
		ResourceType: "release",
		ResourceID:   &releaseID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, member)
}

func (h *MembersHandler) List(c *fiber.Ctx) error {
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

	var members []models.ReleaseMember
	if err := h.DB.Preload("User").
		Where("release_id = ?", releaseID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing members")
	}

	return utils.Success(c, fiber.StatusOK, members)
}

func (h *MembersHandler) Remove(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}
	memberID, err := parseUUID(c.Params("memberId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid member id")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.CanManageMembers(role) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var member models.ReleaseMember
	if err := h.DB.First(&member, "id = ? AND release_id = ?", memberID, releaseID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "member not found")
	}

	if err := h.DB.Delete(&member).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed removing member")
	}

	var release models.Release
	h.DB.Select("title").First(&release, "id = ?", releaseID)

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		Action:       "member.remove",
		ResourceType: "release",
		ResourceID:   &releaseID,
		Details: map[string]interface{}{
			"target_user_id": member.UserID.String(),
			"release_title":  release.Title,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}
