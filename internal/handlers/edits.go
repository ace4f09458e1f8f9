package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/internal/mutation"
	"github.com/trackroom/backend/internal/services"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

// editableFields is the allowlist of inline-editable columns and the
// capability each one demands. payment_status is deliberately absent: only
// the billing integration writes it.
var editableFields = map[string]map[string]services.Capability{
	"releases": {
		"title":            services.CapEditRelease,
		"artist":           services.CapEditRelease,
		"format":           services.CapEditRelease,
		"status":           services.CapEditRelease,
		"global_direction": services.CapEditRelease,
		"specs":            services.CapEditRelease,
		"distribution":     services.CapEditRelease,
		"references":       services.CapEditCreative,
		"notes":            services.CapEditCreative,
		"fee_total":        services.CapEditPayment,
	},
	"tracks": {
		"title":    services.CapEditRelease,
		"position": services.CapEditRelease,
		"notes":    services.CapEditCreative,
	},
}

// EditsHandler routes inline field edits through the per-session write
// queue. The HTTP response only acknowledges acceptance; the outcome arrives
// later as a notification.
type EditsHandler struct {
	DB      *gorm.DB
	Roles   *services.RoleService
	Writers *mutation.Registry
}

func NewEditsHandler(db *gorm.DB, roles *services.RoleService, writers *mutation.Registry) *EditsHandler {
	return &EditsHandler{DB: db, Roles: roles, Writers: writers}
}

type editFieldRequest struct {
	Table    string      `json:"table"`
	TargetID uuid.UUID   `json:"targetID"`
	Field    string      `json:"field"`
	Value    interface{} `json:"value"`
}

func (h *EditsHandler) Submit(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid release id")
	}

	var req editFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	fields, ok := editableFields[req.Table]
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "unknown table")
	}
	capability, ok := fields[req.Field]
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "field is not editable")
	}

	role, err := h.Roles.ResolveRole(c.Context(), releaseID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed resolving role")
	}
	if !services.Can(role, capability) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	switch req.Table {
	case "releases":
		if req.TargetID != releaseID {
			return utils.Error(c, fiber.StatusBadRequest, "target does not match release")
		}
	case "tracks":
		var count int64
		h.DB.Model(&models.Track{}).
			Where("id = ? AND release_id = ?", req.TargetID, releaseID).
			Count(&count)
		if count == 0 {
			return utils.Error(c, fiber.StatusNotFound, "track not found")
		}
	}

	h.Writers.For(currentUser.ID).Submit(mutation.EntityRef{
		Table: req.Table,
		ID:    req.TargetID,
		Field: req.Field,
	}, req.Value)

	return utils.Success(c, fiber.StatusAccepted, fiber.Map{"queued": true})
}
