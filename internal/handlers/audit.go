package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuditHandler struct {
	DB *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{DB: db}
}

// List is admin-only; routed behind AdminOnly middleware.
func (h *AuditHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	baseQuery := h.DB.Model(&models.AuditLog{})
	if action := c.Query("action"); action != "" {
		baseQuery = baseQuery.Where("action = ?", action)
	}
	if userID := c.Query("userId"); userID != "" {
		id, err := parseUUID(userID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
		}
		baseQuery = baseQuery.Where("user_id = ?", id)
	}

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting audit logs")
	}

	var logs []models.AuditLog
	if err := utils.ApplyPagination(baseQuery.Order("created_at DESC"), p).Find(&logs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing audit logs")
	}

	return utils.Paginated(c, logs, p.Page, p.Limit, total)
}
