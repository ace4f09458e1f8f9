package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type NotificationsHandler struct {
	DB      *gorm.DB
	Retries *RetryStore
}

func NewNotificationsHandler(db *gorm.DB, retries *RetryStore) *NotificationsHandler {
	return &NotificationsHandler{DB: db, Retries: retries}
}

func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)

	baseQuery := h.DB.Model(&models.Notification{}).Where("user_id = ?", currentUser.ID)
	if c.Query("unread") == "true" {
		baseQuery = baseQuery.Where("is_read = ?", false)
	}

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting notifications")
	}

	var notifications []models.Notification
	if err := utils.ApplyPagination(baseQuery.Order("created_at DESC"), p).Find(&notifications).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing notifications")
	}

	return utils.Paginated(c, notifications, p.Page, p.Limit, total)
}

func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var count int64
	if err := h.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Count(&count).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting notifications")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"count": count})
}

func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	notificationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid notification id")
	}

	result := h.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, currentUser.ID).
		Update("is_read", true)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating notification")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "notification not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "marked read"})
}

func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Update("is_read", true).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating notifications")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "all marked read"})
}

// Retry fires the stored closure for a failed field write. The closure
// resubmits the exact value that failed, bypassing the debounce window.
func (h *NotificationsHandler) Retry(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	notificationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid notification id")
	}

	var notification models.Notification
	if err := h.DB.First(&notification, "id = ? AND user_id = ?", notificationID, currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "notification not found")
	}

	retry, ok := h.Retries.Take(notificationID)
	if !ok {
		return utils.Error(c, fiber.StatusGone, "retry no longer available, redo the edit")
	}

	retry()

	h.DB.Model(&notification).Update("is_read", true)

	return utils.Success(c, fiber.StatusAccepted, fiber.Map{"queued": true})
}
