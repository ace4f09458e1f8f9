package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/trackroom/backend/internal/middleware"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB *gorm.DB
}

func NewUsersHandler(db *gorm.DB) *UsersHandler {
	return &UsersHandler{DB: db}
}

// Search finds users by email or name for the invite flow.
func (h *UsersHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	query := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if len(query) < 3 {
		return utils.Error(c, fiber.StatusBadRequest, "query must be at least 3 characters")
	}

	pattern := "%" + query + "%"
	var users []models.User
	if err := h.DB.
		Where("email LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", pattern, pattern, pattern).
		Order("email ASC").
		Limit(10).
		Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed searching users")
	}

	return utils.Success(c, fiber.StatusOK, users)
}
