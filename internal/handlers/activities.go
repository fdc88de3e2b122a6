package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/utils"
	"gorm.io/gorm"
)

type ActivitiesHandler struct {
	DB *gorm.DB
}

func NewActivitiesHandler(db *gorm.DB) *ActivitiesHandler {
	return &ActivitiesHandler{DB: db}
}

func (h *ActivitiesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	pagination := utils.ParsePagination(c, 20)

	query := h.DB.WithContext(c.UserContext()).Model(&models.Activity{}).Where("user_id = ?", currentUser.ID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err, "activities_count_failed")
	}

	var activities []models.Activity
	if err := utils.ApplyPagination(query.Preload("Actor").Order("created_at DESC"), pagination).
		Find(&activities).Error; err != nil {
		return respondError(c, err, "activities_list_failed")
	}

	return utils.Paginated(c, activities, pagination.Page, pagination.Limit, total)
}

func (h *ActivitiesHandler) UnreadCount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var count int64
	if err := h.DB.WithContext(c.UserContext()).Model(&models.Activity{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Count(&count).Error; err != nil {
		return respondError(c, err, "activities_unread_count_failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"count": count})
}

func (h *ActivitiesHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	activityID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result := h.DB.WithContext(c.UserContext()).Model(&models.Activity{}).
		Where("id = ? AND user_id = ?", activityID, currentUser.ID).
		Update("is_read", true)
	if result.Error != nil {
		return respondError(c, result.Error, "activity_mark_read_failed")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "activity not found")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "activity marked as read", nil)
}

func (h *ActivitiesHandler) MarkAllRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result := h.DB.WithContext(c.UserContext()).Model(&models.Activity{}).
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return respondError(c, result.Error, "activities_mark_all_read_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "all activities marked as read", fiber.Map{"updated": result.RowsAffected})
}
