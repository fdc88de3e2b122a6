package handlers

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/utils"
	"gorm.io/gorm"
)

const maxAuditExportRows = 10000

type AuditHandler struct {
	DB *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{DB: db}
}

// ExportMyLog downloads the caller's own RSVP, check-in and membership trail.
func (h *AuditHandler) ExportMyLog(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format", "csv")))
	if format != "csv" && format != "json" {
		return utils.Error(c, fiber.StatusBadRequest, "format must be csv or json")
	}

	var logs []models.AuditLog
	if err := h.DB.WithContext(c.UserContext()).
		Where("user_id = ?", currentUser.ID).
		Order("created_at DESC").
		Limit(maxAuditExportRows).
		Find(&logs).Error; err != nil {
		return respondError(c, err, "audit_export_failed")
	}

	if format == "json" {
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "huddle-activity.json"))
		return utils.Success(c, fiber.StatusOK, logs)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "huddle-activity.csv"))

	writer := csv.NewWriter(c.Response().BodyWriter())
	_ = writer.Write([]string{"Timestamp", "Action", "Resource Type", "Resource ID", "Group ID", "IP Address", "Details"})

	for _, log := range logs {
		resourceID := ""
		if log.ResourceID != nil {
			resourceID = log.ResourceID.String()
		}
		groupID := ""
		if log.GroupID != nil {
			groupID = log.GroupID.String()
		}

		_ = writer.Write([]string{
			log.CreatedAt.UTC().Format(time.RFC3339),
			log.Action,
			log.ResourceType,
			resourceID,
			groupID,
			log.IPAddress,
			formatDetails(log.Details),
		})
	}

	writer.Flush()
	return writer.Error()
}

func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, "; ")
}
