package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/pkg/utils"
)

type ScoresHandler struct {
	Scores *services.ScoreService
}

func NewScoresHandler(scores *services.ScoreService) *ScoresHandler {
	return &ScoresHandler{Scores: scores}
}

// groupQuery reports whether the groupId query parameter names a group.
// Clients send "null" for the overall score.
func groupQuery(c *fiber.Ctx) (string, bool) {
	value := strings.TrimSpace(c.Query("groupId"))
	if value == "" || value == "null" {
		return "", false
	}
	return value, true
}

func (h *ScoresHandler) UserScore(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	rawGroupID, ok := groupQuery(c)
	if !ok {
		overall, err := h.Scores.Overall(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err, "score_overall_failed")
		}
		return utils.Success(c, fiber.StatusOK, overall)
	}

	groupID, err := parseUUID(rawGroupID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	score, err := h.Scores.ForGroup(c.UserContext(), currentUser.ID, userID, groupID)
	if err != nil {
		return respondError(c, err, "score_group_failed")
	}
	return utils.Success(c, fiber.StatusOK, score)
}

func (h *ScoresHandler) Leaderboard(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	leaderboard, err := h.Scores.Leaderboard(c.UserContext(), groupID, currentUser.ID)
	if err != nil {
		return respondError(c, err, "leaderboard_failed")
	}

	return utils.Success(c, fiber.StatusOK, leaderboard)
}

func (h *ScoresHandler) History(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	rawGroupID, ok := groupQuery(c)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "groupId is required")
	}
	groupID, err := parseUUID(rawGroupID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	history, err := h.Scores.History(c.UserContext(), currentUser.ID, userID, groupID)
	if err != nil {
		return respondError(c, err, "score_history_failed")
	}

	return utils.Success(c, fiber.StatusOK, history)
}
