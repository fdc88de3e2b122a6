package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/pkg/utils"
)

type GroupsHandler struct {
	Groups *services.GroupService
	Events *services.EventService
}

func NewGroupsHandler(groups *services.GroupService, events *services.EventService) *GroupsHandler {
	return &GroupsHandler{Groups: groups, Events: events}
}

type createGroupRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsPrivate       bool   `json:"isPrivate"`
	RequireApproval bool   `json:"requireApproval"`
	MaxMembers      int    `json:"maxMembers"`
}

type updateGroupRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	IsPrivate       *bool   `json:"isPrivate"`
	RequireApproval *bool   `json:"requireApproval"`
	MaxMembers      *int    `json:"maxMembers"`
}

func (r updateGroupRequest) input() services.UpdateGroupInput {
	return services.UpdateGroupInput{
		Name:            r.Name,
		Description:     r.Description,
		IsPrivate:       r.IsPrivate,
		RequireApproval: r.RequireApproval,
		MaxMembers:      r.MaxMembers,
	}
}

type joinGroupRequest struct {
	InviteCode string `json:"inviteCode"`
}

func (h *GroupsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groups, err := h.Groups.ListForUser(c.UserContext(), currentUser.ID)
	if err != nil {
		return respondError(c, err, "groups_list_failed")
	}

	return utils.Success(c, fiber.StatusOK, groups)
}

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.Groups.Create(c.UserContext(), currentUser.ID, services.CreateGroupInput{
		Name:            req.Name,
		Description:     req.Description,
		IsPrivate:       req.IsPrivate,
		RequireApproval: req.RequireApproval,
		MaxMembers:      req.MaxMembers,
	})
	if err != nil {
		return respondError(c, err, "group_create_failed")
	}

	return utils.Success(c, fiber.StatusCreated, group)
}

func (h *GroupsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	group, err := h.Groups.Get(c.UserContext(), groupID, currentUser.ID)
	if err != nil {
		return respondError(c, err, "group_get_failed")
	}

	return utils.Success(c, fiber.StatusOK, group)
}

func (h *GroupsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var req updateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.Groups.Update(c.UserContext(), groupID, currentUser.ID, req.input())
	if err != nil {
		return respondError(c, err, "group_update_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "group updated", group)
}

func (h *GroupsHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req joinGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.Groups.Join(c.UserContext(), currentUser.ID, req.InviteCode)
	if err != nil {
		return respondError(c, err, "group_join_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "Successfully joined "+group.Name, group)
}

func (h *GroupsHandler) Leave(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	deleted, err := h.Groups.Leave(c.UserContext(), groupID, currentUser.ID)
	if err != nil {
		return respondError(c, err, "group_leave_failed")
	}

	if deleted {
		return utils.SuccessMessage(c, fiber.StatusOK, "left group; group deleted as no members remain", fiber.Map{"groupDeleted": true})
	}
	return utils.SuccessMessage(c, fiber.StatusOK, "left group", fiber.Map{"groupDeleted": false})
}

func (h *GroupsHandler) ListEvents(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	events, err := h.Events.ListForGroup(c.UserContext(), groupID, currentUser.ID)
	if err != nil {
		return respondError(c, err, "group_events_failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"events": events, "count": len(events)})
}
