package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
)

const adminPageSize = 10

// AdminHandler serves /api/admin. Every route sits behind AdminOnly.
type AdminHandler struct {
	Users    *services.UserService
	Groups   *services.GroupService
	Events   *services.EventService
	Settler  *services.Settler
	TestData *services.TestDataGenerator
}

func NewAdminHandler(users *services.UserService, groups *services.GroupService, events *services.EventService, settler *services.Settler, testData *services.TestDataGenerator) *AdminHandler {
	return &AdminHandler{Users: users, Groups: groups, Events: events, Settler: settler, TestData: testData}
}

type adminCreateUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Bio      string          `json:"bio"`
	Role     models.UserRole `json:"role"`
	IsAdmin  bool            `json:"isAdmin"`
	IsActive *bool           `json:"isActive"`
}

type adminUpdateUserRequest struct {
	Name     *string          `json:"name"`
	Email    *string          `json:"email"`
	Bio      *string          `json:"bio"`
	Role     *models.UserRole `json:"role"`
	IsAdmin  *bool            `json:"isAdmin"`
	IsActive *bool            `json:"isActive"`
}

// role resolves the explicit role, falling back to the isAdmin flag older
// clients send.
func (r adminUpdateUserRequest) role() *models.UserRole {
	if r.Role != nil {
		return r.Role
	}
	if r.IsAdmin == nil {
		return nil
	}
	role := models.UserRoleUser
	if *r.IsAdmin {
		role = models.UserRoleAdmin
	}
	return &role
}

type bulkDeleteRequest struct {
	UserIDs []string `json:"userIds"`
}

type adminCreateGroupRequest struct {
	createGroupRequest
	AdminID string `json:"adminId"`
}

type adminUpdateGroupRequest struct {
	updateGroupRequest
	IsActive *bool `json:"isActive"`
}

type adminCreateEventRequest struct {
	createEventRequest
	OrganizerID string `json:"organizerId"`
}

type generateTestDataRequest struct {
	UserCount  *int `json:"userCount"`
	GroupCount *int `json:"groupCount"`
	EventCount *int `json:"eventCount"`
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.Users.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err, "admin_stats_failed")
	}
	return utils.Success(c, fiber.StatusOK, stats)
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c, adminPageSize)

	users, total, err := h.Users.List(c.UserContext(), c.Query("search"), pagination)
	if err != nil {
		return respondError(c, err, "admin_users_list_failed")
	}
	return utils.Paginated(c, users, pagination.Page, pagination.Limit, total)
}

func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	user, err := h.Users.Get(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "admin_user_get_failed")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req adminCreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	role := req.Role
	if role == "" && req.IsAdmin {
		role = models.UserRoleAdmin
	}

	user, err := h.Users.AdminCreate(c.UserContext(), currentUser.ID, services.CreateUserInput{
		RegisterInput: services.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Bio:      req.Bio,
		},
		Role:     role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return respondError(c, err, "admin_user_create_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "admin_user_created", map[string]interface{}{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
	})

	return utils.SuccessMessage(c, fiber.StatusCreated, "user created", user)
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req adminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Users.Update(c.UserContext(), currentUser.ID, userID, services.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Bio:      req.Bio,
		Role:     req.role(),
		IsActive: req.IsActive,
	})
	if err != nil {
		return respondError(c, err, "admin_user_update_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "user updated", user)
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.Users.Delete(c.UserContext(), currentUser.ID, userID); err != nil {
		return respondError(c, err, "admin_user_delete_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "user deleted", nil)
}

func (h *AdminHandler) BulkDeleteUsers(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req bulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	userIDs, err := parseUUIDs(req.UserIDs)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user IDs")
	}

	deleted, err := h.Users.BulkDelete(c.UserContext(), currentUser.ID, userIDs)
	if err != nil {
		return respondError(c, err, "admin_users_bulk_delete_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "admin_users_bulk_deleted", map[string]interface{}{
		"requested": len(userIDs),
		"deleted":   deleted,
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "users deleted", fiber.Map{"deletedCount": deleted})
}

func (h *AdminHandler) ListGroups(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c, adminPageSize)

	groups, total, err := h.Groups.AdminList(c.UserContext(), c.Query("search"), pagination)
	if err != nil {
		return respondError(c, err, "admin_groups_list_failed")
	}
	return utils.Paginated(c, groups, pagination.Page, pagination.Limit, total)
}

func (h *AdminHandler) CreateGroup(c *fiber.Ctx) error {
	var req adminCreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	adminID, err := parseUUID(req.AdminID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid admin id")
	}

	group, err := h.Groups.Create(c.UserContext(), adminID, services.CreateGroupInput{
		Name:            req.Name,
		Description:     req.Description,
		IsPrivate:       req.IsPrivate,
		RequireApproval: req.RequireApproval,
		MaxMembers:      req.MaxMembers,
	})
	if err != nil {
		return respondError(c, err, "admin_group_create_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusCreated, "group created", group)
}

func (h *AdminHandler) UpdateGroup(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var req adminUpdateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	in := req.input()
	in.IsActive = req.IsActive

	group, err := h.Groups.AdminUpdate(c.UserContext(), groupID, currentUser.ID, in)
	if err != nil {
		return respondError(c, err, "admin_group_update_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "group updated", group)
}

func (h *AdminHandler) DeleteGroup(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	if err := h.Groups.Delete(c.UserContext(), groupID, currentUser.ID); err != nil {
		return respondError(c, err, "admin_group_delete_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "admin_group_deleted", map[string]interface{}{
		"group_id": groupID.String(),
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "group deleted", nil)
}

func (h *AdminHandler) ListEvents(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c, adminPageSize)

	events, total, err := h.Events.AdminList(c.UserContext(), c.Query("search"), pagination)
	if err != nil {
		return respondError(c, err, "admin_events_list_failed")
	}
	return utils.Paginated(c, events, pagination.Page, pagination.Limit, total)
}

func (h *AdminHandler) CreateEvent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req adminCreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	organizerID, err := parseUUID(req.OrganizerID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid organizer id")
	}
	in, msg := req.input()
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	event, err := h.Events.AdminCreate(c.UserContext(), currentUser.ID, organizerID, in)
	if err != nil {
		return respondError(c, err, "admin_event_create_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusCreated, "event created", event)
}

func (h *AdminHandler) UpdateEvent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	var req updateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.Events.AdminUpdate(c.UserContext(), eventID, currentUser.ID, req.input())
	if err != nil {
		return respondError(c, err, "admin_event_update_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "event updated", event)
}

func (h *AdminHandler) DeleteEvent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	if err := h.Events.AdminDelete(c.UserContext(), eventID, currentUser.ID); err != nil {
		return respondError(c, err, "admin_event_delete_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "event deleted", nil)
}

func (h *AdminHandler) GenerateTestData(c *fiber.Ctx) error {
	var req generateTestDataRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	in := services.DefaultTestDataInput()
	if req.UserCount != nil {
		in.UserCount = *req.UserCount
	}
	if req.GroupCount != nil {
		in.GroupCount = *req.GroupCount
	}
	if req.EventCount != nil {
		in.EventCount = *req.EventCount
	}

	result, err := h.TestData.Generate(c.UserContext(), in)
	if err != nil {
		return respondError(c, err, "admin_test_data_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "test data generated", result)
}

func (h *AdminHandler) SettleScores(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	results, err := h.Settler.SettleDue(c.UserContext())
	if err != nil {
		return respondError(c, err, "admin_settle_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "admin_scores_settled", map[string]interface{}{
		"events": len(results),
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "scores settled", fiber.Map{"settled": results, "count": len(results)})
}
