package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
)

type AuthHandler struct {
	Users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{Users: users}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Users.Register(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Bio:      req.Bio,
	}, c.IP())
	if err != nil {
		return respondError(c, err, "register_failed")
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		return respondError(c, err, "token_generation_failed")
	}

	return utils.Success(c, fiber.StatusCreated, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Users.Authenticate(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return respondError(c, err, "login_failed")
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		return respondError(c, err, "token_generation_failed")
	}

	logger.InfoWithUser(user.ID.String(), "user_login", map[string]interface{}{
		"ip": c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Users.UpdateProfile(c.UserContext(), currentUser.ID, req.Name, req.Bio)
	if err != nil {
		return respondError(c, err, "profile_update_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "profile updated", user)
}
