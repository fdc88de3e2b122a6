package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/pkg/utils"
)

type EventsHandler struct {
	Events *services.EventService
	Scores *services.ScoreService
}

func NewEventsHandler(events *services.EventService, scores *services.ScoreService) *EventsHandler {
	return &EventsHandler{Events: events, Scores: scores}
}

type createEventRequest struct {
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	DateTime        time.Time            `json:"dateTime"`
	Location        models.EventLocation `json:"location"`
	GroupID         string               `json:"groupId"`
	InvitedGroupIDs []string             `json:"invitedGroupIds"`
	MaxAttendees    *int                 `json:"maxAttendees"`
	Tags            []string             `json:"tags"`
	IsPublic        bool                 `json:"isPublic"`
}

// input converts the request body. A non-empty string is the message of a
// 400 response.
func (r createEventRequest) input() (services.CreateEventInput, string) {
	groupID, err := parseUUID(r.GroupID)
	if err != nil {
		return services.CreateEventInput{}, "invalid group id"
	}
	invited, err := parseUUIDs(r.InvitedGroupIDs)
	if err != nil {
		return services.CreateEventInput{}, "invalid invited group id"
	}
	if r.DateTime.IsZero() {
		return services.CreateEventInput{}, "dateTime is required"
	}
	return services.CreateEventInput{
		Title:           r.Title,
		Description:     r.Description,
		DateTime:        r.DateTime,
		Location:        r.Location,
		GroupID:         groupID,
		InvitedGroupIDs: invited,
		MaxAttendees:    r.MaxAttendees,
		Tags:            r.Tags,
		IsPublic:        r.IsPublic,
	}, ""
}

type updateEventRequest struct {
	Title        *string               `json:"title"`
	Description  *string               `json:"description"`
	DateTime     *time.Time            `json:"dateTime"`
	Location     *models.EventLocation `json:"location"`
	MaxAttendees *int                  `json:"maxAttendees"`
	Tags         *[]string             `json:"tags"`
	IsPublic     *bool                 `json:"isPublic"`
	Status       *models.EventStatus   `json:"status"`
}

func (r updateEventRequest) input() services.UpdateEventInput {
	return services.UpdateEventInput{
		Title:        r.Title,
		Description:  r.Description,
		DateTime:     r.DateTime,
		Location:     r.Location,
		MaxAttendees: r.MaxAttendees,
		Tags:         r.Tags,
		IsPublic:     r.IsPublic,
		Status:       r.Status,
	}
}

type rsvpRequest struct {
	Status models.RSVPStatus `json:"status"`
}

type checkInRequest struct {
	Location *string `json:"location"`
}

func (h *EventsHandler) ListForUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	events, err := h.Events.ListForUser(c.UserContext(), currentUser.ID)
	if err != nil {
		return respondError(c, err, "events_list_failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"events": events, "count": len(events)})
}

func (h *EventsHandler) AttendanceStats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	stats, err := h.Scores.AttendanceStats(c.UserContext(), currentUser.ID)
	if err != nil {
		return respondError(c, err, "attendance_stats_failed")
	}

	return utils.Success(c, fiber.StatusOK, stats)
}

func (h *EventsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	in, msg := req.input()
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	event, err := h.Events.Create(c.UserContext(), currentUser.ID, in)
	if err != nil {
		return respondError(c, err, "event_create_failed")
	}

	return utils.Success(c, fiber.StatusCreated, event)
}

func (h *EventsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.Events.Get(c.UserContext(), eventID, currentUser.ID)
	if err != nil {
		return respondError(c, err, "event_get_failed")
	}

	return utils.Success(c, fiber.StatusOK, event)
}

func (h *EventsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	var req updateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.Events.Update(c.UserContext(), eventID, currentUser.ID, req.input())
	if err != nil {
		return respondError(c, err, "event_update_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "event updated", event)
}

func (h *EventsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	if err := h.Events.Delete(c.UserContext(), eventID, currentUser.ID); err != nil {
		return respondError(c, err, "event_delete_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "event deleted", nil)
}

func (h *EventsHandler) RSVP(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	var req rsvpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.Events.RSVP(c.UserContext(), eventID, currentUser.ID, req.Status)
	if err != nil {
		return respondError(c, err, "event_rsvp_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "RSVP updated", event)
}

func (h *EventsHandler) CheckIn(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	var req checkInRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	event, err := h.Events.CheckIn(c.UserContext(), eventID, currentUser.ID, req.Location)
	if err != nil {
		return respondError(c, err, "event_checkin_failed")
	}

	return utils.SuccessMessage(c, fiber.StatusOK, "checked in", event)
}
