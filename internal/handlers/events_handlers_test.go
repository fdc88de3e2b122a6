package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/huddle/server/internal/models"
)

func TestEventsEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	_, organizerToken := createTestUser(t, env.db, "events-organizer@test.com", "password123", models.UserRoleUser)
	guest, guestToken := createTestUser(t, env.db, "events-guest@test.com", "password123", models.UserRoleUser)
	_, outsiderToken := createTestUser(t, env.db, "events-outsider@test.com", "password123", models.UserRoleUser)

	groupID, inviteCode := createGroupViaAPI(t, env, organizerToken, map[string]any{"name": "Quiz League"})
	joinGroupViaAPI(t, env, guestToken, inviteCode)

	soon := time.Now().Add(2 * time.Hour)
	later := time.Now().Add(72 * time.Hour)

	eventID := createEventViaAPI(t, env, organizerToken, groupID, soon)

	t.Run("POST /api/events/ structured location is stored", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
			"title":    "Pub quiz",
			"dateTime": later.UTC().Format(time.RFC3339),
			"location": map[string]any{"name": "The Crown", "address": "1 High St", "latitude": 51.5, "longitude": -0.12},
			"groupId":  groupID,
			"tags":     []string{"quiz", " ", "pub"},
		}, authHeaders(organizerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, body)
		location := data["location"].(map[string]any)
		if location["name"] != "The Crown" || location["address"] != "1 High St" {
			t.Fatalf("unexpected location: %+v", location)
		}
		if tags := data["tags"].([]any); len(tags) != 2 {
			t.Fatalf("expected blank tags dropped, got %v", tags)
		}
		if data["status"] != "upcoming" || data["attendeeCount"] != float64(0) {
			t.Fatalf("unexpected initial state: %+v", data)
		}
	})

	t.Run("POST /api/events/ flat string location rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
			"title":    "Pub quiz",
			"dateTime": later.UTC().Format(time.RFC3339),
			"location": "The Crown",
			"groupId":  groupID,
		}, authHeaders(organizerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid request body")
	})

	t.Run("POST /api/events/ past date rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
			"title":    "Yesterday",
			"dateTime": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
			"location": map[string]any{"name": "Somewhere"},
			"groupId":  groupID,
		}, authHeaders(organizerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "event date must be in the future")
	})

	t.Run("POST /api/events/ non-member forbidden", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
			"title":    "Gatecrash",
			"dateTime": later.UTC().Format(time.RFC3339),
			"location": map[string]any{"name": "Somewhere"},
			"groupId":  groupID,
		}, authHeaders(outsiderToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "you must be a member of the group to create events")
	})

	t.Run("GET /api/events/:id non-member forbidden", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/"+eventID, nil, authHeaders(outsiderToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "you do not have access to this event")
	})

	t.Run("PUT /api/events/:id/rsvp invalid status", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+eventID+"/rsvp", map[string]any{"status": "perhaps"}, authHeaders(guestToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "status must be one of going, maybe, not_going")
	})

	t.Run("POST /api/events/:id/checkin before RSVP", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/events/"+eventID+"/checkin", nil, authHeaders(guestToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "must RSVP before checking in")
	})

	t.Run("PUT /api/events/:id/rsvp upserts a single record", func(t *testing.T) {
		for _, status := range []string{"maybe", "going"} {
			resp := performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+eventID+"/rsvp", map[string]any{"status": status}, authHeaders(guestToken))
			assertStatus(t, resp, http.StatusOK)
			resp.Body.Close()
		}

		var attendees []models.EventAttendee
		if err := env.db.Where("event_id = ? AND user_id = ?", eventID, guest.ID).Find(&attendees).Error; err != nil {
			t.Fatalf("failed loading attendees: %v", err)
		}
		if len(attendees) != 1 || attendees[0].Status != models.RSVPGoing {
			t.Fatalf("expected one going attendee row, got %+v", attendees)
		}
	})

	t.Run("POST /api/events/:id/checkin within window", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+eventID+"/checkin", map[string]any{"location": "front door"}, authHeaders(guestToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["checkedInCount"] != float64(1) {
			t.Fatalf("expected one checked-in attendee")
		}
	})

	t.Run("GET /api/events/user lists member events in date order", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/user", nil, authHeaders(guestToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		events := data["events"].([]any)
		if len(events) != 2 || data["count"] != float64(2) {
			t.Fatalf("expected two events, got %d", len(events))
		}
		if events[0].(map[string]any)["id"] != eventID {
			t.Fatalf("expected soonest event first")
		}
	})

	t.Run("GET /api/groups/:id/events member only", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/events", nil, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	})

	t.Run("GET /api/events/user/attendance-stats", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/user/attendance-stats", nil, authHeaders(guestToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["upcomingEvents"] != float64(2) || data["totalRSVPs"] != float64(0) {
			t.Fatalf("expected two upcoming events and no past RSVPs, got %+v", data)
		}
	})

	t.Run("PUT /api/events/:id non-organizer forbidden", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+eventID, map[string]any{"title": "Renamed"}, authHeaders(guestToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "only the organizer can update this event")
	})

	t.Run("PUT /api/events/:id organizer cancels", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+eventID, map[string]any{"status": "cancelled"}, authHeaders(organizerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["status"] != "cancelled" {
			t.Fatalf("expected cancelled status")
		}

		resp = performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+eventID+"/rsvp", map[string]any{"status": "going"}, authHeaders(guestToken))
		body = decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "cannot RSVP to a cancelled event")
	})

	t.Run("DELETE /api/events/:id organizer removes attendees", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/events/"+eventID, nil, authHeaders(organizerToken))
		assertStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		var count int64
		env.db.Model(&models.EventAttendee{}).Where("event_id = ?", eventID).Count(&count)
		if count != 0 {
			t.Fatalf("expected attendees removed with event, got %d", count)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/events/"+eventID, nil, authHeaders(organizerToken))
		assertStatus(t, resp, http.StatusNotFound)
		resp.Body.Close()
	})
}
