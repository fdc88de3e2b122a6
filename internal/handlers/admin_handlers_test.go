package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/huddle/server/internal/models"
)

func TestAdminEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	owner, ownerToken := createTestUser(t, env.db, "admin-owner@test.com", "password123", models.UserRoleUser)
	member, memberToken := createTestUser(t, env.db, "admin-member@test.com", "password123", models.UserRoleUser)

	groupID, inviteCode := createGroupViaAPI(t, env, ownerToken, map[string]any{"name": "Run Club"})
	joinGroupViaAPI(t, env, memberToken, inviteCode)

	t.Run("GET /api/admin/stats non-admin forbidden", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/admin/stats", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "admin access required")
	})

	t.Run("GET /api/admin/stats counts", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/admin/stats", nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		users := data["users"].(map[string]any)
		if users["total"] != float64(3) || data["groups"].(map[string]any)["total"] != float64(1) {
			t.Fatalf("unexpected stats: %+v", data)
		}
	})

	t.Run("GET /api/admin/users paginates and searches", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/admin/users?limit=2", nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if users := body["data"].([]any); len(users) != 2 {
			t.Fatalf("expected a page of two users, got %d", len(users))
		}
		pagination := body["pagination"].(map[string]any)
		if pagination["total"] != float64(3) || pagination["totalPages"] != float64(2) {
			t.Fatalf("unexpected pagination: %+v", pagination)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/admin/users?search=admin-owner", nil, authHeaders(adminToken))
		body = decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if users := body["data"].([]any); len(users) != 1 {
			t.Fatalf("expected one search hit, got %d", len(users))
		}
	})

	t.Run("POST /api/admin/users creates admin via isAdmin flag", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/users", map[string]any{
			"name":     "Second Admin",
			"email":    "second-admin@test.com",
			"password": "password123",
			"isAdmin":  true,
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		if dataMap(t, body)["role"] != "admin" {
			t.Fatalf("expected admin role")
		}
	})

	t.Run("PUT /api/admin/users/:id cannot deactivate self", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/admin/users/"+admin.ID.String(), map[string]any{"isActive": false}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "you cannot deactivate your own account")
	})

	t.Run("PUT /api/admin/groups/:id deactivates group", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/admin/groups/"+groupID, map[string]any{"isActive": false}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["isActive"] != false {
			t.Fatalf("expected inactive group")
		}
	})

	t.Run("POST /api/admin/events creates for organizer", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/events", map[string]any{
			"title":       "Park run",
			"dateTime":    time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			"location":    map[string]any{"name": "Victoria Park"},
			"groupId":     groupID,
			"organizerId": owner.ID.String(),
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		if dataMap(t, body)["organizerID"] != owner.ID.String() {
			t.Fatalf("expected organizer from request")
		}
	})

	t.Run("POST /api/admin/groups unknown admin", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/groups", map[string]any{
			"name":    "Orphans",
			"adminId": "5b0c3f7e-8d4c-4a53-9d1e-2f1f5f0a0002",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "admin user not found")
	})

	t.Run("POST /api/admin/users/bulk-delete rejects empty list", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/users/bulk-delete", map[string]any{"userIds": []string{}}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid user IDs")
	})

	t.Run("DELETE /api/admin/users/:id cascades group ownership", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/admin/users/"+owner.ID.String(), nil, authHeaders(adminToken))
		assertStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		var group models.Group
		if err := env.db.First(&group, "id = ?", groupID).Error; err != nil {
			t.Fatalf("expected group to survive: %v", err)
		}
		if group.AdminID != member.ID {
			t.Fatalf("expected admin handed to remaining member")
		}

		var events int64
		env.db.Model(&models.Event{}).Where("organizer_id = ?", owner.ID).Count(&events)
		if events != 0 {
			t.Fatalf("expected organised events removed, got %d", events)
		}
	})

	t.Run("DELETE /api/admin/users/:id unknown user", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/admin/users/"+owner.ID.String(), nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, body, "user not found")
	})

	t.Run("POST /api/admin/generate-test-data defaults", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/admin/generate-test-data", nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["users"] != float64(10) || data["groups"] != float64(3) || data["events"] != float64(5) {
			t.Fatalf("unexpected generated counts: %+v", data)
		}
	})

	t.Run("POST /api/admin/generate-test-data bounds", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/generate-test-data", map[string]any{"userCount": 101}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "userCount must be between 0 and 100")
	})
}
