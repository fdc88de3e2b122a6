package handlers

import (
	"net/http"
	"testing"

	"github.com/huddle/server/internal/models"
)

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	var token string

	t.Run("POST /api/auth/register creates account and token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Alice",
			"email":    "Alice@Example.com",
			"password": "secret1",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, body)
		token, _ = data["token"].(string)
		if token == "" {
			t.Fatalf("expected token in register response")
		}
		user := data["user"].(map[string]any)
		if user["email"] != "alice@example.com" {
			t.Fatalf("expected lower-cased email, got %v", user["email"])
		}
		if _, leaked := user["passwordHash"]; leaked {
			t.Fatalf("password hash must not be serialised")
		}
	})

	t.Run("POST /api/auth/register duplicate email conflicts", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Alice Again",
			"email":    "alice@example.com",
			"password": "secret1",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "email already registered")
	})

	t.Run("POST /api/auth/register short password rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"name":     "Bob",
			"email":    "bob@example.com",
			"password": "12345",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "password must be at least 6 characters")
	})

	t.Run("POST /api/auth/login wrong password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid email or password")
	})

	t.Run("POST /api/auth/login succeeds", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "ALICE@example.com",
			"password": "secret1",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if data := dataMap(t, body); data["token"] == "" {
			t.Fatalf("expected token in login response")
		}
	})

	t.Run("POST /api/auth/login inactive account", func(t *testing.T) {
		inactive, _ := createTestUser(t, env.db, "inactive@example.com", "password123", models.UserRoleUser)
		if err := env.db.Model(inactive).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed deactivating user: %v", err)
		}

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "inactive@example.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "account is disabled")
	})

	t.Run("GET /api/auth/me requires token", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("PUT /api/auth/me updates profile", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"name": "Alice Liddell",
			"bio":  "Board games and hikes",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["name"] != "Alice Liddell" || data["bio"] != "Board games and hikes" {
			t.Fatalf("unexpected profile after update: %+v", data)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		body = decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["name"] != "Alice Liddell" {
			t.Fatalf("expected updated name from /me")
		}
	})
}
