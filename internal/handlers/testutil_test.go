package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/huddle/server/internal/config"
	"github.com/huddle/server/internal/database"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	audit *services.AuditService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	auditService := services.NewAuditService(db, nil)
	t.Cleanup(auditService.Close)

	gate := services.NewMembershipGate(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("*"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	RegisterRoutes(app, db, Services{
		Users:    services.NewUserService(db, auditService),
		Groups:   services.NewGroupService(db, gate, auditService),
		Events:   services.NewEventService(db, gate, auditService),
		Scores:   services.NewScoreService(db, gate),
		Settler:  services.NewSettler(db, config.DefaultScoringRules(), auditService),
		TestData: services.NewTestDataGenerator(db),
	})

	return &testEnv{app: app, db: db, audit: auditService}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["message"].(string); got != expected {
		t.Fatalf("expected message %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %+v", body["data"])
	}
	return data
}

// createGroupViaAPI creates a group owned by token's user and returns its id
// and invite code.
func createGroupViaAPI(t *testing.T, env *testEnv, token string, payload map[string]any) (string, string) {
	t.Helper()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/", payload, authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusCreated)
	data := dataMap(t, body)
	return data["id"].(string), data["inviteCode"].(string)
}

func joinGroupViaAPI(t *testing.T, env *testEnv, token, inviteCode string) {
	t.Helper()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/join", map[string]any{
		"inviteCode": inviteCode,
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func createEventViaAPI(t *testing.T, env *testEnv, token, groupID string, at time.Time) string {
	t.Helper()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
		"title":    "Trivia night",
		"dateTime": at.UTC().Format(time.RFC3339),
		"location": map[string]any{"name": "The Crown"},
		"groupId":  groupID,
	}, authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusCreated)
	return dataMap(t, body)["id"].(string)
}
