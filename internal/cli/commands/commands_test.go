package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huddle/server/internal/cli/config"
	"github.com/huddle/server/internal/cli/output"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

type stubServer struct {
	*httptest.Server
	mu       sync.Mutex
	recorded []recordedRequest
}

func (s *stubServer) request(i int) recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded[i]
}

// newStubServer answers each "METHOD /path" key with the given status and body.
func newStubServer(t *testing.T, routes map[string]struct {
	status int
	body   any
}) *stubServer {
	t.Helper()
	stub := &stubServer{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		stub.mu.Lock()
		stub.recorded = append(stub.recorded, rec)
		stub.mu.Unlock()

		route, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "route not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(route.status)
		_ = json.NewEncoder(w).Encode(route.body)
	}))
	t.Cleanup(stub.Close)
	return stub
}

func route(status int, body any) struct {
	status int
	body   any
} {
	return struct {
		status int
		body   any
	}{status, body}
}

func ok(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}

// runCLI executes the root command with a fresh config dir and flag state.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	flagJSON, flagServerURL = false, ""
	flagEmail, flagPassword, flagName = "", "", ""
	flagScoreGroup, flagScoreUser = "", ""
	flagCheckInLocation = ""
	flagGroupDescription, flagGroupMaxMembers, flagGroupPrivate = "", 0, false
	now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	var buf bytes.Buffer
	prev := output.Out
	output.Out = &buf
	t.Cleanup(func() { output.Out = prev })

	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv(config.PathEnv, filepath.Join(t.TempDir(), "config.json"))
}

func loggedIn(t *testing.T, serverURL string) {
	t.Helper()
	isolateConfig(t)
	if err := config.Save(&config.Config{ServerURL: serverURL, Token: "jwt-token", UserID: "user-1"}); err != nil {
		t.Fatalf("saving config: %v", err)
	}
}

func TestLoginPromptsAndSavesSession(t *testing.T) {
	isolateConfig(t)
	stub := newStubServer(t, map[string]struct {
		status int
		body   any
	}{
		"POST /api/auth/login": route(http.StatusOK, ok(map[string]any{
			"token": "jwt-token",
			"user":  map[string]any{"id": "user-1", "name": "Alice", "email": "alice@example.com"},
		})),
	})

	out, err := runCLI(t, "alice@example.com\nsecret123\n", "login", "--server", stub.URL)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "Logged in as Alice (alice@example.com)") {
		t.Fatalf("unexpected output %q", out)
	}
	if got := stub.request(0).Body; got["email"] != "alice@example.com" || got["password"] != "secret123" {
		t.Fatalf("unexpected login body %v", got)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Token != "jwt-token" || cfg.UserID != "user-1" {
		t.Fatalf("session not saved: %+v", cfg)
	}
}

func TestLoginRejected(t *testing.T) {
	isolateConfig(t)
	stub := newStubServer(t, map[string]struct {
		status int
		body   any
	}{
		"POST /api/auth/login": route(http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid credentials"}),
	})

	_, err := runCLI(t, "", "login", "--server", stub.URL, "--email", "a@b.co", "--password", "wrong-pass")
	if err == nil || err.Error() != "login failed: invalid credentials" {
		t.Fatalf("expected login failure, got %v", err)
	}
	cfg, _ := config.Load()
	if cfg.HasToken() {
		t.Fatal("expected no token after failed login")
	}
}

func TestCommandsRequireAuth(t *testing.T) {
	isolateConfig(t)
	for _, args := range [][]string{{"whoami"}, {"groups", "list"}, {"events", "list"}, {"leaderboard", "g1"}} {
		_, err := runCLI(t, "", args...)
		if err == nil || !strings.Contains(err.Error(), "not authenticated") {
			t.Fatalf("%v: expected auth error, got %v", args, err)
		}
	}
}

func TestExpiredSessionHint(t *testing.T) {
	stub := newStubServer(t, map[string]struct {
		status int
		body   any
	}{
		"GET /api/auth/me": route(http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid or expired token"}),
	})
	loggedIn(t, stub.URL)

	_, err := runCLI(t, "", "whoami")
	if err == nil || !strings.Contains(err.Error(), "huddle login") {
		t.Fatalf("expected re-login hint, got %v", err)
	}
}

func TestGroupsCommands(t *testing.T) {
	stub := newStubServer(t, map[string]struct {
		status int
		body   any
	}{
		"GET /api/groups": route(http.StatusOK, ok([]map[string]any{
			{"id": "g1", "name": "Board Games", "inviteCode": "ABC123", "memberCount": 2, "userRole": "admin", "settings": map[string]any{"maxMembers": 50}},
		})),
		"POST /api/groups/join": route(http.StatusOK, map[string]any{
			"success": true, "message": "Successfully joined Board Games", "data": map[string]any{"id": "g1"},
		}),
		"DELETE /api/groups/g1/leave": route(http.StatusOK, ok(map[string]any{"groupDeleted": true})),
	})
	loggedIn(t, stub.URL)

	out, err := runCLI(t, "", "groups", "list")
	if err != nil {
		t.Fatalf("groups list: %v", err)
	}
	if !strings.Contains(out, "Board Games") || !strings.Contains(out, "2/50") {
		t.Fatalf("unexpected table %q", out)
	}
	if stub.request(0).Auth != "Bearer jwt-token" {
		t.Fatalf("expected bearer token, got %q", stub.request(0).Auth)
	}

	out, err = runCLI(t, "", "groups", "join", "abc123")
	if err != nil {
		t.Fatalf("groups join: %v", err)
	}
	if strings.TrimSpace(out) != "Successfully joined Board Games" {
		t.Fatalf("unexpected join output %q", out)
	}
	if stub.request(1).Body["inviteCode"] != "abc123" {
		t.Fatalf("unexpected join body %v", stub.request(1).Body)
	}

	out, err = runCLI(t, "", "groups", "leave", "g1")
	if err != nil {
		t.Fatalf("groups leave: %v", err)
	}
	if !strings.Contains(out, "was deleted") {
		t.Fatalf("unexpected leave output %q", out)
	}
}

func TestEventsCommands(t *testing.T) {
	event := map[string]any{
		"id": "e1", "title": "Trivia night", "dateTime": "2026-06-02T19:00:00Z",
		"location": map[string]any{"name": "The Crown"}, "status": "upcoming", "attendeeCount": 3,
	}
	stub := newStubServer(t, map[string]struct {
		status int
		body   any
	}{
		"GET /api/events/user":     route(http.StatusOK, ok(map[string]any{"events": []any{event}, "count": 1})),
		"PUT /api/events/e1/rsvp": route(http.StatusOK, ok(event)),
		"POST /api/events/e1/checkin": route(http.StatusBadRequest, map[string]any{
			"success": false, "message": "check-in is only open from 1 hour before the event",
		}),
		"POST /api/events": route(http.StatusCreated, ok(event)),
	})
	loggedIn(t, stub.URL)

	out, err := runCLI(t, "", "events", "list")
	if err != nil {
		t.Fatalf("events list: %v", err)
	}
	for _, want := range []string{"Trivia night", "in 1d", "The Crown"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	out, err = runCLI(t, "", "events", "rsvp", "e1", "not-going")
	if err != nil {
		t.Fatalf("events rsvp: %v", err)
	}
	if stub.request(1).Body["status"] != "not_going" || !strings.Contains(out, "not_going") {
		t.Fatalf("unexpected rsvp request %v / output %q", stub.request(1).Body, out)
	}

	_, err = runCLI(t, "", "events", "checkin", "e1", "--location", "front door")
	if err == nil || !strings.Contains(err.Error(), "check-in is only open") {
		t.Fatalf("expected server message, got %v", err)
	}
	if stub.request(2).Body["location"] != "front door" {
		t.Fatalf("unexpected checkin body %v", stub.request(2).Body)
	}

	_, err = runCLI(t, "", "events", "create", "--group", "g1", "--title", "Trivia night",
		"--at", "2026-06-02T19:00:00Z", "--location", "The Crown", "--max", "12", "--tag", "quiz")
	if err != nil {
		t.Fatalf("events create: %v", err)
	}
	body := stub.request(3).Body
	if body["groupId"] != "g1" || body["maxAttendees"] != float64(12) {
		t.Fatalf("unexpected create body %v", body)
	}
	if loc, _ := body["location"].(map[string]any); loc["name"] != "The Crown" {
		t.Fatalf("expected structured location, got %v", body["location"])
	}

	_, err = runCLI(t, "", "events", "create", "--group", "g1", "--title", "x", "--at", "tomorrow", "--location", "y")
	if err == nil || !strings.Contains(err.Error(), "RFC 3339") {
		t.Fatalf("expected timestamp error, got %v", err)
	}
}

func TestScoreCommands(t *testing.T) {
	stub := newStubServer(t, map[string]struct {
		status int
		body   any
	}{
		"GET /api/scores/user/user-1": route(http.StatusOK, ok(map[string]any{"score": 510, "metrics": map[string]any{"eventsAttended": 1}})),
		"GET /api/scores/leaderboard/g1": route(http.StatusOK, ok([]map[string]any{
			{"rank": 1, "user": map[string]any{"name": "Alice"}, "score": 517},
		})),
		"GET /api/scores/history/user-1": route(http.StatusOK, ok(map[string]any{
			"history":      []map[string]any{{"score": 510, "delta": 10, "reason": "attended Trivia night", "timestamp": "2026-06-01T10:00:00Z"}},
			"currentScore": 510,
		})),
	})
	loggedIn(t, stub.URL)

	out, err := runCLI(t, "", "score", "--group", "g1")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if stub.request(0).Query != "groupId=g1" || !strings.Contains(out, "510") {
		t.Fatalf("unexpected score request %+v / output %q", stub.request(0), out)
	}

	out, err = runCLI(t, "", "leaderboard", "g1", "--json")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil || len(entries) != 1 {
		t.Fatalf("expected JSON leaderboard, got %q (%v)", out, err)
	}

	_, err = runCLI(t, "", "history")
	if err == nil || err.Error() != "--group is required" {
		t.Fatalf("expected missing group error, got %v", err)
	}

	out, err = runCLI(t, "", "history", "--group", "g1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "+10") || !strings.Contains(out, "Current score: 510") {
		t.Fatalf("unexpected history output %q", out)
	}
}

func TestLogoutClearsConfig(t *testing.T) {
	loggedIn(t, "http://127.0.0.1:1")

	out, err := runCLI(t, "", "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if strings.TrimSpace(out) != "Logged out." {
		t.Fatalf("unexpected output %q", out)
	}
	cfg, _ := config.Load()
	if cfg.HasToken() {
		t.Fatal("expected token to be cleared")
	}
}
