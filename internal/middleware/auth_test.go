package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"autopilot/internal/config"
	"autopilot/internal/models"
	"autopilot/pkg/auth"
)

type fakeSessionStore struct {
	sessions   map[string]*models.Session
	createErr  error
	createHits int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.Session{}}
}

func (f *fakeSessionStore) add(token string, valid bool) *models.Session {
	session := &models.Session{
		ID:           uuid.NewString(),
		SessionToken: token,
		Phase:        models.PhaseDiscovery,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
	if !valid {
		session.ExpiresAt = time.Now().Add(-time.Hour)
	}
	f.sessions[token] = session
	return session
}

func (f *fakeSessionStore) GetByToken(_ context.Context, token string) (*models.Session, error) {
	if session, ok := f.sessions[token]; ok {
		return session, nil
	}
	return nil, errors.New("session not found")
}

func (f *fakeSessionStore) Create(_ context.Context) (*models.Session, error) {
	f.createHits++
	if f.createErr != nil {
		return nil, f.createErr
	}
	session := f.add(fmt.Sprintf("provisioned-%d", f.createHits), true)
	return session, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:         "development",
		SessionCookieName:   "autopilot_session",
		SessionCookieMaxAge: 2592000,
	}
}

func testJWT(t *testing.T) *auth.JWTAuth {
	t.Helper()
	jwtAuth, err := auth.NewJWTAuth("test-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewJWTAuth() error = %v", err)
	}
	return jwtAuth
}

func echoAuthMode(c *fiber.Ctx) error {
	body := fiber.Map{"mode": c.Locals(LocalsAuthMode)}
	if session, ok := SessionFromLocals(c); ok {
		body["session_id"] = session.ID
	}
	if userID, ok := UserIDFromLocals(c); ok {
		body["user_id"] = userID
	}
	return c.JSON(body)
}

func doRequest(t *testing.T, app *fiber.App, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	body := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("response body %q is not JSON: %v", raw, err)
		}
	}
	return resp, body
}

func TestDualAuthBearerWins(t *testing.T) {
	jwtAuth := testJWT(t)
	store := newFakeSessionStore()
	store.add("sess-token", true)

	app := fiber.New()
	app.Get("/whoami", DualAuth(jwtAuth, store, testConfig()), echoAuthMode)

	token, err := jwtAuth.GenerateToken("user-1", "a@b.co", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	resp, body := doRequest(t, app, map[string]string{
		"Authorization":    "Bearer " + token,
		SessionTokenHeader: "sess-token",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["mode"] != AuthModeUser {
		t.Errorf("mode = %v, want user", body["mode"])
	}
	if body["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", body["user_id"])
	}
	if store.createHits != 0 {
		t.Errorf("createHits = %d, want 0", store.createHits)
	}
}

func TestDualAuthExpiredBearerRejected(t *testing.T) {
	jwtAuth := testJWT(t)
	app := fiber.New()
	app.Get("/whoami", DualAuth(jwtAuth, newFakeSessionStore(), testConfig()), echoAuthMode)

	expiredSigner, _ := auth.NewJWTAuth("test-secret", -time.Hour)
	token, err := expiredSigner.GenerateToken("user-1", "a@b.co", "user")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	resp, body := doRequest(t, app, map[string]string{"Authorization": "Bearer " + token})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["code"] != "TOKEN_EXPIRED" {
		t.Errorf("code = %v, want TOKEN_EXPIRED", body["code"])
	}
}

func TestDualAuthInvalidBearerRejected(t *testing.T) {
	jwtAuth := testJWT(t)
	store := newFakeSessionStore()
	store.add("sess-token", true)

	app := fiber.New()
	app.Get("/whoami", DualAuth(jwtAuth, store, testConfig()), echoAuthMode)

	// A bad bearer is a hard failure even when a valid session token rides along
	resp, body := doRequest(t, app, map[string]string{
		"Authorization":    "Bearer not.a.jwt",
		SessionTokenHeader: "sess-token",
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["code"] != "INVALID_TOKEN" {
		t.Errorf("code = %v, want INVALID_TOKEN", body["code"])
	}
}

func TestDualAuthSessionTokenHeader(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add("sess-token", true)

	app := fiber.New()
	app.Get("/whoami", DualAuth(testJWT(t), store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, map[string]string{SessionTokenHeader: "sess-token"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["mode"] != AuthModeSession {
		t.Errorf("mode = %v, want session", body["mode"])
	}
	if body["session_id"] != session.ID {
		t.Errorf("session_id = %v, want %s", body["session_id"], session.ID)
	}
}

func TestDualAuthSessionTokenCookie(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add("cookie-token", true)

	app := fiber.New()
	app.Get("/whoami", DualAuth(testJWT(t), store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, map[string]string{"Cookie": "autopilot_session=cookie-token"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["session_id"] != session.ID {
		t.Errorf("session_id = %v, want %s", body["session_id"], session.ID)
	}
}

func TestDualAuthAutoProvision(t *testing.T) {
	store := newFakeSessionStore()
	app := fiber.New()
	app.Get("/whoami", DualAuth(testJWT(t), store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["mode"] != AuthModeSession {
		t.Errorf("mode = %v, want session", body["mode"])
	}
	if store.createHits != 1 {
		t.Errorf("createHits = %d, want 1", store.createHits)
	}
	if got := resp.Header.Get(SessionTokenHeader); got == "" {
		t.Error("expected X-Session-Token response header on auto-provision")
	}
	if !strings.Contains(resp.Header.Get("Set-Cookie"), "autopilot_session=") {
		t.Errorf("Set-Cookie = %q, want session cookie", resp.Header.Get("Set-Cookie"))
	}
}

func TestDualAuthStaleSessionTokenReprovisions(t *testing.T) {
	store := newFakeSessionStore()
	store.add("expired-token", false)

	app := fiber.New()
	app.Get("/whoami", DualAuth(testJWT(t), store, testConfig()), echoAuthMode)

	resp, _ := doRequest(t, app, map[string]string{SessionTokenHeader: "expired-token"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if store.createHits != 1 {
		t.Errorf("createHits = %d, want 1 (stale token should fall through)", store.createHits)
	}
}

func TestDualAuthProvisionFailure(t *testing.T) {
	store := newFakeSessionStore()
	store.createErr = errors.New("mongo down")

	app := fiber.New()
	app.Get("/whoami", DualAuth(testJWT(t), store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, nil)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if body["code"] != "SERVICE_UNAVAILABLE" {
		t.Errorf("code = %v, want SERVICE_UNAVAILABLE", body["code"])
	}
}

func TestRequiredDualAuthNoIdentity(t *testing.T) {
	store := newFakeSessionStore()
	app := fiber.New()
	app.Get("/whoami", RequiredDualAuth(testJWT(t), store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %v, want UNAUTHORIZED", body["code"])
	}
	if store.createHits != 0 {
		t.Errorf("createHits = %d, want 0 (no auto-provision)", store.createHits)
	}
}

func TestRequireUserWrongMode(t *testing.T) {
	store := newFakeSessionStore()
	store.add("sess-token", true)

	app := fiber.New()
	app.Get("/whoami", RequireUser(testJWT(t), testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, map[string]string{SessionTokenHeader: "sess-token"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "WRONG_AUTH_MODE" {
		t.Errorf("code = %v, want WRONG_AUTH_MODE", body["code"])
	}
}

func TestRequireUserNoIdentity(t *testing.T) {
	app := fiber.New()
	app.Get("/whoami", RequireUser(testJWT(t), testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %v, want UNAUTHORIZED", body["code"])
	}
}

func TestRequireSessionWrongMode(t *testing.T) {
	jwtAuth := testJWT(t)
	store := newFakeSessionStore()
	store.add("sess-token", true)

	app := fiber.New()
	app.Get("/whoami", RequireSession(store, testConfig()), echoAuthMode)

	token, _ := jwtAuth.GenerateToken("user-1", "a@b.co", "user")
	resp, body := doRequest(t, app, map[string]string{
		"Authorization":    "Bearer " + token,
		SessionTokenHeader: "sess-token",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "WRONG_AUTH_MODE" {
		t.Errorf("code = %v, want WRONG_AUTH_MODE", body["code"])
	}
}

func TestRequireSessionExpired(t *testing.T) {
	store := newFakeSessionStore()
	store.add("expired-token", false)

	app := fiber.New()
	app.Get("/whoami", RequireSession(store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, map[string]string{SessionTokenHeader: "expired-token"})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["code"] != "SESSION_EXPIRED" {
		t.Errorf("code = %v, want SESSION_EXPIRED", body["code"])
	}
}

func TestRequireSessionClaimed(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add("claimed-token", true)
	profileID := "profile-1"
	session.ClaimedByProfileID = &profileID

	app := fiber.New()
	app.Get("/whoami", RequireSession(store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, map[string]string{SessionTokenHeader: "claimed-token"})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["code"] != "SESSION_EXPIRED" {
		t.Errorf("code = %v, want SESSION_EXPIRED", body["code"])
	}
}

func TestSessionTokenHeaderBeatsCookie(t *testing.T) {
	store := newFakeSessionStore()
	headerSession := store.add("header-token", true)
	store.add("cookie-token", true)

	app := fiber.New()
	app.Get("/whoami", DualAuth(testJWT(t), store, testConfig()), echoAuthMode)

	resp, body := doRequest(t, app, map[string]string{
		SessionTokenHeader: "header-token",
		"Cookie":           "autopilot_session=cookie-token",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["session_id"] != headerSession.ID {
		t.Errorf("session_id = %v, want header session %s", body["session_id"], headerSession.ID)
	}
}
