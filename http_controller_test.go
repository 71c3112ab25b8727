package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	auth "github.com/bankops/backoffice-auth"
)

type testAPI struct {
	app  *fiber.App
	repo auth.RepositoryManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	repo := newTestRepo(t)

	tokens := auth.NewTokenService([]byte("http-test-key"), 30*time.Minute, "test-issuer", nil)
	sessions := auth.NewSessionService(repo, testHasher(), tokens).
		WithActivitySink(auth.NewLogActivitySink(repo))
	provisioning := auth.NewProvisioningService(repo, &MockMailer{})
	audit := auth.NewAuditService(repo, nil)

	app := fiber.New()
	auth.RegisterRoutes(app,
		auth.WithSessionService(sessions),
		auth.WithProvisioningService(provisioning),
		auth.WithAuditService(audit),
		auth.WithTokenService(tokens),
	)

	return &testAPI{app: app, repo: repo}
}

func (a *testAPI) request(t *testing.T, method, path string, body any, cookie string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := a.app.Test(req, -1)
	assert.NoError(t, err)

	return resp
}

func (a *testAPI) signin(t *testing.T, email, password string) string {
	t.Helper()

	resp := a.request(t, fiber.MethodPost, "/auth/signin", fiber.Map{
		"email":    email,
		"password": password,
	}, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return fmt.Sprintf("%s=%s", c.Name, c.Value)
		}
	}

	t.Fatal("signin response carried no session cookie")
	return ""
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestController_SignupAndSignin(t *testing.T) {
	api := newTestAPI(t)

	t.Run("signup creates an account", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPost, "/auth/signup", fiber.Map{
			"email":            "signup@bank.test",
			"password":         "long-enough-pass",
			"confirm_password": "long-enough-pass",
			"first_name":       "Sign",
			"last_name":        "Up",
			"department":       "IT",
			"user_role":        "analyst",
		}, "")

		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, "signup@bank.test", body["email"])
		assert.NotContains(t, body, "password_hash")
	})

	t.Run("signup validation failure is a 400", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPost, "/auth/signup", fiber.Map{
			"email":            "not-an-email",
			"password":         "long-enough-pass",
			"confirm_password": "long-enough-pass",
			"first_name":       "Sign",
			"last_name":        "Up",
			"department":       "IT",
			"user_role":        "analyst",
		}, "")

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("signin sets the session cookie", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPost, "/auth/signin", fiber.Map{
			"email":    "signup@bank.test",
			"password": "long-enough-pass",
		}, "")

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var cookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == auth.SessionCookieName {
				cookie = c
			}
		}

		assert.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		assert.Equal(t, 30*60, cookie.MaxAge)
		assert.True(t, strings.HasPrefix(cookie.Value, "Bearer "))
	})

	t.Run("bad credentials are a 401", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPost, "/auth/signin", fiber.Map{
			"email":    "signup@bank.test",
			"password": "wrong-password",
		}, "")

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("signout clears the cookie", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPost, "/auth/signout", nil, "")

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var cookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == auth.SessionCookieName {
				cookie = c
			}
		}

		assert.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.Expires.Before(time.Now()))
	})
}

func TestController_SessionGuard(t *testing.T) {
	api := newTestAPI(t)

	seedUser(t, api.repo, "me@bank.test", "long-enough-pass", auth.RoleAnalyst)

	t.Run("missing cookie is a 401", func(t *testing.T) {
		resp := api.request(t, fiber.MethodGet, "/auth/me", nil, "")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage cookie is a 401", func(t *testing.T) {
		resp := api.request(t, fiber.MethodGet, "/auth/me", nil,
			auth.SessionCookieName+"=Bearer garbage")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid cookie resolves the profile", func(t *testing.T) {
		cookie := api.signin(t, "me@bank.test", "long-enough-pass")

		resp := api.request(t, fiber.MethodGet, "/auth/me", nil, cookie)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, "me@bank.test", body["email"])
	})
}

func TestController_ProfileAndPassword(t *testing.T) {
	api := newTestAPI(t)

	seedUser(t, api.repo, "edit@bank.test", "long-enough-pass", auth.RoleAnalyst)
	cookie := api.signin(t, "edit@bank.test", "long-enough-pass")

	t.Run("update profile", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPut, "/auth/update-profile", fiber.Map{
			"first_name": "Edited",
		}, cookie)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, "Edited", body["first_name"])
	})

	t.Run("change password rejects confirmation mismatch", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPut, "/auth/change-password", fiber.Map{
			"old_password":     "long-enough-pass",
			"new_password":     "a-new-password",
			"confirm_password": "a-different-one",
		}, cookie)

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("change password succeeds", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPut, "/auth/change-password", fiber.Map{
			"old_password":     "long-enough-pass",
			"new_password":     "a-new-password",
			"confirm_password": "a-new-password",
		}, cookie)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestController_AdminSurface(t *testing.T) {
	api := newTestAPI(t)

	seedUser(t, api.repo, "admin@bank.test", "admin-password", auth.RoleAdmin)
	analyst := seedUser(t, api.repo, "analyst@bank.test", "analyst-pass", auth.RoleAnalyst)

	adminCookie := api.signin(t, "admin@bank.test", "admin-password")
	analystCookie := api.signin(t, "analyst@bank.test", "analyst-pass")

	t.Run("admin lists accounts", func(t *testing.T) {
		resp := api.request(t, fiber.MethodGet, "/users/", nil, adminCookie)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body []map[string]any
		decodeBody(t, resp, &body)
		assert.Len(t, body, 2)
	})

	t.Run("analyst cannot list accounts", func(t *testing.T) {
		resp := api.request(t, fiber.MethodGet, "/users/", nil, analystCookie)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("analyst can read own record", func(t *testing.T) {
		resp := api.request(t, fiber.MethodGet, fmt.Sprintf("/users/%d", analyst.ID), nil, analystCookie)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("self-service update cannot change the role", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPut, "/auth/update-profile", fiber.Map{
			"user_role": "admin",
		}, analystCookie)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, string(auth.RoleAnalyst), body["user_role"])

		// And the admin surfaces stay closed.
		resp = api.request(t, fiber.MethodGet, "/logs", nil, analystCookie)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin promotes through the directory", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPut, fmt.Sprintf("/users/%d", analyst.ID), fiber.Map{
			"user_role": "admin",
		}, adminCookie)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, string(auth.RoleAdmin), body["user_role"])

		// Restore so the remaining subtests keep an analyst actor.
		_, err := api.repo.Users().Update(context.Background(), analyst.ID, auth.UserUpdate{Role: rolePtr(auth.RoleAnalyst)})
		assert.NoError(t, err)
	})

	t.Run("logs are admin gated", func(t *testing.T) {
		resp := api.request(t, fiber.MethodGet, "/logs", nil, analystCookie)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		resp = api.request(t, fiber.MethodGet, "/logs", nil, adminCookie)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var summary auth.LogSummary
		decodeBody(t, resp, &summary)
		// Both signins above were audited.
		assert.GreaterOrEqual(t, summary.CountsByAction[auth.ActionLoginSuccess], 2)
	})
}

func TestController_ResetPassword(t *testing.T) {
	api := newTestAPI(t)

	user := seedUser(t, api.repo, "invitee@bank.test", "", auth.RoleAnalyst)

	token, err := api.repo.ResetTokens().IssueFor(context.Background(), user.ID, time.Now())
	assert.NoError(t, err)

	t.Run("redeems without a session", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPost, "/users/reset-password", fiber.Map{
			"token":            token.Token,
			"new_password":     "chosen-password",
			"confirm_password": "chosen-password",
		}, "")

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		cookie := api.signin(t, "invitee@bank.test", "chosen-password")
		assert.NotEmpty(t, cookie)
	})

	t.Run("second redemption conflicts", func(t *testing.T) {
		resp := api.request(t, fiber.MethodPost, "/users/reset-password", fiber.Map{
			"token":            token.Token,
			"new_password":     "another-password",
			"confirm_password": "another-password",
		}, "")

		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})
}
