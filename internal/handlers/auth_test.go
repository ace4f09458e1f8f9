package handlers

import (
	"net/http"
	"testing"

	"github.com/trackroom/backend/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"email":     "ana@test.com",
		"password":  "long-enough-pw",
		"firstName": "Ana",
		"lastName":  "Reyes",
	}, nil)
	assertStatus(t, resp, http.StatusCreated)
	body := decodeJSONMap(t, resp)
	data := dataMap(t, body)
	if data["token"] == "" {
		t.Fatal("expected a token on register")
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"email":    "ana@test.com",
		"password": "another-long-pw",
	}, nil)
	assertStatus(t, resp, http.StatusConflict)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "ana@test.com",
		"password": "wrong-password",
	}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "ana@test.com",
		"password": "long-enough-pw",
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	body = decodeJSONMap(t, resp)
	token, _ := dataMap(t, body)["token"].(string)
	if token == "" {
		t.Fatal("expected a token on login")
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"email":    "not-an-email",
		"password": "long-enough-pw",
	}, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"email":    "short@test.com",
		"password": "short",
	}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAdminOnlyAuditListing(t *testing.T) {
	env := setupTestEnv(t)

	_, userToken := createTestUser(t, env.db, "user@test.com", "password123", models.UserRoleUser)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)

	resp := performRequest(t, env.app, http.MethodGet, "/api/audit-logs", nil, authHeaders(userToken))
	assertStatus(t, resp, http.StatusForbidden)

	resp = performRequest(t, env.app, http.MethodGet, "/api/audit-logs", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
}
