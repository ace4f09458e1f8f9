package handlers

import (
	"net/http"
	"testing"

	"github.com/trackroom/backend/internal/models"
)

func createTrackViaAPI(t *testing.T, env *testEnv, token, releaseID, title string) string {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/releases/"+releaseID+"/tracks", map[string]any{
		"title": title,
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusCreated)

	body := decodeJSONMap(t, resp)
	id, _ := dataMap(t, body)["id"].(string)
	if id == "" {
		t.Fatal("expected track id in response")
	}
	return id
}

func enableShareViaAPI(t *testing.T, env *testEnv, token, releaseID string) string {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/releases/"+releaseID+"/share", nil, authHeaders(token))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("expected share created, got status %d", resp.StatusCode)
	}

	body := decodeJSONMap(t, resp)
	shareToken, _ := dataMap(t, body)["token"].(string)
	if shareToken == "" {
		t.Fatal("expected share token in response")
	}
	return shareToken
}

func TestPortalReviewFlow(t *testing.T) {
	env := setupTestEnv(t)

	_, ownerToken := createTestUser(t, env.db, "owner@test.com", "password123", models.UserRoleUser)
	releaseID := createReleaseViaAPI(t, env, ownerToken, "Night Drive")
	trackID := createTrackViaAPI(t, env, ownerToken, releaseID, "Opening")
	shareToken := enableShareViaAPI(t, env, ownerToken, releaseID)

	portalPath := "/api/portal/" + shareToken

	// Nothing is surfaced yet, so the portal is empty and in review.
	resp := performRequest(t, env.app, http.MethodGet, portalPath, nil, nil)
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	data := dataMap(t, body)
	if tracks, _ := data["tracks"].([]any); len(tracks) != 0 {
		t.Fatalf("expected no visible tracks, got %+v", data["tracks"])
	}
	if status, _ := data["status"].(string); status != "in_review" {
		t.Fatalf("expected in_review, got %q", status)
	}

	resp = performJSONRequest(t, env.app, http.MethodPut,
		"/api/releases/"+releaseID+"/share/tracks/"+trackID,
		map[string]any{"visible": true}, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusCreated)

	resp = performRequest(t, env.app, http.MethodGet, portalPath, nil, nil)
	assertStatus(t, resp, http.StatusOK)
	body = decodeJSONMap(t, resp)
	tracks, _ := dataMap(t, body)["tracks"].([]any)
	if len(tracks) != 1 {
		t.Fatalf("expected one visible track, got %d", len(tracks))
	}
	trackView, _ := tracks[0].(map[string]any)
	if status, _ := trackView["approvalStatus"].(string); status != "awaiting_review" {
		t.Fatalf("expected awaiting_review, got %q", status)
	}
	if allowed, _ := trackView["downloadAllowed"].(bool); allowed {
		t.Fatal("download must be off by default")
	}

	// Visitor asks for changes, then approves the revised mix.
	resp = performJSONRequest(t, env.app, http.MethodPost,
		portalPath+"/tracks/"+trackID+"/request-changes",
		map[string]any{"feedback": "vocal up 1db"}, nil)
	assertStatus(t, resp, http.StatusOK)

	resp = performJSONRequest(t, env.app, http.MethodPost,
		portalPath+"/tracks/"+trackID+"/approve", nil, nil)
	assertStatus(t, resp, http.StatusOK)

	// Visitors cannot deliver; only editors can.
	resp = performJSONRequest(t, env.app, http.MethodPost,
		"/api/releases/"+releaseID+"/share/tracks/"+trackID+"/deliver", nil, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusOK)

	resp = performRequest(t, env.app, http.MethodGet, portalPath, nil, nil)
	assertStatus(t, resp, http.StatusOK)
	body = decodeJSONMap(t, resp)
	if status, _ := dataMap(t, body)["status"].(string); status != "delivered" {
		t.Fatalf("expected delivered portal, got %q", status)
	}

	// Delivered is terminal.
	resp = performJSONRequest(t, env.app, http.MethodPost,
		portalPath+"/tracks/"+trackID+"/request-changes",
		map[string]any{"feedback": "one more pass"}, nil)
	assertStatus(t, resp, http.StatusConflict)
}

func TestPortalTokenLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	_, ownerToken := createTestUser(t, env.db, "owner@test.com", "password123", models.UserRoleUser)
	releaseID := createReleaseViaAPI(t, env, ownerToken, "Night Drive")

	resp := performRequest(t, env.app, http.MethodGet, "/api/portal/not-a-real-token", nil, nil)
	assertStatus(t, resp, http.StatusNotFound)

	shareToken := enableShareViaAPI(t, env, ownerToken, releaseID)

	// Enabling again returns the same live share.
	again := enableShareViaAPI(t, env, ownerToken, releaseID)
	if again != shareToken {
		t.Fatal("re-enabling a live share must not rotate the token")
	}

	resp = performRequest(t, env.app, http.MethodDelete, "/api/releases/"+releaseID+"/share", nil, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusOK)

	resp = performRequest(t, env.app, http.MethodGet, "/api/portal/"+shareToken, nil, nil)
	assertStatus(t, resp, http.StatusNotFound)

	// Re-enabling after a revoke mints a fresh token; the old link stays dead.
	fresh := enableShareViaAPI(t, env, ownerToken, releaseID)
	if fresh == shareToken {
		t.Fatal("expected a new token after revoke")
	}
	resp = performRequest(t, env.app, http.MethodGet, "/api/portal/"+shareToken, nil, nil)
	assertStatus(t, resp, http.StatusNotFound)
	resp = performRequest(t, env.app, http.MethodGet, "/api/portal/"+fresh, nil, nil)
	assertStatus(t, resp, http.StatusOK)
}

func TestPortalDownloadGate(t *testing.T) {
	env := setupTestEnv(t)

	_, ownerToken := createTestUser(t, env.db, "owner@test.com", "password123", models.UserRoleUser)
	releaseID := createReleaseViaAPI(t, env, ownerToken, "Night Drive")
	trackID := createTrackViaAPI(t, env, ownerToken, releaseID, "Opening")
	shareToken := enableShareViaAPI(t, env, ownerToken, releaseID)

	version := &models.AudioVersion{
		Label:       "mix-final.wav",
		ObjectPath:  "releases/test/mix-final.wav",
		ContentType: "audio/wav",
	}
	var track models.Track
	if err := env.db.First(&track, "id = ?", trackID).Error; err != nil {
		t.Fatalf("failed loading track: %v", err)
	}
	version.TrackID = track.ID
	if err := env.db.Create(version).Error; err != nil {
		t.Fatalf("failed creating version: %v", err)
	}

	resp := performJSONRequest(t, env.app, http.MethodPut,
		"/api/releases/"+releaseID+"/share/tracks/"+trackID,
		map[string]any{"visible": true, "downloadEnabled": true}, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusCreated)

	resp = performJSONRequest(t, env.app, http.MethodPut,
		"/api/releases/"+releaseID+"/share", map[string]any{
			"requirePaymentForDownload": true,
		}, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusOK)

	downloadPath := "/api/portal/" + shareToken + "/tracks/" + trackID + "/versions/" + version.ID.String() + "/download"

	// Unpaid release behind the payment gate: no download.
	resp = performRequest(t, env.app, http.MethodGet, downloadPath, nil, nil)
	assertStatus(t, resp, http.StatusForbidden)

	resp = performJSONRequest(t, env.app, http.MethodPut,
		"/api/releases/"+releaseID+"/share", map[string]any{
			"requirePaymentForDownload": false,
		}, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusOK)

	// Gate now passes, but the version itself was never surfaced.
	resp = performRequest(t, env.app, http.MethodGet, downloadPath, nil, nil)
	assertStatus(t, resp, http.StatusNotFound)
}
