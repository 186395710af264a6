package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"
)

// Integration smoke test against a running server. Skipped unless
// WORKTRACK_BASE_URL is set (e.g. http://127.0.0.1:8080).

func baseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("WORKTRACK_BASE_URL")
	if url == "" {
		t.Skip("WORKTRACK_BASE_URL not set")
	}
	return url
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func TestHealthEndpoint(t *testing.T) {
	resp, err := httpClient().Get(baseURL(t) + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	base := baseURL(t)
	client := httpClient()

	for _, path := range []string{"/auth/me", "/attendance/today", "/admin/users", "/secret-keys/my-keys"} {
		resp, err := client.Get(base + path)
		if err != nil {
			t.Fatalf("request to %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 from %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestRegisterRejectsElevatedRoleWithoutKey(t *testing.T) {
	base := baseURL(t)

	body, _ := json.Marshal(map[string]string{
		"name":     "No Key",
		"email":    "nokey@example.com",
		"password": "password1",
		"role":     "hr",
	})
	resp, err := httpClient().Post(base+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error != "secret_key_required" {
		t.Fatalf("expected secret_key_required, got %s", payload.Error)
	}
}
