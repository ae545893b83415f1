package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sabathrodriguez/trunV3/internal/auth"
	"github.com/Sabathrodriguez/trunV3/internal/config"
)

func TestHealthRoute(t *testing.T) {
	s := NewServer(config.Config{JWTSecret: "secret", ServerPort: ":0"}, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := NewServer(config.Config{JWTSecret: "secret", ServerPort: ":0"}, nil, nil)

	paths := []struct {
		method string
		path   string
	}{
		{"POST", "/live/river-loop/session"},
		{"POST", "/live/river-loop/location"},
		{"GET", "/leaderboard/river-loop"},
		{"POST", "/routes"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.App.Test(req)
		if err != nil {
			t.Fatalf("%s %s: %v", p.method, p.path, err)
		}
		if resp.StatusCode != 401 {
			t.Fatalf("%s %s: expected 401, got %d", p.method, p.path, resp.StatusCode)
		}
	}
}

func TestLiveSessionLifecycle(t *testing.T) {
	cfg := config.Config{JWTSecret: "secret", ServerPort: ":0"}
	s := NewServer(cfg, nil, nil)

	token, err := auth.SignToken(cfg.JWTSecret, "runner-1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	do := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := s.App.Test(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		return resp.StatusCode
	}

	start := `{"coordinates":[{"lat":0,"lon":0},{"lat":0,"lon":0.01}]}`
	if code := do("POST", "/live/river-loop/session", start); code != 201 {
		t.Fatalf("start session: expected 201, got %d", code)
	}
	if code := do("POST", "/live/river-loop/location", `{"lat":0,"lon":0.005}`); code != 202 {
		t.Fatalf("publish: expected 202, got %d", code)
	}

	req := httptest.NewRequest("GET", "/live/river-loop/participants", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("participants: expected 200, got %d", resp.StatusCode)
	}
	var parts []struct {
		ID       string  `json:"id"`
		Progress float64 `json:"progress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parts); err != nil {
		t.Fatalf("decode participants: %v", err)
	}
	if len(parts) != 1 || parts[0].ID != "runner-1" {
		t.Fatalf("unexpected participants: %+v", parts)
	}
	if parts[0].Progress < 0.49 || parts[0].Progress > 0.51 {
		t.Fatalf("expected midpoint progress, got %f", parts[0].Progress)
	}

	if code := do("DELETE", "/live/river-loop/session", ""); code != 204 {
		t.Fatalf("stop: expected 204, got %d", code)
	}
	if code := do("POST", "/live/river-loop/location", `{"lat":0,"lon":0.005}`); code != 409 {
		t.Fatalf("publish after stop: expected 409, got %d", code)
	}
}
