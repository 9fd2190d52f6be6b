package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-day-planner/internal/app"
	"ai-day-planner/internal/config"
	"ai-day-planner/internal/environment"
	"ai-day-planner/internal/events"
	"ai-day-planner/internal/location"
	"ai-day-planner/internal/places"
	"ai-day-planner/internal/planner"
	"ai-day-planner/internal/queue"
)

func newTestServer(t *testing.T, jwtSecret string) *Server {
	t.Helper()
	cfg := &config.Config{
		ServerAddr: ":0",
		JWTSecret:  jwtSecret,
		Tunables:   config.DefaultTunables(),
	}
	q := queue.New(queue.DefaultConfig())
	a := app.New(
		cfg,
		q,
		location.NewResolver(q, cfg.Tunables),
		environment.NewFetcher(cfg.Tunables, "demo"),
		places.NewSearcher(q, cfg.Tunables),
		events.NewScraper(),
		nil,
		planner.NewOrchestrator(nil),
		nil,
	)
	return New(cfg, a)
}

func TestReadEndpoints(t *testing.T) {
	h := newTestServer(t, "").Handler()

	for _, path := range []string{"/health", "/plan", "/status"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s: content type %q", path, ct)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plan", nil))
	var state planner.PlanState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decoding plan: %v", err)
	}
	if state.Run != planner.RunIdle {
		t.Errorf("expected idle run state, got %q", state.Run)
	}
}

func TestCoordinates(t *testing.T) {
	h := newTestServer(t, "").Handler()

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"latitude": 51.5, "longitude": -0.12}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/coordinates", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/coordinates", strings.NewReader(`{"latitude": 51.5}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing longitude, got %d", rec.Code)
	}
}

func TestModifyValidation(t *testing.T) {
	h := newTestServer(t, "").Handler()

	cases := []struct {
		name string
		body string
	}{
		{"unknown scope", `{"scope": "everything"}`},
		{"block without id", `{"scope": "block"}`},
		{"location without city", `{"scope": "location"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/modify", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestAuthGuardsMutatingEndpoints(t *testing.T) {
	secret := "test-secret"
	h := newTestServer(t, secret).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := GenerateToken([]byte(secret), "browser")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/stop", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	// Reads stay open.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plan", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for unauthenticated read, got %d", rec.Code)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("another-secret")
	token, err := GenerateToken(secret, "browser")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	subject, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if subject != "browser" {
		t.Errorf("expected subject %q, got %q", "browser", subject)
	}
	if _, err := ParseToken([]byte("wrong"), token); err == nil {
		t.Error("expected error for wrong secret")
	}
}
