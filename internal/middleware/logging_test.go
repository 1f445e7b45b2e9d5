package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestLogger(t *testing.T) {
	issuer := newIssuer(t)
	tok, _ := issuer.Issue("user-7")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rec := &fakeRecorder{}

	r := chi.NewRouter()
	r.Use(RequestLogger(logger, rec))
	r.With(RequireAuth(issuer, nil)).Get("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/abc", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}

	want := map[string]any{
		"msg":     "http_request",
		"level":   "WARN",
		"method":  "GET",
		"path":    "/api/users/abc",
		"route":   "/api/users/{id}",
		"status":  float64(http.StatusTeapot),
		"user_id": "user-7",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("missing duration_ms")
	}

	if len(rec.http) != 1 || rec.http[0] != "GET /api/users/{id}" {
		t.Errorf("recorded = %v", rec.http)
	}
}

func TestRequestLogger_Unmatched(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rec := &fakeRecorder{}

	r := chi.NewRouter()
	r.Use(RequestLogger(logger, rec))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["route"] != "unmatched" {
		t.Errorf("route = %v, want unmatched", entry["route"])
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v, want 404", entry["status"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Error("unexpected user_id for anonymous request")
	}
}
