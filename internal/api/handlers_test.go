package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testServer() *Server {
	logger := zerolog.Nop()

	return &Server{
		ingestSecret: "top-secret",
		cronSecret:   "cron-secret",
		logger:       &logger,
	}
}

func TestHandleClustersRejectsBadParams(t *testing.T) {
	s := testServer()

	tests := []struct {
		name  string
		query string
	}{
		{"unknown category", "?category=BREAKING_NEWS"},
		{"bad window", "?window=12h"},
		{"limit too small", "?limit=0"},
		{"limit too large", "?limit=51"},
		{"limit not a number", "?limit=many"},
		{"bad cursor", "?cursor=%21%21%21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/clusters"+tt.query, nil)
			rec := httptest.NewRecorder()

			s.handleClusters(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestAuthorized(t *testing.T) {
	s := testServer()

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  bool
	}{
		{
			name:  "bearer ingest secret",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer top-secret") },
			want:  true,
		},
		{
			name:  "bearer cron secret",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer cron-secret") },
			want:  true,
		},
		{
			name:  "cron header",
			setup: func(r *http.Request) { r.Header.Set("X-Cron-Secret", "cron-secret") },
			want:  true,
		},
		{
			name:  "legacy query param",
			setup: func(r *http.Request) { r.URL.RawQuery = "secret=top-secret" },
			want:  true,
		},
		{
			name:  "wrong token",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			want:  false,
		},
		{
			name:  "no credentials",
			setup: func(*http.Request) {},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
			tt.setup(req)

			assert.Equal(t, tt.want, s.authorized(req))
		})
	}
}

func TestAuthorizedWithoutConfiguredSecrets(t *testing.T) {
	logger := zerolog.Nop()
	s := &Server{logger: &logger}

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	req.Header.Set("Authorization", "Bearer anything")

	// An empty configured secret must never match.
	assert.False(t, s.authorized(req))

	req.Header.Set("Authorization", "Bearer ")
	assert.False(t, s.authorized(req))
}
