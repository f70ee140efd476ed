package normalize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestImageFetcher(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "og image",
			body: `<html><head><meta property="og:image" content="https://cdn.example.com/a.jpg"/></head><body></body></html>`,
			want: "https://cdn.example.com/a.jpg",
		},
		{
			name: "twitter image fallback",
			body: `<html><head><meta name="twitter:image" content="https://cdn.example.com/t.png"></head></html>`,
			want: "https://cdn.example.com/t.png",
		},
		{
			name: "no image",
			body: `<html><head><title>nothing</title></head></html>`,
			want: "",
		},
		{
			name: "og image after head is ignored",
			body: `<html><head></head><body><meta property="og:image" content="https://cdn.example.com/late.jpg"></body></html>`,
			want: "",
		},
		{
			name: "generated preview endpoint skipped",
			body: `<html><head><meta property="og:image" content="https://example.com/api/og?title=hi"></head></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f := NewImageFetcher(&logger)
			assert.Equal(t, tt.want, f.Fetch(context.Background(), srv.URL))
		})
	}
}

func TestImageFetcherServerError(t *testing.T) {
	logger := zerolog.Nop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewImageFetcher(&logger)
	assert.Empty(t, f.Fetch(context.Background(), srv.URL))
	assert.Empty(t, f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable"))
}

func TestValidateImageURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain https", "https://cdn.example.com/img.jpg", "https://cdn.example.com/img.jpg"},
		{"plain http", "http://cdn.example.com/img.jpg", "http://cdn.example.com/img.jpg"},
		{"relative path", "/images/a.jpg", ""},
		{"data url", "data:image/png;base64,AAAA", ""},
		{"too long", "https://example.com/" + strings.Repeat("a", 2000), ""},
		{"long query", "https://example.com/i.jpg?" + strings.Repeat("q", 201), ""},
		{"og api path", "https://example.com/api/og/story", ""},
		{"og-image path", "https://example.com/og-image/story.png", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validateImageURL(tt.input))
		})
	}
}
