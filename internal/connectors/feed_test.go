package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/companion-radar/internal/core/domain"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Companion News</title>
  <item>
    <title>Replika ships voice mode</title>
    <link>https://example.com/replika-voice</link>
    <guid>replika-voice-1</guid>
    <pubDate>Mon, 03 Aug 2026 10:00:00 GMT</pubDate>
    <description><![CDATA[<p>Replika launched <b>voice mode</b> today.</p><script>evil()</script>]]></description>
  </item>
  <item>
    <title>No link entry</title>
    <description>dropped</description>
  </item>
</channel>
</rss>`

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()

	return &l
}

func TestFeedConnectorFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	c := NewFeedConnector(testLogger())
	cfg := SourceConfig{Name: "companion-news", Type: domain.SourceMedia, FeedURL: srv.URL, Enabled: true}

	require.True(t, c.CanHandle(cfg))

	result, err := c.Fetch(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Len(t, result.Errors, 1, "link-less entry is a per-item error")

	item := result.Items[0]
	assert.Equal(t, "replika-voice-1", item.ExternalID)
	assert.Equal(t, "https://example.com/replika-voice", item.SourceURL)
	assert.Equal(t, "Replika ships voice mode", item.Title)
	assert.Equal(t, "Replika launched voice mode today.", item.Text, "HTML and scripts stripped")
	assert.Equal(t, 2026, item.PublishedAt.Year())
	assert.Equal(t, "feed/entry", item.ContentType)
	assert.Equal(t, "Companion News", result.Metadata["feedTitle"])
}

func TestFeedConnectorHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewFeedConnector(testLogger())

	_, err := c.Fetch(context.Background(), SourceConfig{FeedURL: srv.URL})
	require.Error(t, err)
}

func TestRegistryFirstMatchWins(t *testing.T) {
	c := NewFeedConnector(testLogger())
	reg := NewRegistry(c)

	resolved, err := reg.Resolve(SourceConfig{FeedURL: "https://example.com/feed.xml"})
	require.NoError(t, err)
	assert.Same(t, Connector(c), resolved)

	_, err = reg.Resolve(SourceConfig{Name: "x-firehose"})
	require.Error(t, err)
}
