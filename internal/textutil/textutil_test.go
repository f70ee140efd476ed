package textutil

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and strips query", "HTTPS://Example.COM/Path?utm=1#frag", "https://example.com/path"},
		{"strips trailing slash", "https://example.com/news/", "https://example.com/news"},
		{"bare host", "https://example.com/", "https://example.com"},
		{"unparseable falls back to lowercase", "not a url/", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestContentHashExternalIDWins(t *testing.T) {
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	withID := ContentHash("https://example.com/a", "guid-1", "Title", published)
	withIDOtherTitle := ContentHash("https://example.com/a", "guid-1", "Other Title", published)
	withoutID := ContentHash("https://example.com/a", "", "Title", published)

	assert.Equal(t, withID, withIDOtherTitle, "title must not matter when the feed supplied an id")
	assert.NotEqual(t, withID, withoutID)
}

func TestContentHashDateBucket(t *testing.T) {
	morning := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 8, 2, 1, 0, 0, 0, time.UTC)

	assert.Equal(t,
		ContentHash("https://example.com/a", "", "Title", morning),
		ContentHash("https://example.com/a", "", "title", evening),
		"same day and case-folded title bucket together")

	assert.NotEqual(t,
		ContentHash("https://example.com/a", "", "Title", morning),
		ContentHash("https://example.com/a", "", "Title", nextDay))

	// Zero published time falls into the "unknown" bucket.
	unknownA := ContentHash("https://example.com/a", "", "Title", time.Time{})
	unknownB := ContentHash("https://example.com/a", "", "Title", time.Time{})
	assert.Equal(t, unknownA, unknownB)
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/a/b", "example.com"},
		{"http://sub.example.org:8080/x", "sub.example.org"},
		{"www.fallback.net/path", "fallback.net"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDomain(tt.in), tt.in)
	}
}

func TestLockKeyWithinSignedRange(t *testing.T) {
	for _, fp := range []string{"", "a", "replika|2026-08-01|voice,update", strings.Repeat("x", 500)} {
		key := LockKey(fp)
		assert.GreaterOrEqual(t, key, int64(0), fp)
	}

	assert.Equal(t, LockKey("same"), LockKey("same"))
	assert.NotEqual(t, LockKey("a"), LockKey("b"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "…", Truncate("ab", 1))

	long := Truncate(strings.Repeat("a", 30), 10)
	assert.Equal(t, 10, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The Replika 2.0 App, with NEW voice-mode!")
	assert.Equal(t, []string{"replika", "app", "voice", "mode"}, tokens)
}

func TestTokenizeDropsShortAndStopwords(t *testing.T) {
	tokens := Tokenize("it is an up to because through")
	assert.Empty(t, tokens)
}

func TestKeywordsFrequencyThenInsertionOrder(t *testing.T) {
	text := "replika voice replika update voice replika chat"

	top := Keywords(text, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"replika", "voice", "update"}, top)
}

func TestKeywordsTieBreaksByInsertionOrder(t *testing.T) {
	top := Keywords("alpha beta gamma", 2)
	assert.Equal(t, []string{"alpha", "beta"}, top)
}

func TestStripHTML(t *testing.T) {
	html := `<p>Hello <b>world</b></p><script>var x = 1;</script><style>p{}</style> done`
	assert.Equal(t, "Hello world done", StripHTML(html))
}

func TestStripHTMLUnclosedBlock(t *testing.T) {
	assert.Equal(t, "before", StripHTML("before<script>var x"))
}
