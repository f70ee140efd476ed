package normalize

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	ogFetchTimeout = 10 * time.Second
	ogReadLimit    = 50 * 1024
	ogMaxURLLen    = 2000
	ogMaxQueryLen  = 200
	ogUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var (
	ogImageRegex      = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:image["'][^>]+content=["']([^"']+)["']`)
	twitterImageRegex = regexp.MustCompile(`(?is)<meta[^>]+name=["']twitter:image["'][^>]+content=["']([^"']+)["']`)
)

// ImageFetcher pulls the Open Graph preview image off an article page. Every
// failure path returns the empty string; a missing image never blocks a
// signal.
type ImageFetcher struct {
	client *http.Client
	logger *zerolog.Logger
}

func NewImageFetcher(logger *zerolog.Logger) *ImageFetcher {
	return &ImageFetcher{
		client: &http.Client{Timeout: ogFetchTimeout},
		logger: logger,
	}
}

// Fetch reads at most 50 KiB of the page (or up to </head>) and extracts
// og:image, falling back to twitter:image.
func (f *ImageFetcher) Fetch(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}

	req.Header.Set("User-Agent", ogUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", pageURL).Msg("og image fetch failed")

		return ""
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, ogReadLimit))
	if err != nil && len(head) == 0 {
		return ""
	}

	html := string(head)
	if idx := strings.Index(strings.ToLower(html), "</head>"); idx >= 0 {
		html = html[:idx]
	}

	for _, re := range []*regexp.Regexp{ogImageRegex, twitterImageRegex} {
		if m := re.FindStringSubmatch(html); len(m) == 2 {
			if img := validateImageURL(m[1]); img != "" {
				return img
			}
		}
	}

	return ""
}

// validateImageURL filters out dynamically rendered preview endpoints and
// oversized URLs.
func validateImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > ogMaxURLLen {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	if len(u.RawQuery) > ogMaxQueryLen {
		return ""
	}

	path := strings.ToLower(u.Path)
	if strings.Contains(path, "/api/og") || strings.Contains(path, "/og-image") {
		return ""
	}

	return raw
}
