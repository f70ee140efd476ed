package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/textutil"
)

const (
	feedFetchTimeout = 30 * time.Second
	maxExtractLen    = 20000

	headerUserAgent  = "User-Agent"
	defaultUserAgent = "companion-radar/1.0 (+https://github.com/lueurxax/companion-radar)"

	contentTypeFeedEntry = "feed/entry"
)

var errFeedStatus = errors.New("feed fetch failed")

// FeedConnector handles RSS and Atom syndication feeds via gofeed.
type FeedConnector struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	logger     *zerolog.Logger
}

func NewFeedConnector(logger *zerolog.Logger) *FeedConnector {
	return &FeedConnector{
		httpClient: &http.Client{Timeout: feedFetchTimeout},
		parser:     gofeed.NewParser(),
		userAgent:  defaultUserAgent,
		logger:     logger,
	}
}

// CanHandle accepts any source that carries a feed URL.
func (c *FeedConnector) CanHandle(cfg SourceConfig) bool {
	return cfg.FeedURL != ""
}

// Fetch downloads and parses the feed, converting each entry into an Item.
// Per-entry problems go into result.Errors; only a failure to retrieve or
// parse the feed itself is returned as an error.
func (c *FeedConnector) Fetch(ctx context.Context, cfg SourceConfig) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}

	req.Header.Set(headerUserAgent, c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errFeedStatus, resp.StatusCode)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	result := &FetchResult{
		Metadata: map[string]string{
			"feedTitle": feed.Title,
			"feedType":  feed.FeedType,
		},
	}

	for _, entry := range feed.Items {
		item, err := c.convertEntry(entry)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("entry %q: %w", entry.Link, err))

			continue
		}

		result.Items = append(result.Items, item)
	}

	c.logger.Debug().
		Str("source", cfg.Name).
		Int("items", len(result.Items)).
		Int("errors", len(result.Errors)).
		Msg("feed fetched")

	return result, nil
}

var errEntryNoLink = errors.New("entry has no link")

func (c *FeedConnector) convertEntry(entry *gofeed.Item) (Item, error) {
	if entry.Link == "" {
		return Item{}, errEntryNoLink
	}

	content := entry.Content
	if content == "" {
		content = entry.Description
	}

	item := Item{
		ExternalID:  entry.GUID,
		SourceURL:   entry.Link,
		Title:       entry.Title,
		PublishedAt: entryPublishedAt(entry),
		Text:        textutil.Truncate(textutil.StripHTML(content), maxExtractLen),
		ContentType: contentTypeFeedEntry,
		Payload: map[string]any{
			"title":       entry.Title,
			"link":        entry.Link,
			"guid":        entry.GUID,
			"description": entry.Description,
			"categories":  entry.Categories,
		},
	}

	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Author = entry.Authors[0].Name
	}

	return item, nil
}

// entryPublishedAt parses the published date permissively, trying the parsed
// fields first and falling back to dateparse over the raw strings.
func entryPublishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}

	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}

	for _, raw := range []string{entry.Published, entry.Updated} {
		if raw == "" {
			continue
		}

		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}
