package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFeedSources(t *testing.T) {
	cfg := &Config{FeedSources: []string{
		"techcrunch=https://techcrunch.com/feed",
		" verge = https://www.theverge.com/rss ",
		"https://bare.example.com/feed.xml",
		"",
	}}

	sources := cfg.ParseFeedSources()

	assert.Equal(t, []FeedSource{
		{Name: "techcrunch", URL: "https://techcrunch.com/feed"},
		{Name: "verge", URL: "https://www.theverge.com/rss"},
		{Name: "https://bare.example.com/feed.xml", URL: "https://bare.example.com/feed.xml"},
	}, sources)
}

func TestDirectModeTimeout(t *testing.T) {
	cfg := &Config{DirectModeTimeoutMS: 120000}

	assert.Equal(t, 2*time.Minute, cfg.DirectModeTimeout())
}
