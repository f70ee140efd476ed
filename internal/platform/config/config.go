// Package config loads application configuration from the environment.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`

	// Source feeds, comma separated as name=url pairs, e.g.
	// FEED_SOURCES="techcrunch=https://techcrunch.com/feed,verge=https://www.theverge.com/rss"
	FeedSources []string `env:"FEED_SOURCES" envSeparator:","`

	// Secrets accepted by POST /ingest. CronSecret is the legacy scheduler
	// token; either one authorizes a run.
	IngestSecret string `env:"INGEST_SECRET"`
	CronSecret   string `env:"CRON_SECRET"`

	// LLM
	LLMProvider   string        `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey     string        `env:"LLM_API_KEY"`
	LLMModel      string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMRateRPS    int           `env:"LLM_RATE_RPS" envDefault:"1"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	LLMMaxRetries int           `env:"LLM_MAX_RETRIES" envDefault:"3"`

	MinConfidenceThreshold float64 `env:"MIN_CONFIDENCE_THRESHOLD" envDefault:"0.6"`

	// Clustering
	ClusterSimilarityThreshold float64 `env:"CLUSTER_SIMILARITY_THRESHOLD" envDefault:"0.4"`
	ClusterTrgmThreshold       float64 `env:"CLUSTER_TRGM_THRESHOLD" envDefault:"0.2"`
	ClusterActiveDays          int     `env:"CLUSTER_ACTIVE_DAYS" envDefault:"7"`

	// Ranking
	RankingMaxDomains        int `env:"RANKING_MAX_DOMAINS" envDefault:"6"`
	RankingRecencyDecayHours int `env:"RANKING_RECENCY_DECAY_HOURS" envDefault:"24"`

	// Pipeline cycle
	DirectModeMaxItems       int   `env:"DIRECT_MODE_MAX_ITEMS" envDefault:"30"`
	DirectModeTimeoutMS      int64 `env:"DIRECT_MODE_TIMEOUT_MS" envDefault:"120000"`
	DirectModeLLMConcurrency int   `env:"DIRECT_MODE_LLM_CONCURRENCY" envDefault:"3"`

	// Periodic ingest in server mode; 0 disables the ticker.
	IngestInterval time.Duration `env:"INGEST_INTERVAL" envDefault:"0"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"0"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DirectModeTimeout returns the cycle wall-clock budget as a duration.
func (c *Config) DirectModeTimeout() time.Duration {
	return time.Duration(c.DirectModeTimeoutMS) * time.Millisecond
}

// FeedSource is one parsed FEED_SOURCES entry.
type FeedSource struct {
	Name string
	URL  string
}

// ParseFeedSources splits the name=url pairs from FEED_SOURCES. Entries
// without a name use the URL as the name.
func (c *Config) ParseFeedSources() []FeedSource {
	sources := make([]FeedSource, 0, len(c.FeedSources))

	for _, raw := range c.FeedSources {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name, url, found := strings.Cut(raw, "=")
		if !found {
			sources = append(sources, FeedSource{Name: raw, URL: raw})

			continue
		}

		sources = append(sources, FeedSource{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}

	return sources
}
