// Package normalize turns pending signals into accepted, rejected, or failed
// ones. An LLM extracts the structured interpretation; the decision logic and
// platform resolution live here, not in the model.
package normalize

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	"github.com/lueurxax/companion-radar/internal/textutil"
)

// Input is the per-signal material shown to the model.
type Input struct {
	Title       string
	SourceName  string
	URL         string
	PublishedAt time.Time
	Content     string
}

// Extraction is the validated JSON shape the model must produce.
type Extraction struct {
	Summary           string          `json:"summary"`
	SuggestedHeadline string          `json:"suggestedHeadline"`
	Categories        []string        `json:"categories"`
	Entities          domain.Entities `json:"entities"`
	Confidence        float64         `json:"confidence"`
}

// Result carries the extraction together with provenance for the audit trail.
// Raw is set even when extraction failed, so the response can be stored.
type Result struct {
	Extraction    *Extraction
	Raw           string
	Provider      string
	Model         string
	PromptVersion string
}

// Client is the LLM boundary. Extract returns ErrBadJSON when the model
// produced unparseable output and ErrValidation when the parsed shape failed
// validation after retries.
type Client interface {
	Extract(ctx context.Context, in Input) (*Result, error)
}

// Options tunes the real client.
type Options struct {
	Provider       string
	APIKey         string
	Model          string
	Attempts       int
	RequestTimeout time.Duration
	RateLimitRPS   float64
}

// NewClient picks the real client or the deterministic mock. The mock keeps
// local development and tests off the network.
func NewClient(opts Options, logger *zerolog.Logger) Client {
	if opts.Provider == "mock" || opts.APIKey == "" || opts.APIKey == "mock" {
		return &mockClient{}
	}

	return newOpenAI(opts, logger)
}

type mockClient struct{}

func (c *mockClient) Extract(_ context.Context, in Input) (*Result, error) {
	ext := &Extraction{
		Summary:           textutil.Truncate(in.Title+": "+in.Content, 500),
		SuggestedHeadline: textutil.Truncate(in.Title, 120),
		Categories:        []string{string(domain.CategoryProductUpdate)},
		Entities: domain.Entities{
			Platforms: []string{},
			Companies: []string{},
			People:    []string{},
			Topics:    textutil.Keywords(in.Title+" "+in.Content, 3),
		},
		Confidence: 0.9,
	}

	raw, _ := json.Marshal(ext)

	return &Result{
		Extraction:    ext,
		Raw:           string(raw),
		Provider:      "mock",
		Model:         "mock",
		PromptVersion: promptVersion,
	}, nil
}
