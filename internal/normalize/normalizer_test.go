package normalize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/companion-radar/internal/core/domain"
)

type fakeStore struct {
	finished  []*domain.Signal
	linked    [][]string
	platforms []domain.Platform
}

func (f *fakeStore) FinishNormalization(_ context.Context, s *domain.Signal) error {
	f.finished = append(f.finished, s)

	return nil
}

func (f *fakeStore) LinkSignalPlatforms(_ context.Context, _ string, platformIDs []string) error {
	f.linked = append(f.linked, platformIDs)

	return nil
}

func (f *fakeStore) PlatformsBySlugs(_ context.Context, _ []string) ([]domain.Platform, error) {
	return f.platforms, nil
}

type fakeClient struct {
	res   *Result
	err   error
	calls int
}

func (f *fakeClient) Extract(context.Context, Input) (*Result, error) {
	f.calls++

	return f.res, f.err
}

func extractionResult(confidence float64) *Result {
	return &Result{
		Extraction: &Extraction{
			Summary:    "Replika ships voice calls to all users.",
			Categories: []string{"PRODUCT_UPDATE"},
			Confidence: confidence,
		},
		Raw:      `{"summary":"Replika ships voice calls to all users."}`,
		Provider: "test",
		Model:    "test",
	}
}

func newTestNormalizer(fs *fakeStore, fc *fakeClient) *Normalizer {
	logger := zerolog.Nop()

	return New(fs, fc, nil, 0.6, &logger)
}

func TestNormalizeShortTextBoundary(t *testing.T) {
	fs := &fakeStore{}
	fc := &fakeClient{res: extractionResult(0.9)}
	n := newTestNormalizer(fs, fc)

	// 20 + 29 = 49 runes; the joining space must not count.
	status, err := n.Normalize(context.Background(), Task{
		SignalID: "sig-1",
		Title:    strings.Repeat("a", 20),
		RawText:  strings.Repeat("b", 29),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRejected, status)
	assert.Zero(t, fc.calls)

	require.Len(t, fs.finished, 1)
	assert.Equal(t, "text too short", fs.finished[0].IngestReason)
	assert.Equal(t, "en", fs.finished[0].Language)

	// One more rune reaches the cutoff and the model runs.
	status, err = n.Normalize(context.Background(), Task{
		SignalID: "sig-2",
		Title:    strings.Repeat("a", 20),
		RawText:  strings.Repeat("b", 30),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAccepted, status)
	assert.Equal(t, 1, fc.calls)
}

func TestNormalizeConfidenceBoundary(t *testing.T) {
	longText := strings.Repeat("replika voice calls ", 10)

	tests := []struct {
		name       string
		confidence float64
		want       domain.IngestStatus
	}{
		{"exactly at threshold accepts", 0.6, domain.StatusAccepted},
		{"just below threshold rejects", 0.59, domain.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{}
			n := newTestNormalizer(fs, &fakeClient{res: extractionResult(tt.confidence)})

			status, err := n.Normalize(context.Background(), Task{SignalID: "sig-1", Title: "t", RawText: longText})
			require.NoError(t, err)

			assert.Equal(t, tt.want, status)

			require.Len(t, fs.finished, 1)
			assert.Equal(t, "en", fs.finished[0].Language)

			if tt.want == domain.StatusRejected {
				assert.Contains(t, fs.finished[0].IngestReason, "below threshold")
			}
		})
	}
}

func TestNormalizeLLMFailureKeepsProvenance(t *testing.T) {
	fs := &fakeStore{}
	fc := &fakeClient{
		res: &Result{Raw: "partial output", Provider: "openai", Model: "gpt-4o-mini"},
		err: errors.New("model exploded"),
	}
	n := newTestNormalizer(fs, fc)

	status, err := n.Normalize(context.Background(), Task{
		SignalID: "sig-1",
		Title:    "t",
		RawText:  strings.Repeat("replika voice calls ", 10),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, status)

	require.Len(t, fs.finished, 1)
	assert.Equal(t, "partial output", fs.finished[0].RawResponse)
	assert.Equal(t, "openai", fs.finished[0].LLMProvider)
	assert.Contains(t, fs.finished[0].IngestReason, "model exploded")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Character.AI", "character.ai"},
		{"Janitor AI", "janitor-ai"},
		{"  Replika  ", "replika"},
		{"a  b\tc", "a-b-c"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.input), "input %q", tt.input)
	}
}

func TestMockClientExtract(t *testing.T) {
	c := NewClient(Options{APIKey: "mock"}, nil)

	res, err := c.Extract(context.Background(), Input{
		Title:   "Replika launches voice calls",
		Content: "Replika users can now place voice calls with their companions.",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Extraction)

	assert.Equal(t, "mock", res.Provider)
	assert.NotEmpty(t, res.Raw)
	assert.GreaterOrEqual(t, res.Extraction.Confidence, 0.6)

	// Mock output must pass the same validation as real output.
	require.NoError(t, validateExtraction(res.Extraction))
}
