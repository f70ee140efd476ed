package normalize

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
)

const validResponse = `{"summary":"Replika ships voice calls.","suggestedHeadline":"Replika adds voice calls","categories":["PRODUCT_UPDATE"],"confidence":0.9}`

// scriptedClient returns an openaiClient whose completion rounds are served
// from the responses slice, recording every prompt it saw.
func scriptedClient(responses []string, errs []error, prompts *[]string) *openaiClient {
	logger := zerolog.Nop()

	c := &openaiClient{
		model:    "test",
		attempts: 3,
		logger:   &logger,
	}

	call := 0
	c.complete = func(_ context.Context, prompt string) (string, error) {
		*prompts = append(*prompts, prompt)

		i := call
		call++

		if errs != nil && errs[i] != nil {
			return "", errs[i]
		}

		return responses[i], nil
	}

	return c
}

func TestExtractRetriesValidationOnceWithFallback(t *testing.T) {
	var prompts []string

	// First response parses but fails shape validation (no categories).
	c := scriptedClient([]string{
		`{"summary":"ok","categories":[],"confidence":0.5}`,
		validResponse,
	}, nil, &prompts)

	res, err := c.Extract(context.Background(), Input{Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, res.Extraction)

	require.Len(t, prompts, 2)

	// The retry keeps the original prompt and appends the strict suffix.
	assert.True(t, strings.HasPrefix(prompts[1], prompts[0]))
	assert.Greater(t, len(prompts[1]), len(prompts[0]))
}

func TestExtractValidationTerminalAfterFallback(t *testing.T) {
	var prompts []string

	bad := `{"summary":"ok","categories":[],"confidence":0.5}`
	c := scriptedClient([]string{bad, bad}, nil, &prompts)

	res, err := c.Extract(context.Background(), Input{Title: "t"})
	require.Error(t, err)

	assert.ErrorIs(t, err, coreerrors.ErrValidation)
	assert.Len(t, prompts, 2)
	assert.Equal(t, bad, res.Raw)
}

func TestExtractBadJSONTerminal(t *testing.T) {
	var prompts []string

	c := scriptedClient([]string{"I cannot answer that."}, nil, &prompts)

	res, err := c.Extract(context.Background(), Input{Title: "t"})
	require.Error(t, err)

	assert.ErrorIs(t, err, coreerrors.ErrBadJSON)
	assert.Len(t, prompts, 1)
	assert.Equal(t, "I cannot answer that.", res.Raw)
}

func TestExtractWaitsOutRateLimit(t *testing.T) {
	var prompts []string

	rateErr := &openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "Rate limit reached. Please try again in 0.001s.",
	}

	c := scriptedClient([]string{"", validResponse}, []error{rateErr, nil}, &prompts)

	res, err := c.Extract(context.Background(), Input{Title: "t"})
	require.NoError(t, err)
	require.NotNil(t, res.Extraction)

	assert.Len(t, prompts, 2)
}

func TestRateLimitDelayParsesServerAdvice(t *testing.T) {
	apiErr := &openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "Please try again in 1.5s.",
	}

	wait, ok := rateLimitDelay(apiErr, 1)
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, wait)

	// Unparseable advice falls back to the linear step.
	apiErr.Message = "slow down"
	wait, ok = rateLimitDelay(apiErr, 2)
	require.True(t, ok)
	assert.Equal(t, 2*backoffStep, wait)

	_, ok = rateLimitDelay(errors.New("boom"), 1)
	assert.False(t, ok)
}
