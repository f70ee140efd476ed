package normalize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
	"github.com/lueurxax/companion-radar/internal/platform/observability"
)

const (
	defaultAttempts       = 3
	defaultRequestTimeout = 30 * time.Second
	backoffStep           = 2 * time.Second
)

// retryAfterRegex pulls the server-advised wait out of rate limit messages
// shaped like "Please try again in 1.2s".
var retryAfterRegex = regexp.MustCompile(`try again in ([0-9.]+)s`)

type openaiClient struct {
	client         *openai.Client
	model          string
	attempts       int
	requestTimeout time.Duration
	limiter        *rate.Limiter
	logger         *zerolog.Logger

	// complete performs one completion round trip. Points at apiComplete in
	// production; tests substitute it.
	complete func(ctx context.Context, prompt string) (string, error)
}

func newOpenAI(opts Options, logger *zerolog.Logger) Client {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}

	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 1
	}

	c := &openaiClient{
		client:         openai.NewClient(opts.APIKey),
		model:          opts.Model,
		attempts:       opts.Attempts,
		requestTimeout: opts.RequestTimeout,
		limiter:        rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 5),
		logger:         logger,
	}
	c.complete = c.apiComplete

	return c
}

// Extract runs the chat request with bounded retries. Rate limits wait per
// the server's advice (linear backoff as fallback), a validation failure
// retries once with the stricter fallback prompt, and a bare JSON parse
// failure is terminal. On terminal failures the Result still carries the last
// raw response for the audit trail.
func (c *openaiClient) Extract(ctx context.Context, in Input) (*Result, error) {
	prompt := userPrompt(in)
	usedFallback := false

	res := &Result{
		Provider:      "openai",
		Model:         c.model,
		PromptVersion: promptVersion,
	}

	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		raw, err := c.complete(ctx, prompt)
		if err != nil {
			lastErr = err

			if wait, ok := rateLimitDelay(err, attempt); ok {
				lastErr = fmt.Errorf("%v: %w", err, coreerrors.ErrRateLimited)

				c.logger.Warn().Dur("wait", wait).Int("attempt", attempt).Msg("LLM rate limited")

				if err := sleepCtx(ctx, wait); err != nil {
					return res, err
				}

				continue
			}

			if ctx.Err() != nil {
				return res, ctx.Err()
			}

			if err := sleepCtx(ctx, backoffStep*time.Duration(attempt)); err != nil {
				return res, err
			}

			continue
		}

		res.Raw = raw

		ext, perr := parseExtraction(raw)
		if perr == nil {
			res.Extraction = ext

			return res, nil
		}

		lastErr = perr

		if errors.Is(perr, coreerrors.ErrBadJSON) {
			return res, perr
		}

		if !usedFallback {
			c.logger.Warn().Err(perr).Msg("LLM response failed validation, retrying with fallback prompt")

			prompt = userPrompt(in) + fallbackSuffix
			usedFallback = true

			continue
		}

		return res, perr
	}

	return res, fmt.Errorf("llm extract after %d attempts: %w", c.attempts, lastErr)
}

func (c *openaiClient) apiComplete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		observability.LLMRequestDuration.WithLabelValues("openai").Observe(time.Since(start).Seconds())
	}()

	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// rateLimitDelay reports whether err is a rate limit and how long to wait.
func rateLimitDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		return 0, false
	}

	if m := retryAfterRegex.FindStringSubmatch(apiErr.Message); len(m) == 2 {
		if secs, perr := strconv.ParseFloat(m[1], 64); perr == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second)), true
		}
	}

	return backoffStep * time.Duration(attempt), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
