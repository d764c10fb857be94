package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matiasleandrokruk/hubrag/internal/infra/logging"
)

// SystemPrompt is the system message sent ahead of every single-turn request.
const SystemPrompt = "You are a helpful assistant."

// ClientOptions configures a GenerationClient.
type ClientOptions struct {
	Retry RetryPolicy
	// AttemptTimeout bounds each provider call. Zero means no per-attempt bound
	// beyond the caller's context.
	AttemptTimeout time.Duration
}

// GenerationClient turns an assembled prompt into answer text using one provider.
// Safe for concurrent use if the provider is.
type GenerationClient struct {
	provider Provider
	opts     ClientOptions
	log      *logging.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewGenerationClient wraps p. A nil logger discards output.
func NewGenerationClient(p Provider, opts ClientOptions, log *logging.Logger) *GenerationClient {
	if log == nil {
		log = logging.Nop()
	}
	return &GenerationClient{provider: p, opts: opts, log: log, sleep: sleepCtx}
}

// Complete sends prompt as a single user message and returns the answer text.
//
// Rate limits, provider errors and timeouts are retried up to
// opts.Retry.MaxAttempts with the policy's backoff. Authentication failures and
// non-retryable 4xx responses end the loop at once. Every failure is returned
// as *GenerationFailed.
func (c *GenerationClient) Complete(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	ctx, span := c.log.StartSpan(ctx, "llm.Complete")
	defer span.End()

	cfg = cfg.WithDefaults()
	req := ChatRequest{
		Model: cfg.Model,
		Messages: []Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}

	maxAttempts := c.opts.Retry.attempts()
	var last *ProviderFailure
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.opts.Retry.Backoff(attempt - 1)
			c.log.Log().Warn().
				Int("attempt", attempt-1).
				Str("class", string(last.Class)).
				Str("backoff", delay.String()).
				Msg("generation attempt failed, retrying")
			if err := c.sleep(ctx, delay); err != nil {
				return "", &GenerationFailed{Class: Timeout, Attempts: attempt - 1, Cause: err}
			}
		}

		text, failure := c.attempt(ctx, req)
		if failure == nil {
			return text, nil
		}
		last = failure

		if !failure.Retryable || ctx.Err() != nil {
			return "", c.fail(failure, attempt)
		}
	}
	return "", c.fail(last, maxAttempts)
}

func (c *GenerationClient) attempt(ctx context.Context, req ChatRequest) (string, *ProviderFailure) {
	actx := ctx
	if c.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.opts.AttemptTimeout)
		defer cancel()
	}

	resp, err := c.provider.ChatCompletion(actx, req)
	if err != nil {
		// The attempt deadline wins over whatever the adapter made of it.
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return "", &ProviderFailure{Class: Timeout, Retryable: true, Err: err}
		}
		return "", Classify(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", malformed("empty completion from %s", c.provider.ModelInfo().Provider)
	}
	return resp.Content, nil
}

func (c *GenerationClient) fail(f *ProviderFailure, attempts int) error {
	c.log.Log().Error().
		Int("attempts", attempts).
		Str("class", string(f.Class)).
		Err(f).
		Msg("generation failed")
	return &GenerationFailed{Class: f.Class, Attempts: attempts, Cause: f}
}
