package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ai-day-planner/internal/shared"
)

// StatusSink receives human-readable progress text per attempt. It is an
// optional observer; a nil sink disables reporting.
type StatusSink func(text string)

// MetaRecorder persists per-call accounting. Implemented by metrics.Store.
type MetaRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// Gateway wraps a TextGenerator with per-attempt timeouts, linear-backoff
// retries, and response sanitization. Exhausted retries yield (nil, nil) so
// the caller substitutes its own fallback; only a user-initiated stop
// surfaces as an error (ErrStopped).
type Gateway struct {
	gen      TextGenerator
	retry    RetryConfig
	recorder MetaRecorder
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) GatewayOption {
	return func(g *Gateway) {
		g.retry = cfg
	}
}

// WithMetaRecorder sets the call accounting store.
func WithMetaRecorder(r MetaRecorder) GatewayOption {
	return func(g *Gateway) {
		g.recorder = r
	}
}

// NewGateway creates a Gateway around the given text generator.
func NewGateway(gen TextGenerator, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		gen:   gen,
		retry: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete sends the prompt and returns the sanitized JSON value from the
// response. agentName tags the call for accounting.
func (g *Gateway) Complete(ctx context.Context, agentName, prompt string, sink StatusSink) (json.RawMessage, error) {
	start := time.Now()
	var usage shared.TokenUsage
	attempts := 0

	defer func() {
		g.recordMeta(shared.AgentMeta{
			AgentName: agentName,
			Usage:     usage,
			Latency:   time.Since(start),
			Attempts:  attempts,
		})
	}()

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		attempts = attempt
		if err := ctx.Err(); err != nil {
			return nil, ErrStopped
		}

		report(sink, attemptLabel(attempt, g.retry.MaxAttempts))

		value, err := g.tryOnce(ctx, prompt, &usage)
		if err == nil && value != nil {
			return value, nil
		}
		if errors.Is(err, ErrStopped) {
			return nil, ErrStopped
		}
		if IsFatal(err) {
			log.Printf("Model call for %s failed fatally: %v", agentName, err)
			break
		}
		if err != nil {
			log.Printf("Model call for %s failed (attempt %d/%d): %v", agentName, attempt, g.retry.MaxAttempts, err)
		} else {
			log.Printf("Model response for %s had no usable JSON (attempt %d/%d)", agentName, attempt, g.retry.MaxAttempts)
		}

		if attempt < g.retry.MaxAttempts {
			report(sink, "Retrying...")
			select {
			case <-ctx.Done():
				return nil, ErrStopped
			case <-time.After(g.retry.BackoffBase * time.Duration(attempt)):
			}
		}
	}

	report(sink, "Model unavailable, using fallback")
	return nil, nil
}

// tryOnce runs a single attempt under its own deadline. A nil value with a
// nil error means the response carried no parseable JSON.
func (g *Gateway) tryOnce(ctx context.Context, prompt string, usage *shared.TokenUsage) (json.RawMessage, error) {
	attemptCtx := ctx
	if g.retry.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.retry.AttemptTimeout)
		defer cancel()
	}

	resp, err := g.gen.GenerateContent(attemptCtx, prompt)
	if err != nil {
		// An attempt deadline is a transient failure; only the parent
		// context being cancelled means the user stopped the run.
		if errors.Is(err, ErrStopped) && ctx.Err() == nil {
			return nil, NewTransientError(fmt.Errorf("attempt timed out"))
		}
		return nil, err
	}

	usage.PromptTokens += resp.Usage.PromptTokens
	usage.CompletionTokens += resp.Usage.CompletionTokens
	usage.TotalTokens += resp.Usage.TotalTokens
	usage.Model = resp.Usage.Model

	return ExtractJSON(resp.Content), nil
}

// Close releases the underlying generator when it holds a connection, as
// the Gemini client does. Generators without a Close are a no-op.
func (g *Gateway) Close() error {
	if c, ok := g.gen.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (g *Gateway) recordMeta(meta shared.AgentMeta) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordMeta(meta); err != nil {
		log.Printf("Warning: failed to record metrics for %s: %v", meta.AgentName, err)
	}
}

func report(sink StatusSink, text string) {
	if sink != nil {
		sink(text)
	}
}

func attemptLabel(attempt, max int) string {
	if attempt == 1 {
		return "Thinking..."
	}
	return fmt.Sprintf("Thinking... (attempt %d/%d)", attempt, max)
}
