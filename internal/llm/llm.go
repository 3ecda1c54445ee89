package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/tenderwatch/internal/config"
)

// Options tune a single generation request.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	IsConfigured() bool
}

// ErrNotConfigured is returned when no usable provider could be built.
var ErrNotConfigured = errors.New("llm provider not configured")

// RateLimitError signals a quota rejection. RetryAfter is zero when the
// provider gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry in %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

var retryInPattern = regexp.MustCompile(`retry in ([\d\.]+)s`)

// ParseRetryAfter reads a "retry in 12.5s" hint from a provider message.
func ParseRetryAfter(msg string) (time.Duration, bool) {
	m := retryInPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// parseRetryAfterHeader handles the delta-seconds form of Retry-After.
func parseRetryAfterHeader(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// rateLimited wraps err with the retry hint found in its message.
func rateLimited(err error) *RateLimitError {
	d, _ := ParseRetryAfter(err.Error())
	return &RateLimitError{RetryAfter: d, Err: err}
}

// CreateProvider builds the provider named in cfg. Gemini is the default;
// ollama falls back to OpenAI when the local server is unreachable.
func CreateProvider(ctx context.Context, cfg config.Level2) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		p, err := NewGeminiProvider(ctx, cfg.Model, cfg.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		slog.Info("using Gemini", "model", cfg.Model)
		return p, nil
	case "vertex":
		p, err := NewVertexProvider(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.Model)
		if err != nil {
			return nil, err
		}
		slog.Info("using Vertex AI", "model", cfg.Model, "project", cfg.VertexProject)
		return p, nil
	case "ollama":
		p := NewOllamaProvider(cfg.Model, cfg.OllamaURL)
		if p.IsConfigured() {
			slog.Info("using Ollama", "model", cfg.Model)
			return p, nil
		}
		slog.Warn("Ollama not available, trying OpenAI fallback")
		fallthrough
	case "openai":
		p := NewOpenAIProvider(cfg.OpenAIModel, "OPENAI_API_KEY")
		if p.IsConfigured() {
			slog.Info("using OpenAI", "model", cfg.OpenAIModel)
			return p, nil
		}
		return nil, fmt.Errorf("%w: set OPENAI_API_KEY or start Ollama", ErrNotConfigured)
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
