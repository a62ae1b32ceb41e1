// Package anthropic implements an ensemble.Provider backed by the
// Anthropic Messages API. It is the remote-API serving path for a
// configured provider kind: the kind names the slot in the ensemble, this
// package owns the transport, prompt templating, call timeout and
// circuit-style availability tracking behind it.
package anthropic

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	ensemble "github.com/hygie-sante/ensemble-llm-go"
)

// DefaultInvokeTimeout bounds a single Invoke call unless overridden.
const DefaultInvokeTimeout = 45 * time.Second

// tripThreshold is the number of consecutive call failures after which the
// provider reports itself non-operational until a call succeeds again or
// SetOperational(true) is applied from the outside (health probe).
const tripThreshold = 3

// Provider implements the ensemble.Provider interface over the Anthropic
// API.
type Provider struct {
	kind    ensemble.ProviderKind
	model   string
	timeout time.Duration
	client  *anthropic.Client

	operational         atomic.Bool
	consecutiveFailures atomic.Int32

	invocations atomic.Int64
	failures    atomic.Int64
}

// Option configures the provider.
type Option func(*Provider)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// NewProvider creates an API-backed provider serving the given ensemble
// kind with the given model.
func NewProvider(kind ensemble.ProviderKind, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, &ensemble.ProviderError{
			Kind:    kind,
			Reason:  ensemble.FailureUnavailable,
			Message: "missing API key",
		}
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	p := &Provider{
		kind:    kind,
		model:   model,
		timeout: DefaultInvokeTimeout,
		client:  &client,
	}
	p.operational.Store(true)
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Kind returns the ensemble slot this provider serves.
func (p *Provider) Kind() ensemble.ProviderKind {
	return p.kind
}

// Operational reports the circuit state. Cheap and side-effect free.
func (p *Provider) Operational() bool {
	return p.operational.Load()
}

// SetOperational overrides the circuit state, e.g. from an out-of-band
// health probe.
func (p *Provider) SetOperational(up bool) {
	p.operational.Store(up)
	if up {
		p.consecutiveFailures.Store(0)
	}
}

// Invoke sends one analysis call bounded by the provider-owned timeout.
// Failures are classified (timeout, unavailable, malformed) and trip the
// circuit after tripThreshold consecutive occurrences. No retry happens
// here.
func (p *Provider) Invoke(ctx context.Context, prompt string, req *ensemble.AnalysisRequest) (*ensemble.AnalysisResponse, error) {
	p.invocations.Add(1)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := buildMessageParams(p.model, prompt, req)
	message, err := p.client.Messages.New(callCtx, params)
	if err != nil {
		return nil, p.recordFailure(classifyCallError(p.kind, callCtx, err))
	}

	text := extractText(message)
	recommendations, perr := parseRecommendations(p.kind, req, text)
	if perr != nil {
		return nil, p.recordFailure(perr)
	}

	p.consecutiveFailures.Store(0)

	return &ensemble.AnalysisResponse{
		RequestID:       req.RequestID,
		Recommendations: recommendations,
		Summary:         summarize(text),
		Timestamp:       time.Now().UTC(),
		ModelInfo: ensemble.ModelInfo{
			Kinds:      []ensemble.ProviderKind{p.kind},
			Version:    string(message.Model),
			TokenCount: int(message.Usage.OutputTokens),
		},
		ProcessingTimeMs: 1, // finalized by the orchestrator
	}, nil
}

// Metrics returns diagnostic counters. Never fails.
func (p *Provider) Metrics() map[string]any {
	return map[string]any{
		"available":            p.operational.Load(),
		"kind":                 p.kind.String(),
		"model":                p.model,
		"invocations":          p.invocations.Load(),
		"failures":             p.failures.Load(),
		"consecutive_failures": int64(p.consecutiveFailures.Load()),
		"timeout_ms":           p.timeout.Milliseconds(),
	}
}

// recordFailure counts a failure and trips the circuit when the
// consecutive threshold is reached.
func (p *Provider) recordFailure(err *ensemble.ProviderError) *ensemble.ProviderError {
	p.failures.Add(1)
	if p.consecutiveFailures.Add(1) >= tripThreshold {
		p.operational.Store(false)
	}
	return err
}

// classifyCallError maps an SDK/transport error onto the failure taxonomy.
func classifyCallError(kind ensemble.ProviderKind, ctx context.Context, err error) *ensemble.ProviderError {
	reason := ensemble.FailureUnavailable
	if ctx.Err() == context.DeadlineExceeded {
		reason = ensemble.FailureTimeout
	}
	return &ensemble.ProviderError{
		Kind:    kind,
		Reason:  reason,
		Message: "messages API call failed",
		Err:     err,
	}
}

// extractText concatenates the text blocks of a message.
func extractText(message *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// summarize keeps the free-text preamble of the model output (anything
// before the JSON payload) as the response summary, falling back to a
// fixed notice when the payload is pure JSON.
func summarize(text string) string {
	if i := strings.IndexAny(text, "[{"); i > 0 {
		if s := strings.TrimSpace(text[:i]); s != "" {
			return s
		}
	}
	return "Structured analysis produced by the remote model."
}
