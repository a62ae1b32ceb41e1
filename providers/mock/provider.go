// Package mock implements a scripted ensemble.Provider that synthesizes
// clinical recommendations from lorem ipsum text. Used for testing and
// development without model weights or API keys.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"

	loremgen "github.com/bozaro/golorem"

	ensemble "github.com/hygie-sante/ensemble-llm-go"
)

// Provider is a mock backend assigned one of the fixed provider kinds.
// Its operational flag and failure script are settable at runtime, which
// makes failover and ensemble paths easy to exercise.
type Provider struct {
	kind    ensemble.ProviderKind
	latency time.Duration

	generator *loremgen.Lorem

	operational atomic.Bool
	failWith    atomic.Pointer[ensemble.ProviderError]

	invocations atomic.Int64
	failures    atomic.Int64
}

// Option configures a mock provider.
type Option func(*Provider)

// WithLatency sets the simulated per-call latency.
// The default is 10ms; "slow" deployments can use seconds to exercise
// timeout handling.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

// NewProvider creates a mock provider for the given kind.
func NewProvider(kind ensemble.ProviderKind, opts ...Option) *Provider {
	p := &Provider{
		kind:      kind,
		latency:   10 * time.Millisecond,
		generator: loremgen.New(),
	}
	p.operational.Store(true)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Kind returns the provider identity.
func (p *Provider) Kind() ensemble.ProviderKind {
	return p.kind
}

// Operational reports the scripted availability flag.
func (p *Provider) Operational() bool {
	return p.operational.Load()
}

// SetOperational flips the availability flag, simulating a health probe
// marking the backend up or down.
func (p *Provider) SetOperational(up bool) {
	p.operational.Store(up)
}

// FailNextWith scripts every subsequent Invoke to fail with the given
// reason until cleared with a nil reason pointer.
func (p *Provider) FailNextWith(reason ensemble.FailureReason) {
	p.failWith.Store(&ensemble.ProviderError{
		Kind:    p.kind,
		Reason:  reason,
		Message: "scripted failure",
	})
}

// ClearFailure removes a scripted failure.
func (p *Provider) ClearFailure() {
	p.failWith.Store(nil)
}

// Invoke synthesizes one recommendation per requested category after the
// configured latency. The confidence score is a stable hash of the
// signature inputs, so repeated calls produce identical output.
func (p *Provider) Invoke(ctx context.Context, prompt string, req *ensemble.AnalysisRequest) (*ensemble.AnalysisResponse, error) {
	p.invocations.Add(1)

	if scripted := p.failWith.Load(); scripted != nil {
		p.failures.Add(1)
		return nil, scripted
	}

	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		p.failures.Add(1)
		return nil, &ensemble.ProviderError{
			Kind:    p.kind,
			Reason:  ensemble.FailureTimeout,
			Message: "invocation cancelled",
			Err:     ctx.Err(),
		}
	}

	recommendations := make([]ensemble.Recommendation, 0, len(req.Categories))
	tokens := 0
	for i, category := range req.Categories {
		meds := involvedMedications(req.Medications, category)
		rationale := p.generator.Sentence(8, 14)
		rec, err := ensemble.NewRecommendation(
			fmt.Sprintf("%s-%s-%d", p.kind, category, i),
			category,
			p.generator.Sentence(10, 18),
			p.generator.Sentence(6, 12),
			meds,
			ensemble.Confidence{
				Score:     stableScore(p.kind, category, meds),
				Rationale: rationale,
			},
			[]ensemble.Source{{Type: "mock", Reference: "synthetic corpus"}},
		)
		if err != nil {
			p.failures.Add(1)
			return nil, &ensemble.ProviderError{
				Kind:    p.kind,
				Reason:  ensemble.FailureMalformedResponse,
				Message: "failed to synthesize recommendation",
				Err:     err,
			}
		}
		recommendations = append(recommendations, *rec)
		tokens += len(strings.Fields(rec.Description)) + len(strings.Fields(rec.Suggestion))
	}

	return &ensemble.AnalysisResponse{
		RequestID:       req.RequestID,
		Recommendations: recommendations,
		Summary:         p.generator.Paragraph(2, 3),
		Timestamp:       time.Now().UTC(),
		ModelInfo: ensemble.ModelInfo{
			Kinds:      []ensemble.ProviderKind{p.kind},
			Version:    string(p.kind) + "-mock",
			TokenCount: tokens,
		},
		ProcessingTimeMs: p.latency.Milliseconds() + 1,
	}, nil
}

// Metrics returns diagnostic counters. Never fails.
func (p *Provider) Metrics() map[string]any {
	return map[string]any{
		"available":   p.operational.Load(),
		"kind":        p.kind.String(),
		"invocations": p.invocations.Load(),
		"failures":    p.failures.Load(),
		"latency_ms":  p.latency.Milliseconds(),
		"mock":        true,
	}
}

// involvedMedications picks the medications a category's finding covers:
// interaction-style categories involve the first two drugs, the rest
// involve the first one.
func involvedMedications(medications []string, category ensemble.AnalysisCategory) []string {
	switch category {
	case ensemble.CategoryDrugInteraction, ensemble.CategoryTherapeuticRedundancy:
		if len(medications) >= 2 {
			return medications[:2]
		}
	}
	return medications[:1]
}

// stableScore derives a deterministic confidence in [0.50, 0.99] from the
// kind, category and medications.
func stableScore(kind ensemble.ProviderKind, category ensemble.AnalysisCategory, meds []string) float64 {
	h := fnv.New32a()
	h.Write([]byte(kind))
	h.Write([]byte(category))
	for _, m := range meds {
		h.Write([]byte(m))
	}
	return 0.50 + float64(h.Sum32()%50)/100.0
}
