package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	ensemble "github.com/hygie-sante/ensemble-llm-go"
)

func testRequest(categories ...ensemble.AnalysisCategory) *ensemble.AnalysisRequest {
	return &ensemble.AnalysisRequest{
		RequestID:   "req-mock",
		Medications: []string{"warfarin", "aspirin", "metformin"},
		Categories:  categories,
		Temperature: 0.2,
	}
}

func TestInvoke_OneRecommendationPerCategory(t *testing.T) {
	p := NewProvider(ensemble.KindBioMistral, WithLatency(time.Millisecond))

	resp, err := p.Invoke(context.Background(), "prompt", testRequest(
		ensemble.CategoryDrugInteraction,
		ensemble.CategoryDosageAdjustment,
	))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if resp.RequestID != "req-mock" {
		t.Errorf("RequestID = %q, want req-mock", resp.RequestID)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(resp.Recommendations))
	}

	// Interaction findings involve two drugs, the rest one.
	interaction := resp.Recommendations[0]
	if interaction.Category != ensemble.CategoryDrugInteraction {
		t.Errorf("first recommendation category = %s, want drug_interaction", interaction.Category)
	}
	if len(interaction.Medications) != 2 {
		t.Errorf("interaction involves %d medications, want 2", len(interaction.Medications))
	}
	if len(resp.Recommendations[1].Medications) != 1 {
		t.Errorf("dosage finding involves %d medications, want 1", len(resp.Recommendations[1].Medications))
	}

	if len(resp.ModelInfo.Kinds) != 1 || resp.ModelInfo.Kinds[0] != ensemble.KindBioMistral {
		t.Errorf("ModelInfo.Kinds = %v, want [biomistral]", resp.ModelInfo.Kinds)
	}
	if resp.ModelInfo.TokenCount <= 0 {
		t.Error("TokenCount must be positive")
	}
	if resp.Summary == "" {
		t.Error("Summary must not be empty")
	}
}

func TestInvoke_ConfidenceIsDeterministic(t *testing.T) {
	p := NewProvider(ensemble.KindMedFound, WithLatency(time.Millisecond))
	req := testRequest(ensemble.CategoryCostOptimization)

	first, err := p.Invoke(context.Background(), "prompt", req)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	second, err := p.Invoke(context.Background(), "prompt", req)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	a := first.Recommendations[0].Confidence.Score
	b := second.Recommendations[0].Confidence.Score
	if a != b {
		t.Errorf("scores differ across identical calls: %f vs %f", a, b)
	}
	if a < 0.50 || a > 0.99 {
		t.Errorf("score %f outside [0.50, 0.99]", a)
	}
}

func TestSetOperational(t *testing.T) {
	p := NewProvider(ensemble.KindHippoMistral)

	if !p.Operational() {
		t.Error("new provider must start operational")
	}
	p.SetOperational(false)
	if p.Operational() {
		t.Error("Operational() = true after SetOperational(false)")
	}
	p.SetOperational(true)
	if !p.Operational() {
		t.Error("Operational() = false after SetOperational(true)")
	}
}

func TestFailNextWith(t *testing.T) {
	p := NewProvider(ensemble.KindBioMistral, WithLatency(time.Millisecond))
	p.FailNextWith(ensemble.FailureUnavailable)

	_, err := p.Invoke(context.Background(), "prompt", testRequest(ensemble.CategoryDrugInteraction))
	pe, ok := ensemble.AsProviderError(err)
	if !ok {
		t.Fatalf("Invoke() error = %v, want *ProviderError", err)
	}
	if pe.Reason != ensemble.FailureUnavailable {
		t.Errorf("failure reason = %s, want unavailable", pe.Reason)
	}
	if pe.Kind != ensemble.KindBioMistral {
		t.Errorf("failure kind = %s, want biomistral", pe.Kind)
	}

	// The script persists until cleared.
	if _, err := p.Invoke(context.Background(), "prompt", testRequest(ensemble.CategoryDrugInteraction)); err == nil {
		t.Error("second Invoke() succeeded, want scripted failure to persist")
	}
	p.ClearFailure()
	if _, err := p.Invoke(context.Background(), "prompt", testRequest(ensemble.CategoryDrugInteraction)); err != nil {
		t.Errorf("Invoke() after ClearFailure() error = %v", err)
	}
}

func TestInvoke_CancellationBecomesTimeout(t *testing.T) {
	p := NewProvider(ensemble.KindMedFound, WithLatency(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := p.Invoke(ctx, "prompt", testRequest(ensemble.CategoryDrugInteraction))
	pe, ok := ensemble.AsProviderError(err)
	if !ok {
		t.Fatalf("Invoke() error = %v, want *ProviderError", err)
	}
	if pe.Reason != ensemble.FailureTimeout {
		t.Errorf("failure reason = %s, want timeout", pe.Reason)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error does not unwrap to context.DeadlineExceeded: %v", err)
	}
}

func TestMetrics_CountsInvocationsAndFailures(t *testing.T) {
	p := NewProvider(ensemble.KindBioMistral, WithLatency(time.Millisecond))

	if _, err := p.Invoke(context.Background(), "prompt", testRequest(ensemble.CategoryDrugInteraction)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	p.FailNextWith(ensemble.FailureMalformedResponse)
	if _, err := p.Invoke(context.Background(), "prompt", testRequest(ensemble.CategoryDrugInteraction)); err == nil {
		t.Fatal("Invoke() succeeded, want scripted failure")
	}

	m := p.Metrics()
	if m["invocations"] != int64(2) {
		t.Errorf("invocations = %v, want 2", m["invocations"])
	}
	if m["failures"] != int64(1) {
		t.Errorf("failures = %v, want 1", m["failures"])
	}
	if m["kind"] != "biomistral" {
		t.Errorf("kind = %v, want biomistral", m["kind"])
	}
	if m["available"] != true {
		t.Errorf("available = %v, want true", m["available"])
	}
}
