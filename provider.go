package ensemble

import (
	"context"
)

// Provider defines the interface that all model-serving backends must
// implement. This abstraction allows the orchestrator to treat the
// interchangeable backends (BioMistral, HippoMistral, MedFound, or a mock)
// uniformly while each owns its own transport, prompt templating, retry and
// circuit-breaker behavior.
//
// Types used by this interface:
//   - AnalysisRequest: defined in request.go
//   - AnalysisResponse: defined in response.go
type Provider interface {
	// Kind returns the provider identity (e.g. KindBioMistral).
	Kind() ProviderKind

	// Operational reports whether the backend can currently serve requests.
	// It must be cheap and side-effect free: the flag is owned by the
	// provider (refreshed by its own health probing) and is read on every
	// routing decision.
	Operational() bool

	// Invoke sends one analysis call to the backend (blocking).
	// The call may suspend on network I/O and is bounded by a timeout the
	// provider owns. Timeouts and malformed payloads surface as a
	// *ProviderError. The orchestrator never retries a failed Invoke;
	// retry/backoff is the provider's own concern.
	Invoke(ctx context.Context, prompt string, req *AnalysisRequest) (*AnalysisResponse, error)

	// Metrics returns best-effort diagnostic data for this backend.
	// It never fails the caller: on internal error it returns a degraded
	// map containing "available": false.
	Metrics() map[string]any
}
