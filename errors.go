package ensemble

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrInvalidRequest indicates the analysis request violates its
	// invariants (empty categories, temperature out of range, ...).
	ErrInvalidRequest = errors.New("ensemble: invalid request")

	// ErrInvalidConfig indicates the startup configuration is invalid
	// (unknown strategy, weights not summing to 100, ...). This is a
	// fatal startup condition, never a runtime error.
	ErrInvalidConfig = errors.New("ensemble: invalid configuration")

	// ErrNoProviderAvailable indicates no operational provider exists for
	// the requested category or for the whole ensemble.
	ErrNoProviderAvailable = errors.New("ensemble: no provider available")

	// ErrAllProvidersFailed indicates providers were operational but every
	// concurrent call failed. Distinct from ErrNoProviderAvailable so
	// callers can tell "nothing was there" from "everything broke".
	ErrAllProvidersFailed = errors.New("ensemble: all providers failed")

	// ErrNothingToCombine indicates an empty response list reached the
	// combiner. This is an internal invariant violation: orchestrator call
	// sites guarantee at least one response.
	ErrNothingToCombine = errors.New("ensemble: nothing to combine")
)

// Stable error codes surfaced to callers alongside the sentinel errors.
const (
	CodeNoProviderAvailable = "no_provider_available"
	CodeAllProvidersFailed  = "all_providers_failed"
)

// FailureReason classifies why a single provider call failed.
type FailureReason string

const (
	// FailureTimeout: the provider-owned call deadline elapsed
	FailureTimeout FailureReason = "timeout"

	// FailureUnavailable: the backend is down or unreachable
	FailureUnavailable FailureReason = "unavailable"

	// FailureMalformedResponse: the backend answered with an unparseable payload
	FailureMalformedResponse FailureReason = "malformed_response"
)

// ProviderError represents the failure of a single provider call. It is
// always caught at the orchestrator boundary and never propagated raw to
// the caller.
type ProviderError struct {
	Kind    ProviderKind  // The provider that failed
	Reason  FailureReason // Failure classification
	Message string        // Human-readable explanation
	Err     error         // Wrapped underlying error, if any
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider '%s' %s: %s (%v)", e.Kind, e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("provider '%s' %s: %s", e.Kind, e.Reason, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// OrchestratorError is the only error shape surfaced to callers of
// Process. Code is stable ("no_provider_available" or
// "all_providers_failed"); Failures carries per-provider reasons for
// diagnosis when providers were reachable but every call failed.
type OrchestratorError struct {
	Code     string
	Failures []*ProviderError
	Err      error // Wrapped sentinel (ErrNoProviderAvailable or ErrAllProvidersFailed)
}

func (e *OrchestratorError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("orchestrator error [%s]: %v", e.Code, e.Err)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("orchestrator error [%s]: %v; failures: %s", e.Code, e.Err, strings.Join(parts, "; "))
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// newNoProviderError builds the service-unavailable error for an exhausted
// or empty operational set.
func newNoProviderError() *OrchestratorError {
	return &OrchestratorError{Code: CodeNoProviderAvailable, Err: ErrNoProviderAvailable}
}

// newAllFailedError builds the service-unavailable error for a fan-out
// where every operational provider failed, carrying the individual
// failures for diagnosis.
func newAllFailedError(failures []*ProviderError) *OrchestratorError {
	return &OrchestratorError{Code: CodeAllProvidersFailed, Failures: failures, Err: ErrAllProvidersFailed}
}

// IsUnavailable checks if an error means "no result could be produced"
// (either nothing was available or everything failed). These map to a
// service-unavailable condition at the transport layer.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoProviderAvailable) || errors.Is(err, ErrAllProvidersFailed)
}

// AsProviderError extracts a *ProviderError from an error chain, if present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
