package ensemble

import (
	"fmt"
)

// Request size bounds. PatientContext is an opaque blob assembled by the
// caller (demographics, problem list); it is size-bounded so a single
// request cannot blow up provider prompts.
const (
	// MaxMedications is the maximum number of medication entries per request.
	MaxMedications = 100

	// MaxPatientContextBytes bounds the opaque patient context blob.
	MaxPatientContextBytes = 32 * 1024
)

// AnalysisRequest contains the parameters for one medication analysis call.
// A request is created per call and read-only thereafter; the orchestrator
// derives singleton-category sub-requests from it but never mutates it.
type AnalysisRequest struct {
	// RequestID uniquely identifies the request. Callers may leave it
	// empty, in which case the orchestrator assigns a UUID.
	RequestID string

	// PatientContext is an opaque, size-bounded context blob.
	PatientContext string

	// Medications is the ordered medication list (1..MaxMedications).
	Medications []string

	// Categories is the non-empty set of problem categories to analyze.
	Categories []AnalysisCategory

	// ModelPreference optionally names a model variant the providers may
	// honor (e.g. "biomistral-7b"). Advisory only.
	ModelPreference string

	// MaxTokens caps the generated output. Zero means provider default.
	MaxTokens int

	// Temperature controls sampling randomness (0.0-1.0).
	Temperature float64
}

// Validate checks the request invariants: categories non-empty, valid and
// duplicate-free; medications within bounds; temperature in range; patient
// context within its size bound. A failed check wraps ErrInvalidRequest.
func (r *AnalysisRequest) Validate() error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("%w: at least one analysis category is required", ErrInvalidRequest)
	}
	seen := make(map[AnalysisCategory]bool, len(r.Categories))
	for _, c := range r.Categories {
		if !c.IsValid() {
			return fmt.Errorf("%w: unknown analysis category '%s'", ErrInvalidRequest, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate analysis category '%s'", ErrInvalidRequest, c)
		}
		seen[c] = true
	}

	if len(r.Medications) == 0 {
		return fmt.Errorf("%w: at least one medication is required", ErrInvalidRequest)
	}
	if len(r.Medications) > MaxMedications {
		return fmt.Errorf("%w: too many medications (%d, max %d)", ErrInvalidRequest, len(r.Medications), MaxMedications)
	}

	if r.Temperature < 0.0 || r.Temperature > 1.0 {
		return fmt.Errorf("%w: temperature must be between 0.0 and 1.0, got %f", ErrInvalidRequest, r.Temperature)
	}

	if r.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must be non-negative, got %d", ErrInvalidRequest, r.MaxTokens)
	}

	if len(r.PatientContext) > MaxPatientContextBytes {
		return fmt.Errorf("%w: patient context exceeds %d bytes", ErrInvalidRequest, MaxPatientContextBytes)
	}

	return nil
}

// subRequest derives a singleton-category copy of the request, used by the
// 2-3 category path. The sub-request carries the parent ID suffixed with
// the category so per-provider logs stay traceable.
func (r *AnalysisRequest) subRequest(category AnalysisCategory) *AnalysisRequest {
	sub := *r
	sub.RequestID = r.RequestID + "-" + category.String()
	sub.Categories = []AnalysisCategory{category}
	return &sub
}
