package ensemble

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Source is a literature or terminology reference backing a recommendation.
type Source struct {
	// Type is the reference type (e.g. "guideline", "rct", "monograph")
	Type string

	// Reference is the citation text
	Reference string

	// URL is an optional link to the source
	URL *string

	// Year is the optional publication year
	Year *int
}

// Confidence expresses how strongly a provider stands behind a
// recommendation.
type Confidence struct {
	// Score is the confidence score in [0.0, 1.0]
	Score float64

	// Rationale is a non-empty explanation of the score
	Rationale string

	// EvidenceGrade is an optional grading (e.g. "A", "B", "expert-opinion")
	EvidenceGrade *string
}

// Recommendation is a single actionable finding produced by a provider.
type Recommendation struct {
	ID          string
	Category    AnalysisCategory
	Description string
	Suggestion  string

	// Medications names the drugs involved (at least one)
	Medications []string

	Confidence Confidence

	// Sources backs the recommendation (at least one)
	Sources []Source
}

// NewRecommendation constructs a Recommendation, enforcing the invariants
// the data model promises: score bounds, non-empty rationale, at least one
// medication and one source.
func NewRecommendation(id string, category AnalysisCategory, description, suggestion string, medications []string, confidence Confidence, sources []Source) (*Recommendation, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("recommendation '%s': unknown category '%s'", id, category)
	}
	if confidence.Score < 0.0 || confidence.Score > 1.0 {
		return nil, fmt.Errorf("recommendation '%s': confidence score %f out of [0,1]", id, confidence.Score)
	}
	if strings.TrimSpace(confidence.Rationale) == "" {
		return nil, fmt.Errorf("recommendation '%s': confidence rationale must not be empty", id)
	}
	if len(medications) == 0 {
		return nil, fmt.Errorf("recommendation '%s': at least one medication is required", id)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("recommendation '%s': at least one source is required", id)
	}

	return &Recommendation{
		ID:          id,
		Category:    category,
		Description: description,
		Suggestion:  suggestion,
		Medications: medications,
		Confidence:  confidence,
		Sources:     sources,
	}, nil
}

// Signature derives the key that identifies "the same" recommendation
// across providers: the category plus the sorted, deduplicated, lowercased
// medication names. Used only transiently during combination.
func (r *Recommendation) Signature() string {
	names := make([]string, 0, len(r.Medications))
	seen := make(map[string]bool, len(r.Medications))
	for _, m := range r.Medications {
		n := strings.ToLower(strings.TrimSpace(m))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	sort.Strings(names)
	return r.Category.String() + ":" + strings.Join(names, "|")
}

// ModelInfo records which providers contributed to a response.
type ModelInfo struct {
	// Kinds is the set of contributing provider identities
	Kinds []ProviderKind

	// Version is the model or ensemble version tag
	Version string

	// TokenCount is the total number of generated tokens
	TokenCount int
}

// AnalysisResponse is the reconciled result of one orchestrated call. It is
// created once (possibly from N provider responses) and not mutated after
// construction; stamping the final processing time produces a new value via
// finalize.
type AnalysisResponse struct {
	RequestID       string
	Recommendations []Recommendation
	Summary         string
	Timestamp       time.Time
	ModelInfo       ModelInfo

	// ProcessingTimeMs is the wall-clock duration of the orchestrated
	// call, always > 0 once finalized.
	ProcessingTimeMs int64
}

// finalize returns a copy of the response with the parent request identity
// restored and the total processing time stamped. The input response is not
// mutated. Sub-millisecond calls are clamped to 1ms so the finalized value
// is always positive.
func finalize(resp *AnalysisResponse, requestID string, elapsed time.Duration) *AnalysisResponse {
	out := *resp
	out.RequestID = requestID
	ms := elapsed.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	out.ProcessingTimeMs = ms
	return &out
}
