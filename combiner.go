package ensemble

import (
	"fmt"
	"strings"
	"time"
)

// ensembleVersion tags responses reconciled from several providers.
const ensembleVersion = "ensemble/1.0.0"

// summaryExcerptLen is how much of each constituent summary survives into a
// combined union summary.
const summaryExcerptLen = 100

// Combiner reconciles the possibly conflicting responses of several
// providers into one. It is pure: no I/O, no shared state, safe for
// concurrent use.
//
// The vote thresholds come from Config.Vote; see VoteConfig.
type Combiner struct {
	minVotes           int
	confidenceOverride float64
}

// NewCombiner builds a Combiner from the configured vote thresholds.
func NewCombiner(vote VoteConfig) *Combiner {
	return &Combiner{
		minVotes:           vote.MinVotes,
		confidenceOverride: vote.ConfidenceOverride,
	}
}

// Union merges responses by deduplicating recommendations on their
// signature. For colliding signatures the strictly higher confidence wins;
// on an exact tie the first-seen recommendation is kept. A single response
// is returned unchanged (identity law).
//
// The combined summary concatenates each constituent's first 100
// characters labeled by provider kind. ProcessingTimeMs is the truncated
// arithmetic mean of the inputs, TokenCount their sum, and ModelInfo.Kinds
// the union of all contributing kinds.
func (c *Combiner) Union(responses []*AnalysisResponse) (*AnalysisResponse, error) {
	if len(responses) == 0 {
		return nil, ErrNothingToCombine
	}
	if len(responses) == 1 {
		return responses[0], nil
	}

	type slot struct {
		index int
		score float64
	}
	kept := make([]Recommendation, 0)
	bySignature := make(map[string]slot)

	var summaryParts []string
	var totalProcessing int64
	totalTokens := 0
	kinds := make([]ProviderKind, 0, len(responses))
	seenKind := make(map[ProviderKind]bool)

	for _, resp := range responses {
		for _, rec := range resp.Recommendations {
			sig := rec.Signature()
			if prev, ok := bySignature[sig]; ok {
				// Strictly higher confidence replaces; ties keep first seen.
				if rec.Confidence.Score > prev.score {
					kept[prev.index] = rec
					bySignature[sig] = slot{index: prev.index, score: rec.Confidence.Score}
				}
				continue
			}
			bySignature[sig] = slot{index: len(kept), score: rec.Confidence.Score}
			kept = append(kept, rec)
		}

		summaryParts = append(summaryParts, labeledExcerpt(resp))
		totalProcessing += resp.ProcessingTimeMs
		totalTokens += resp.ModelInfo.TokenCount
		for _, k := range resp.ModelInfo.Kinds {
			if !seenKind[k] {
				seenKind[k] = true
				kinds = append(kinds, k)
			}
		}
	}

	return &AnalysisResponse{
		RequestID:       responses[0].RequestID,
		Recommendations: kept,
		Summary:         strings.Join(summaryParts, "\n"),
		Timestamp:       time.Now().UTC(),
		ModelInfo: ModelInfo{
			Kinds:      kinds,
			Version:    ensembleVersion,
			TokenCount: totalTokens,
		},
		ProcessingTimeMs: totalProcessing / int64(len(responses)),
	}, nil
}

// Vote reconciles responses by majority voting. Recommendations are
// grouped by signature across all responses; a group is validated when it
// gathers at least minVotes independent votes or any member reaches the
// confidence override. From each validated group the single
// highest-confidence member survives (first seen wins exact ties).
//
// Unlike Union, ProcessingTimeMs is the sum of the inputs: the vote is an
// account of total ensemble effort, not a per-provider average.
func (c *Combiner) Vote(responses []*AnalysisResponse) (*AnalysisResponse, error) {
	if len(responses) == 0 {
		return nil, ErrNothingToCombine
	}

	type group struct {
		votes int
		best  Recommendation
	}
	order := make([]string, 0)
	groups := make(map[string]*group)

	var totalProcessing int64
	totalTokens := 0
	kinds := make([]ProviderKind, 0, len(responses))
	seenKind := make(map[ProviderKind]bool)

	for _, resp := range responses {
		for _, rec := range resp.Recommendations {
			sig := rec.Signature()
			g, ok := groups[sig]
			if !ok {
				groups[sig] = &group{votes: 1, best: rec}
				order = append(order, sig)
				continue
			}
			g.votes++
			if rec.Confidence.Score > g.best.Confidence.Score {
				g.best = rec
			}
		}

		totalProcessing += resp.ProcessingTimeMs
		totalTokens += resp.ModelInfo.TokenCount
		for _, k := range resp.ModelInfo.Kinds {
			if !seenKind[k] {
				seenKind[k] = true
				kinds = append(kinds, k)
			}
		}
	}

	validated := make([]Recommendation, 0, len(order))
	for _, sig := range order {
		g := groups[sig]
		if g.votes >= c.minVotes || g.best.Confidence.Score >= c.confidenceOverride {
			validated = append(validated, g.best)
		}
	}

	summary := fmt.Sprintf("Majority vote across %d provider responses: %d of %d candidate recommendations validated (threshold: %d votes or confidence >= %.2f)",
		len(responses), len(validated), len(order), c.minVotes, c.confidenceOverride)

	return &AnalysisResponse{
		RequestID:       responses[0].RequestID,
		Recommendations: validated,
		Summary:         summary,
		Timestamp:       time.Now().UTC(),
		ModelInfo: ModelInfo{
			Kinds:      kinds,
			Version:    ensembleVersion,
			TokenCount: totalTokens,
		},
		ProcessingTimeMs: totalProcessing,
	}, nil
}

// labeledExcerpt renders "[kind] <first 100 chars of summary>" for one
// constituent response.
func labeledExcerpt(resp *AnalysisResponse) string {
	label := "unknown"
	if len(resp.ModelInfo.Kinds) > 0 {
		names := make([]string, 0, len(resp.ModelInfo.Kinds))
		for _, k := range resp.ModelInfo.Kinds {
			names = append(names, k.String())
		}
		label = strings.Join(names, "+")
	}
	excerpt := resp.Summary
	if len(excerpt) > summaryExcerptLen {
		excerpt = excerpt[:summaryExcerptLen]
	}
	return "[" + label + "] " + excerpt
}
