package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	ensemble "github.com/hygie-sante/ensemble-llm-go"
)

// systemPrompt frames the model as a clinical pharmacology assistant
// emitting a strict JSON payload the adapter can parse.
const systemPrompt = `You are a clinical pharmacology assistant reviewing a medication list.
Answer with a JSON array of findings. Each finding is an object with the keys:
"category" (one of the requested categories), "description", "suggestion",
"medications" (array of drug names involved), "confidence" (object with
"score" between 0 and 1, "rationale", optional "evidence_grade") and
"sources" (array of objects with "type", "reference", optional "url" and
"year"). Emit only findings you can justify. Do not invent drug names.`

const defaultMaxTokens = 2048

// buildMessageParams constructs the Messages API parameters for one
// analysis call.
func buildMessageParams(model, prompt string, req *ensemble.AnalysisRequest) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\nMedications:\n")
	for _, m := range req.Medications {
		sb.WriteString("- ")
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	if req.PatientContext != "" {
		sb.WriteString("\nPatient context:\n")
		sb.WriteString(req.PatientContext)
		sb.WriteString("\n")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
		System: []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		},
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	return params
}

// finding mirrors the JSON payload the system prompt requests.
type finding struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
	Medications []string `json:"medications"`
	Confidence  struct {
		Score         float64 `json:"score"`
		Rationale     string  `json:"rationale"`
		EvidenceGrade string  `json:"evidence_grade"`
	} `json:"confidence"`
	Sources []struct {
		Type      string `json:"type"`
		Reference string `json:"reference"`
		URL       string `json:"url"`
		Year      int    `json:"year"`
	} `json:"sources"`
}

// parseRecommendations decodes the model's JSON payload into the
// recommendation data model. Any decode or invariant failure surfaces as a
// malformed-response provider error: the orchestrator treats it like any
// other failed call.
func parseRecommendations(kind ensemble.ProviderKind, req *ensemble.AnalysisRequest, text string) ([]ensemble.Recommendation, *ensemble.ProviderError) {
	payload := extractJSONArray(text)
	if payload == "" {
		return nil, &ensemble.ProviderError{
			Kind:    kind,
			Reason:  ensemble.FailureMalformedResponse,
			Message: "no JSON array in model output",
		}
	}

	var findings []finding
	if err := json.Unmarshal([]byte(payload), &findings); err != nil {
		return nil, &ensemble.ProviderError{
			Kind:    kind,
			Reason:  ensemble.FailureMalformedResponse,
			Message: "undecodable JSON payload",
			Err:     err,
		}
	}

	recommendations := make([]ensemble.Recommendation, 0, len(findings))
	for i, f := range findings {
		confidence := ensemble.Confidence{
			Score:     f.Confidence.Score,
			Rationale: f.Confidence.Rationale,
		}
		if f.Confidence.EvidenceGrade != "" {
			grade := f.Confidence.EvidenceGrade
			confidence.EvidenceGrade = &grade
		}

		sources := make([]ensemble.Source, 0, len(f.Sources))
		for _, s := range f.Sources {
			src := ensemble.Source{Type: s.Type, Reference: s.Reference}
			if s.URL != "" {
				u := s.URL
				src.URL = &u
			}
			if s.Year != 0 {
				y := s.Year
				src.Year = &y
			}
			sources = append(sources, src)
		}

		rec, err := ensemble.NewRecommendation(
			fmt.Sprintf("%s-%s-%d", kind, req.RequestID, i),
			ensemble.AnalysisCategory(f.Category),
			f.Description,
			f.Suggestion,
			f.Medications,
			confidence,
			sources,
		)
		if err != nil {
			return nil, &ensemble.ProviderError{
				Kind:    kind,
				Reason:  ensemble.FailureMalformedResponse,
				Message: "finding violates the recommendation invariants",
				Err:     err,
			}
		}
		recommendations = append(recommendations, *rec)
	}

	return recommendations, nil
}

// extractJSONArray returns the outermost JSON array in the text, tolerating
// markdown fences and free-text preambles around it.
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
