package validate

import (
	"fmt"
	"strings"

	"validd/pkg/types"
)

// genParams are the generation knobs paired with a prompt. Small models get a
// tiny token budget and aggressive stop sequences so a one-word answer comes
// back fast; larger models get room for a JSON object.
type genParams struct {
	maxTokens   int
	temperature float64
	stop        []string
}

const (
	compactValueLimit  = 50
	detailedValueLimit = 100
)

// buildPrompt shapes the comparison prompt for the selected model. Very small
// models cannot follow a JSON instruction reliably, so they get a compact
// yes/no prompt; everything else gets the structured instruction whose JSON
// answer classify prefers.
func buildPrompt(desc types.ModelDescriptor, req types.CompareRequest) (string, genParams) {
	if isCompactModel(desc) {
		prompt := fmt.Sprintf("CSV: %s\nWEB: %s\nSame? Yes/No:",
			truncate(req.ValueA, compactValueLimit),
			truncate(req.ValueB, compactValueLimit))
		return prompt, genParams{
			maxTokens:   3,
			temperature: 0.1,
			stop:        []string{"\n", ".", "?", "!", " "},
		}
	}

	fieldName := req.FieldName
	if fieldName == "" {
		fieldName = "field"
	}
	prompt := fmt.Sprintf(`You are a data validation expert. Compare two values and determine if they represent the same information.

RESPOND ONLY WITH VALID JSON in this exact format:
{"match": true/false, "confidence": 0.0-1.0, "reasoning": "brief explanation"}

Rules:
- Exact text matches = confidence 1.0
- Case differences = confidence 0.9-1.0
- Formatting differences (spaces, punctuation) = confidence 0.8-1.0
- Semantic equivalence = confidence 0.7-1.0
- Different values = confidence 0.0-0.3

Field: %s (type: %s)
Value A: %q
Value B: %q

Are these values equivalent? Respond with JSON only.`,
		fieldName, req.FieldType,
		truncate(req.ValueA, detailedValueLimit),
		truncate(req.ValueB, detailedValueLimit))
	return prompt, genParams{
		maxTokens:   100,
		temperature: 0.1,
	}
}

// isCompactModel reports whether the descriptor needs the minimal prompt.
// Tiny variants answer a bare yes/no far more reliably than they follow a
// JSON schema.
func isCompactModel(desc types.ModelDescriptor) bool {
	return strings.Contains(strings.ToLower(desc.ID), "tiny")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
