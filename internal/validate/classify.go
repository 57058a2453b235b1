package validate

import (
	"encoding/json"
	"regexp"
	"strings"

	"validd/pkg/types"
)

// outcome is a classified comparison answer.
type outcome struct {
	match      bool
	confidence float64
	reasoning  string
}

var jsonObjectPattern = regexp.MustCompile(`\{[^{}]+\}`)

// classify turns raw model output into a decision using a fixed rule
// cascade:
//
//  1. a JSON object carrying match/confidence/reasoning, confidence clamped
//     to [0,1];
//  2. a YES/NO keyword in the answer;
//  3. deterministic string comparison of the two input values.
//
// The per-descriptor confidence adjustment is applied last, clamped again.
func classify(text string, desc types.ModelDescriptor, valueA, valueB string) outcome {
	out, ok := classifyJSON(text)
	if !ok {
		out, ok = classifyKeyword(text, desc)
	}
	if !ok {
		out = classifyStringCompare(valueA, valueB)
	}
	out.confidence = clamp01(out.confidence + desc.ConfidenceAdjust)
	return out
}

// classifyJSON extracts the first JSON object from the text. Markdown fences
// are stripped first since instruction-tuned models love to add them. All
// three keys must be present for the object to count.
func classifyJSON(text string) (outcome, bool) {
	cleaned := strings.NewReplacer("```json", "", "```", "").Replace(text)
	raw := jsonObjectPattern.FindString(cleaned)
	if raw == "" {
		return outcome{}, false
	}

	var payload struct {
		Match      *bool    `json:"match"`
		Confidence *float64 `json:"confidence"`
		Reasoning  *string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return outcome{}, false
	}
	if payload.Match == nil || payload.Confidence == nil || payload.Reasoning == nil {
		return outcome{}, false
	}
	return outcome{
		match:      *payload.Match,
		confidence: clamp01(*payload.Confidence),
		reasoning:  *payload.Reasoning,
	}, true
}

// classifyKeyword checks for an explicit yes/no answer. "SIM"/"NAO" are kept
// for models that answer in Portuguese.
func classifyKeyword(text string, desc types.ModelDescriptor) (outcome, bool) {
	answer := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(answer, "YES") || strings.Contains(answer, "SIM"):
		return outcome{match: true, confidence: 0.9, reasoning: "model answer (" + desc.ID + "): " + strings.TrimSpace(text)}, true
	case strings.Contains(answer, "NO") || strings.Contains(answer, "NAO") || strings.Contains(answer, "NÃO"):
		return outcome{match: false, confidence: 0.9, reasoning: "model answer (" + desc.ID + "): " + strings.TrimSpace(text)}, true
	}
	return outcome{}, false
}

// classifyStringCompare is the deterministic last resort when the model
// produced neither JSON nor a recognizable keyword. Bands: exact match 1.0,
// space-insensitive 0.9, substring 0.7, otherwise no-match at 0.5 so the
// uncertain answer stays below the cache persist floor.
func classifyStringCompare(valueA, valueB string) outcome {
	a := strings.ToLower(strings.TrimSpace(valueA))
	b := strings.ToLower(strings.TrimSpace(valueB))
	out := outcome{confidence: 0.5, reasoning: "string comparison fallback"}
	switch {
	case a == b:
		out.match = true
		out.confidence = 1.0
	case strings.ReplaceAll(a, " ", "") == strings.ReplaceAll(b, " ", ""):
		out.match = true
		out.confidence = 0.9
	case a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)):
		out.match = true
		out.confidence = 0.7
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
