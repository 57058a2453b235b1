package validate

import (
	"testing"

	"validd/pkg/types"
)

func TestClassifyJSONAnswer(t *testing.T) {
	out := classify(`{"match": true, "confidence": 0.95, "reasoning": "same name"}`,
		types.ModelDescriptor{ID: "qwen-1.8b"}, "a", "b")
	if !out.match || out.confidence != 0.95 || out.reasoning != "same name" {
		t.Fatalf("got %+v", out)
	}
}

func TestClassifyJSONWithMarkdownFence(t *testing.T) {
	text := "```json\n{\"match\": false, \"confidence\": 0.2, \"reasoning\": \"different\"}\n```"
	out := classify(text, types.ModelDescriptor{ID: "qwen-1.8b"}, "a", "b")
	if out.match || out.confidence != 0.2 {
		t.Fatalf("got %+v", out)
	}
}

func TestClassifyJSONConfidenceClamped(t *testing.T) {
	out := classify(`{"match": true, "confidence": 3.5, "reasoning": "sure"}`,
		types.ModelDescriptor{ID: "qwen-1.8b"}, "a", "b")
	if out.confidence != 1.0 {
		t.Fatalf("confidence not clamped: %v", out.confidence)
	}
}

func TestClassifyJSONMissingKeyFallsThrough(t *testing.T) {
	// No reasoning key: the object does not count, YES keyword applies.
	out := classify(`{"match": true, "confidence": 0.8} YES`,
		types.ModelDescriptor{ID: "tinyllama"}, "a", "b")
	if !out.match || out.confidence != 0.9 {
		t.Fatalf("got %+v", out)
	}
}

func TestClassifyKeywordAnswers(t *testing.T) {
	cases := []struct {
		text  string
		match bool
	}{
		{"Yes", true},
		{"  YES.", true},
		{"Sim", true},
		{"No", false},
		{"NO way", false},
		{"Não", false},
	}
	for _, tc := range cases {
		out := classify(tc.text, types.ModelDescriptor{ID: "tinyllama"}, "a", "b")
		if out.match != tc.match {
			t.Fatalf("%q: match=%v want %v", tc.text, out.match, tc.match)
		}
		if out.confidence != 0.9 {
			t.Fatalf("%q: confidence=%v", tc.text, out.confidence)
		}
	}
}

func TestClassifyStringFallbackBands(t *testing.T) {
	d := types.ModelDescriptor{ID: "qwen-1.8b"}
	cases := []struct {
		a, b       string
		match      bool
		confidence float64
	}{
		{"John Doe", "john doe", true, 1.0},
		{"JohnDoe", "John Doe", true, 0.9},
		{"John Doe Junior", "John Doe", true, 0.7},
		{"Alice", "Bob", false, 0.5},
	}
	for _, tc := range cases {
		out := classify("garbled output", d, tc.a, tc.b)
		if out.match != tc.match || out.confidence != tc.confidence {
			t.Fatalf("(%q,%q): got match=%v conf=%v, want %v/%v",
				tc.a, tc.b, out.match, out.confidence, tc.match, tc.confidence)
		}
	}
}

func TestClassifyAppliesModelAdjustment(t *testing.T) {
	d := types.ModelDescriptor{ID: "tinyllama", ConfidenceAdjust: -0.2}
	out := classify("YES", d, "a", "b")
	if out.confidence < 0.69 || out.confidence > 0.71 {
		t.Fatalf("adjustment not applied: %v", out.confidence)
	}
	// Adjustment never pushes outside [0,1].
	d.ConfidenceAdjust = 0.5
	out = classify("YES", d, "a", "b")
	if out.confidence != 1.0 {
		t.Fatalf("adjusted confidence not clamped: %v", out.confidence)
	}
}

func TestBuildPromptCompactForTinyModels(t *testing.T) {
	req := types.CompareRequest{ValueA: "abc", ValueB: "abd", FieldType: "name"}
	p, params := buildPrompt(types.ModelDescriptor{ID: "tinyllama"}, req)
	if params.maxTokens != 3 || len(params.stop) == 0 {
		t.Fatalf("compact params: %+v", params)
	}
	if len(p) > 200 {
		t.Fatalf("compact prompt too long: %d bytes", len(p))
	}

	p, params = buildPrompt(types.ModelDescriptor{ID: "qwen-1.8b"}, req)
	if params.maxTokens != 100 {
		t.Fatalf("detailed params: %+v", params)
	}
	if len(p) < 200 {
		t.Fatalf("detailed prompt suspiciously short: %d bytes", len(p))
	}
}

func TestBuildPromptTruncatesLongValues(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	req := types.CompareRequest{ValueA: string(long), ValueB: "y", FieldType: "text"}
	p, _ := buildPrompt(types.ModelDescriptor{ID: "tinyllama"}, req)
	if len(p) > 200 {
		t.Fatalf("long value not truncated: %d bytes", len(p))
	}
}
