package types

// CompareRequest asks whether two field values represent the same information.
type CompareRequest struct {
	// First value (typically the source-of-truth side).
	// example: John Doe
	ValueA string `json:"value_a"`
	// Second value (typically the scraped/entered side).
	// example: JOHN DOE
	ValueB string `json:"value_b"`
	// Field type used for prompt shaping and model affinity.
	// example: name
	FieldType string `json:"field_type"`
	// Optional human-readable field name, for logging only.
	// example: customer_name
	FieldName string `json:"field_name,omitempty"`
}

// CompareResponse is the structured comparison result. On error paths Match
// and Confidence are always false/0.0 so callers may treat errors and
// "no match" uniformly.
type CompareResponse struct {
	Match            bool    `json:"match"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	ModelUsed        string  `json:"model_used,omitempty"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	FromCache        bool    `json:"from_cache"`
	Error            string  `json:"error,omitempty"`
}

// CompletionRequest is a llama.cpp style completion payload.
type CompletionRequest struct {
	// Required prompt text.
	Prompt string `json:"prompt"`
	// Maximum new tokens; n_predict is accepted as an alias.
	MaxTokens int `json:"max_tokens,omitempty"`
	NPredict  int `json:"n_predict,omitempty"`
	// Sampling temperature.
	Temperature float64 `json:"temperature,omitempty"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
}

// CompletionResponse mirrors the llama.cpp completion shape.
type CompletionResponse struct {
	Content         string `json:"content"`
	TokensPredicted int    `json:"tokens_predicted"`
	Model           string `json:"model"`
	Timings         struct {
		PredictedMs float64 `json:"predicted_ms"`
	} `json:"timings"`
}

// LoadRequest asks the server to ensure a specific descriptor is loaded.
type LoadRequest struct {
	// Descriptor id; empty means "let the server select".
	Model string `json:"model,omitempty"`
}

// LoadResponse reports the outcome of an explicit load.
type LoadResponse struct {
	Status     string  `json:"status"`
	Model      string  `json:"model"`
	LoadTimeMs float64 `json:"load_time_ms"`
}

// ModelReport describes one descriptor for GET /models.
type ModelReport struct {
	ModelDescriptor
	FileExists bool `json:"file_exists"`
	CanLoad    bool `json:"can_load"`
	IsCurrent  bool `json:"is_current"`
}

// ModelsResponse wraps GET /models.
type ModelsResponse struct {
	AvailableMemoryMB int           `json:"available_memory_mb"`
	Models            []ModelReport `json:"models"`
}

// HealthResponse combines the monitor snapshot with model state for GET /health.
type HealthResponse struct {
	HealthSnapshot
	ModelLoaded  bool    `json:"model_loaded"`
	ModelID      string  `json:"model_id,omitempty"`
	LoadTimeMs   float64 `json:"load_time_ms,omitempty"`
	RequestCount uint64  `json:"request_count"`
}

// ErrorResponse is the consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code"`
}
