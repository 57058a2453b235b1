package types

import "time"

// ModelDescriptor describes one selectable model variant. Descriptors are
// defined at process start and never mutated afterwards.
type ModelDescriptor struct {
	// Stable identifier for the model.
	// example: tinyllama
	ID string `json:"id" yaml:"id" toml:"id"`
	// Human-friendly name.
	// example: TinyLlama 1.1B Chat (Q4_K_M)
	Name string `json:"name" yaml:"name" toml:"name"`
	// Absolute or working-dir-relative path to the GGUF artifact.
	// example: models/tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Path string `json:"path" yaml:"path" toml:"path"`
	// Memory required to load this model, in MB.
	// example: 1536
	MemoryRequirementMB int `json:"memory_requirement_mb" yaml:"memory_requirement_mb" toml:"memory_requirement_mb"`
	// Context window size passed to the engine.
	// example: 2048
	ContextSize int `json:"context_size" yaml:"context_size" toml:"context_size"`
	// CPU threads for inference.
	// example: 2
	Threads int `json:"threads" yaml:"threads" toml:"threads"`
	// Prompt batch size.
	// example: 128
	BatchSize int `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	// Sampling temperature used for comparison prompts.
	// example: 0.1
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	// Field types this model is preferred for (e.g., "number", "date").
	Affinity []string `json:"affinity,omitempty" yaml:"affinity" toml:"affinity"`
	// Additive adjustment applied to classified confidence for this model.
	// Small models that answer tersely get a penalty, larger ones a boost.
	// example: -0.05
	ConfidenceAdjust float64 `json:"confidence_adjust,omitempty" yaml:"confidence_adjust" toml:"confidence_adjust"`
	// Free-form description shown by /models and diagnose.
	Description string `json:"description,omitempty" yaml:"description" toml:"description"`
}

// ValidationDecision is one persisted comparison outcome. Decisions are
// immutable once written; re-validation appends a new row under the same key.
type ValidationDecision struct {
	ID               string    `json:"id"`
	KeyHash          string    `json:"key_hash"`
	ValueA           string    `json:"value_a"`
	ValueB           string    `json:"value_b"`
	FieldType        string    `json:"field_type"`
	ModelUsed        string    `json:"model_used"`
	Match            bool      `json:"match"`
	Confidence       float64   `json:"confidence"`
	Reasoning        string    `json:"reasoning"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// HealthStatus is the overall service status derived from recent outcomes.
type HealthStatus string

const (
	StatusHealthy    HealthStatus = "healthy"
	StatusWarning    HealthStatus = "warning"
	StatusDegraded   HealthStatus = "degraded"
	StatusRecovering HealthStatus = "recovering"
)

// HealthSnapshot is a point-in-time projection of the health monitor state.
type HealthSnapshot struct {
	Status            HealthStatus `json:"status"`
	UptimeSeconds     float64      `json:"uptime_seconds"`
	ConsecutiveErrors int          `json:"consecutive_errors"`
	ErrorRate5Min     float64      `json:"error_rate_5min"`
	RecoveryAttempts  int          `json:"recovery_attempts"`
	TotalRequests     int          `json:"total_requests_monitored"`
	RecentErrors      int          `json:"recent_errors"`
	LastHeartbeat     int64        `json:"last_heartbeat_unix"`
}
