package manager

import (
	"context"
	"strings"
	"time"

	"validd/internal/engine"
)

// Generate issues one synchronous completion against the active model.
// Parameters are clamped where safe and rejected where not. The call holds
// the manager lock for its duration: the native resource is not safe for
// concurrent invocation, so requests execute strictly one at a time.
func (m *Manager) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, stop []string) (engine.Completion, error) {
	if strings.TrimSpace(prompt) == "" {
		return engine.Completion{}, ErrInvalidInput("empty prompt")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return engine.Completion{}, notLoadedError{}
	}

	if maxTokens < 1 {
		maxTokens = 1
	}
	if maxTokens > m.profile.MaxTokens {
		maxTokens = m.profile.MaxTokens
	}
	if temperature < 0 {
		temperature = 0
	}
	if temperature > 1 {
		temperature = 1
	}

	m.handle.RequestCount++
	start := time.Now()
	out, err := m.handle.native.Complete(ctx, engine.Request{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stop:        stop,
	})
	generateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return engine.Completion{}, ctx.Err()
		}
		return engine.Completion{}, inferenceFailedError{cause: err}
	}
	return out, nil
}
