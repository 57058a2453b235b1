package manager

import (
	"context"
	"time"

	"validd/internal/engine"
	"validd/pkg/types"
)

// selfTestPrompt is a minimal generation used to confirm a loaded model
// actually answers, not just that construction succeeded.
const selfTestPrompt = "Hi"

// EnsureLoadedByID resolves a descriptor and ensures it is loaded.
func (m *Manager) EnsureLoadedByID(ctx context.Context, id string) error {
	d, ok := m.DescriptorByID(id)
	if !ok {
		return ErrDescriptorNotFound(id)
	}
	return m.EnsureLoaded(ctx, d)
}

// EnsureLoaded makes desc the active model. It is a no-op when desc is
// already active and passes a self-test; otherwise it unloads the previous
// model and performs a bounded-retry load with backoff. Artifact failures are
// not retried: retrying does not fix a corrupt file.
func (m *Manager) EnsureLoaded(ctx context.Context, desc types.ModelDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil && m.handle.Descriptor.ID == desc.ID {
		if err := m.selfTest(ctx, m.handle.native); err == nil {
			return nil
		}
		m.log.Warn().Str("model", desc.ID).Msg("active model failed self-test, reloading")
		m.unloadLocked()
	} else if m.handle != nil {
		// Switching models: release the old resource first.
		m.unloadLocked()
	}

	if err := m.checker.Check(desc.Path); err != nil {
		return artifactInvalidError{cause: err}
	}

	var lastErr error
	for attempt := 1; attempt <= m.profile.MaxLoadRetries; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * m.profile.RetryBaseDelay
			m.log.Info().Str("model", desc.ID).Dur("delay", delay).
				Int("attempt", attempt).Msg("backing off before retry")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		m.log.Info().Str("model", desc.ID).Int("attempt", attempt).
			Int("max_attempts", m.profile.MaxLoadRetries).
			Int("ctx", desc.ContextSize).Int("threads", desc.Threads).
			Int("batch", desc.BatchSize).Msg("loading model")

		start := time.Now()
		native, err := m.loadWithDeadline(ctx, desc)
		if err != nil {
			if engine.IsUnavailable(err) {
				// The native runtime is missing from this build; retrying
				// cannot help.
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			outcome := "failure"
			if IsLoadTimeout(err) {
				outcome = "timeout"
			}
			loadsTotal.WithLabelValues(desc.ID, outcome).Inc()
			m.log.Error().Str("model", desc.ID).Int("attempt", attempt).Err(err).
				Msg("model load attempt failed")
			continue
		}

		if err := m.selfTest(ctx, native); err != nil {
			_ = native.Close()
			lastErr = integrityCheckError{cause: err}
			loadsTotal.WithLabelValues(desc.ID, "self_test_failure").Inc()
			m.log.Error().Str("model", desc.ID).Int("attempt", attempt).Err(err).
				Msg("model self-test failed, discarding handle")
			continue
		}

		elapsed := time.Since(start)
		m.handle = &Handle{
			Descriptor: desc,
			native:     native,
			LoadTime:   elapsed,
			LoadedAt:   time.Now(),
		}
		loadsTotal.WithLabelValues(desc.ID, "success").Inc()
		loadDuration.Observe(elapsed.Seconds())
		m.log.Info().Str("model", desc.ID).Dur("load_time", elapsed).Msg("model loaded")
		return nil
	}

	return loadFailedError{id: desc.ID, attempts: m.profile.MaxLoadRetries, cause: lastErr}
}

// loadWithDeadline runs the native construction under a hard wall-clock
// ceiling. The native call is not preemptible: on deadline expiry the attempt
// is marked abandoned and the handle, if construction eventually completes,
// is closed by the spawned goroutine. The worker itself cannot be reclaimed
// until the native call returns; this is an inherent platform limitation.
func (m *Manager) loadWithDeadline(ctx context.Context, desc types.ModelDescriptor) (engine.Handle, error) {
	type loadResult struct {
		h   engine.Handle
		err error
	}
	done := make(chan loadResult, 1)
	go func() {
		h, err := m.engine.Load(desc.Path, engine.Options{
			ContextSize: desc.ContextSize,
			Threads:     desc.Threads,
			BatchSize:   desc.BatchSize,
			Seed:        42,
		})
		done <- loadResult{h: h, err: err}
	}()

	timer := time.NewTimer(m.profile.LoadDeadline)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.h, res.err
	case <-timer.C:
		go func() {
			if res := <-done; res.h != nil {
				_ = res.h.Close()
			}
		}()
		return nil, loadTimeoutError{id: desc.ID}
	case <-ctx.Done():
		go func() {
			if res := <-done; res.h != nil {
				_ = res.h.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// selfTest issues one minimal completion to confirm the engine answers.
func (m *Manager) selfTest(ctx context.Context, h engine.Handle) error {
	_, err := h.Complete(ctx, engine.Request{
		Prompt:      selfTestPrompt,
		MaxTokens:   1,
		Temperature: 0.1,
	})
	return err
}
