package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"validd/internal/cache"
	"validd/internal/config"
	"validd/internal/engine"
	"validd/internal/health"
	"validd/internal/manager"
	"validd/internal/sysmem"
	"validd/pkg/types"
)

// scriptedEngine hands out handles that answer from a fixed script.
type scriptedEngine struct {
	mu        sync.Mutex
	answers   []string
	completes int
	loadErr   error
}

func (e *scriptedEngine) Load(string, engine.Options) (engine.Handle, error) {
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	return &scriptedHandle{eng: e}, nil
}

type scriptedHandle struct{ eng *scriptedEngine }

func (h *scriptedHandle) Complete(_ context.Context, req engine.Request) (engine.Completion, error) {
	h.eng.mu.Lock()
	defer h.eng.mu.Unlock()
	// Self-test probes answer without consuming the script.
	if req.Prompt == "Hi" {
		return engine.Completion{Text: "Hello", TokensGenerated: 1}, nil
	}
	h.eng.completes++
	if len(h.eng.answers) == 0 {
		return engine.Completion{Text: "YES", TokensGenerated: 1}, nil
	}
	text := h.eng.answers[0]
	if len(h.eng.answers) > 1 {
		h.eng.answers = h.eng.answers[1:]
	}
	return engine.Completion{Text: text, TokensGenerated: 1}, nil
}

func (h *scriptedHandle) Close() error { return nil }

func (e *scriptedEngine) completions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completes
}

func writeModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	body := make([]byte, 64)
	copy(body, "GGUF")
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return p
}

func newTestValidator(t *testing.T, eng engine.Engine, availMB int, affinity map[string]string) (*Validator, *health.Monitor) {
	t.Helper()
	dir := t.TempDir()
	descs := []types.ModelDescriptor{
		{ID: "tinyllama", Path: writeModelFile(t, dir, "tiny.gguf"), MemoryRequirementMB: 1500, ContextSize: 2048, Threads: 2},
		{ID: "qwen-1.8b", Path: writeModelFile(t, dir, "qwen.gguf"), MemoryRequirementMB: 2000, ContextSize: 2048, Threads: 2},
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Descriptors: descs,
		Affinity:    affinity,
		Profile: config.SafetyProfile{
			MemoryMarginMB:   512,
			MaxLoadRetries:   2,
			RetryBaseDelay:   time.Millisecond,
			LoadDeadline:     time.Second,
			MaxTokens:        256,
			MinArtifactBytes: 16,
		},
		Engine: eng,
		Mem:    sysmem.Fixed(uint64(availMB+512) * 1024 * 1024),
		Logger: zerolog.Nop(),
	})
	store, err := cache.Open(":memory:", 0.7)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	monitor := health.NewMonitor(zerolog.Nop())
	return New(Config{
		Manager: mgr,
		Store:   store,
		Monitor: monitor,
		Logger:  zerolog.Nop(),
	}), monitor
}

func TestCompareCachesConfidentDecision(t *testing.T) {
	eng := &scriptedEngine{answers: []string{
		`{"match": true, "confidence": 0.95, "reasoning": "identical names"}`,
	}}
	v, monitor := newTestValidator(t, eng, 4000, nil)

	req := types.CompareRequest{ValueA: "John Doe", ValueB: "john doe", FieldType: "name"}
	first, err := v.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("first compare: %v", err)
	}
	if first.FromCache || !first.Match || first.Confidence != 0.95 {
		t.Fatalf("first response: %+v", first)
	}

	second, err := v.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("second compare: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("second call must hit the cache: %+v", second)
	}
	if second.Match != first.Match || second.Confidence != first.Confidence {
		t.Fatalf("cached decision drifted: %+v vs %+v", second, first)
	}
	if got := eng.completions(); got != 1 {
		t.Fatalf("inference must run once, ran %d times", got)
	}
	if snap := monitor.Snapshot(); snap.TotalRequests != 2 || snap.ConsecutiveErrors != 0 {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestCompareCacheKeyIsNormalized(t *testing.T) {
	eng := &scriptedEngine{answers: []string{
		`{"match": true, "confidence": 0.9, "reasoning": "same"}`,
	}}
	v, _ := newTestValidator(t, eng, 4000, nil)

	if _, err := v.Compare(context.Background(), types.CompareRequest{
		ValueA: "John Doe", ValueB: "x", FieldType: "name",
	}); err != nil {
		t.Fatalf("compare: %v", err)
	}
	resp, err := v.Compare(context.Background(), types.CompareRequest{
		ValueA: "  john doe ", ValueB: "x", FieldType: "name",
	})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !resp.FromCache {
		t.Fatalf("case/whitespace variant must hit the same key: %+v", resp)
	}
}

func TestCompareNeverCachesLowConfidence(t *testing.T) {
	eng := &scriptedEngine{answers: []string{
		`{"match": true, "confidence": 0.3, "reasoning": "unsure"}`,
		`{"match": true, "confidence": 0.3, "reasoning": "still unsure"}`,
	}}
	v, _ := newTestValidator(t, eng, 4000, nil)

	req := types.CompareRequest{ValueA: "maybe", ValueB: "perhaps", FieldType: "text"}
	if _, err := v.Compare(context.Background(), req); err != nil {
		t.Fatalf("first compare: %v", err)
	}
	resp, err := v.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("second compare: %v", err)
	}
	if resp.FromCache {
		t.Fatalf("low-confidence decision must not be served from cache")
	}
	if got := eng.completions(); got != 2 {
		t.Fatalf("expected 2 inferences, got %d", got)
	}
}

func TestCompareUnavailableWhenNothingFits(t *testing.T) {
	v, monitor := newTestValidator(t, &scriptedEngine{}, 1000, nil)

	resp, err := v.Compare(context.Background(), types.CompareRequest{
		ValueA: "a", ValueB: "b", FieldType: "name",
	})
	if err == nil || !manager.IsResourceExhausted(err) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
	if resp.Match || resp.Confidence != 0.0 || resp.Error == "" {
		t.Fatalf("error response contract violated: %+v", resp)
	}
	if snap := monitor.Snapshot(); snap.ConsecutiveErrors != 1 {
		t.Fatalf("failure not recorded: %+v", snap)
	}
}

func TestCompareSurfacesLoadFailure(t *testing.T) {
	eng := &scriptedEngine{loadErr: errors.New("mmap failed")}
	v, monitor := newTestValidator(t, eng, 4000, nil)

	_, err := v.Compare(context.Background(), types.CompareRequest{
		ValueA: "a", ValueB: "b", FieldType: "name",
	})
	if err == nil || !manager.IsLoadFailed(err) {
		t.Fatalf("expected load-failed, got %v", err)
	}
	if snap := monitor.Snapshot(); snap.TotalRequests != 1 || snap.ConsecutiveErrors != 1 {
		t.Fatalf("exactly one outcome must be recorded: %+v", snap)
	}
}

func TestCompareRoutesByAffinity(t *testing.T) {
	eng := &scriptedEngine{answers: []string{"Yes"}}
	v, _ := newTestValidator(t, eng, 4000, map[string]string{"number": "tinyllama"})

	resp, err := v.Compare(context.Background(), types.CompareRequest{
		ValueA: "42", ValueB: "42", FieldType: "number",
	})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if resp.ModelUsed != "tinyllama" {
		t.Fatalf("affinity ignored, used %s", resp.ModelUsed)
	}
	if !resp.Match || resp.Confidence != 0.9 {
		t.Fatalf("keyword classification: %+v", resp)
	}
}

func TestEnsureReportsOutcome(t *testing.T) {
	v, monitor := newTestValidator(t, &scriptedEngine{}, 4000, nil)

	st, err := v.Ensure(context.Background(), "qwen-1.8b")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !st.Loaded || st.ModelID != "qwen-1.8b" {
		t.Fatalf("status: %+v", st)
	}
	if _, err := v.Ensure(context.Background(), "missing"); err == nil || !manager.IsDescriptorNotFound(err) {
		t.Fatalf("expected descriptor-not-found, got %v", err)
	}
	snap := monitor.Snapshot()
	if snap.TotalRequests != 2 || snap.ConsecutiveErrors != 1 {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestCompleteLoadsOnDemand(t *testing.T) {
	eng := &scriptedEngine{answers: []string{"hello there"}}
	v, _ := newTestValidator(t, eng, 4000, nil)

	resp, err := v.Complete(context.Background(), types.CompletionRequest{
		Prompt: "greet me", NPredict: 16,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "hello there" || resp.Model == "" {
		t.Fatalf("response: %+v", resp)
	}
	if !v.Ready() {
		t.Fatalf("model must remain loaded after completion")
	}
}

func TestHealthCombinesModelState(t *testing.T) {
	v, _ := newTestValidator(t, &scriptedEngine{}, 4000, nil)

	h := v.Health()
	if h.ModelLoaded || h.Status != types.StatusHealthy {
		t.Fatalf("initial health: %+v", h)
	}
	if _, err := v.Ensure(context.Background(), "tinyllama"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	h = v.Health()
	if !h.ModelLoaded || h.ModelID != "tinyllama" {
		t.Fatalf("health after load: %+v", h)
	}
}
