//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaEngine loads models in-process via go-llama.cpp.
type llamaEngine struct{}

// NewLlama returns the in-process llama.cpp engine.
func NewLlama() Engine { return llamaEngine{} }

type llamaHandle struct {
	model   *llama.LLama
	threads int
}

func (llamaEngine) Load(path string, opts Options) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(maxInt(opts.ContextSize, 512)),
		llama.SetNBatch(maxInt(opts.BatchSize, 64)),
		llama.SetMMap(true),
		llama.SetMlock(false),
		llama.SetGPULayers(0),
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaHandle{model: m, threads: maxInt(opts.Threads, 1)}, nil
}

func (h *llamaHandle) Complete(ctx context.Context, req Request) (Completion, error) {
	if h.model == nil {
		return Completion{}, errors.New("llama model not initialized")
	}
	tokens := 0
	h.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		tokens++
		return true
	})
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(req.MaxTokens, 1)),
		llama.SetThreads(h.threads),
		llama.SetTemperature(float32(req.Temperature)),
	}
	if len(req.Stop) > 0 {
		po = append(po, llama.SetStopWords(req.Stop...))
	}
	text, err := h.model.Predict(req.Prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		return Completion{}, err
	}
	return Completion{Text: text, TokensGenerated: tokens}, nil
}

func (h *llamaHandle) Close() error {
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
