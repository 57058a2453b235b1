//go:build !llama

package engine

// No-CGO stub compiled when the 'llama' build tag is NOT set, keeping default
// builds and CI CGO-free. Load fails fast instead of mocking inference.

type llamaEngine struct{}

// NewLlama returns the llama engine stub for builds without the 'llama' tag.
func NewLlama() Engine { return llamaEngine{} }

func (llamaEngine) Load(path string, opts Options) (Handle, error) {
	return nil, ErrUnavailable("llama support not built (missing 'llama' build tag)")
}
