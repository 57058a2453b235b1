// Package engine is the boundary to the native inference runtime. The
// lifecycle manager owns exclusivity; implementations here only wrap the
// native calls and normalize their results and errors.
package engine

import "context"

// Options carries the per-model tuning parameters for construction.
// Conservative CPU-only defaults keep the native runtime stable.
type Options struct {
	ContextSize int
	Threads     int
	BatchSize   int
	// Seed fixes sampling for reproducible self-tests.
	Seed int
}

// Request is one synchronous completion call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Completion is the normalized result of a completion call.
type Completion struct {
	Text            string
	TokensGenerated int
}

// Handle is a loaded native model. It is NOT safe for concurrent use; the
// caller must serialize Complete and Close.
type Handle interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	Close() error
}

// Engine constructs native model handles.
type Engine interface {
	Load(path string, opts Options) (Handle, error)
}

// unavailableError signals the native runtime is not present in this build.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an engine-unavailable error.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing native runtime.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}
