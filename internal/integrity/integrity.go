// Package integrity validates model artifacts before an expensive load is
// attempted. All checks are pure read-only inspection so they can run on
// every ensure without side effects.
package integrity

import (
	"bytes"
	"fmt"
	"os"
)

// ggufMagic is the leading signature of a GGUF model file.
var ggufMagic = []byte("GGUF")

// DefaultMinSizeBytes rejects partial downloads: no real quantized model is
// smaller than 100MB.
const DefaultMinSizeBytes int64 = 100 * 1024 * 1024

// Checker inspects a model artifact on disk.
type Checker struct {
	// MinSizeBytes is the absolute size floor. Zero means DefaultMinSizeBytes.
	MinSizeBytes int64
	// Magic overrides the expected header. Nil means GGUF.
	Magic []byte
}

type notFoundError struct{ path string }

func (e notFoundError) Error() string { return "artifact not found: " + e.path }

type tooSmallError struct {
	path string
	size int64
	min  int64
}

func (e tooSmallError) Error() string {
	return fmt.Sprintf("artifact too small: %s is %d bytes, need >= %d", e.path, e.size, e.min)
}

type badFormatError struct{ path string }

func (e badFormatError) Error() string { return "artifact has no valid GGUF header: " + e.path }

// IsNotFound reports whether err indicates a missing artifact.
func IsNotFound(err error) bool { _, ok := err.(notFoundError); return ok }

// IsTooSmall reports whether err indicates a truncated/partial artifact.
func IsTooSmall(err error) bool { _, ok := err.(tooSmallError); return ok }

// IsBadFormat reports whether err indicates a corrupt or foreign file format.
func IsBadFormat(err error) bool { _, ok := err.(badFormatError); return ok }

// Check validates path in order: existence, size floor, magic header.
// It returns nil when the artifact looks loadable.
func (c Checker) Check(path string) error {
	min := c.MinSizeBytes
	if min == 0 {
		min = DefaultMinSizeBytes
	}
	magic := c.Magic
	if magic == nil {
		magic = ggufMagic
	}

	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return notFoundError{path: path}
	}
	if fi.Size() < min {
		return tooSmallError{path: path, size: fi.Size(), min: min}
	}

	f, err := os.Open(path)
	if err != nil {
		return notFoundError{path: path}
	}
	defer f.Close()
	header := make([]byte, 8)
	n, err := f.Read(header)
	if err != nil || n < len(magic) {
		return badFormatError{path: path}
	}
	if !bytes.HasPrefix(header[:n], magic) {
		return badFormatError{path: path}
	}
	return nil
}
