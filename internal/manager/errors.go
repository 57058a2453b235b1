package manager

import "fmt"

// artifactInvalidError signals a bad model file (missing/truncated/corrupt).
// Never retried: retrying does not fix a corrupt file.
type artifactInvalidError struct{ cause error }

func (e artifactInvalidError) Error() string { return "artifact invalid: " + e.cause.Error() }
func (e artifactInvalidError) Unwrap() error { return e.cause }

// IsArtifactInvalid reports whether err indicates a rejected model artifact.
func IsArtifactInvalid(err error) bool {
	_, ok := err.(artifactInvalidError)
	return ok
}

// resourceExhaustedError signals that no descriptor fits current memory and
// disk state. Surfaced to the caller as service-unavailable; not retried.
type resourceExhaustedError struct{ availMB int }

func (e resourceExhaustedError) Error() string {
	return fmt.Sprintf("no model fits available memory (%d MB usable)", e.availMB)
}

// ErrResourceExhausted constructs a resourceExhaustedError.
func ErrResourceExhausted(availMB int) error { return resourceExhaustedError{availMB: availMB} }

// IsResourceExhausted reports whether err indicates no loadable candidate.
func IsResourceExhausted(err error) bool {
	_, ok := err.(resourceExhaustedError)
	return ok
}

// loadTimeoutError signals a load attempt exceeded its hard deadline.
type loadTimeoutError struct{ id string }

func (e loadTimeoutError) Error() string { return "model load timed out: " + e.id }

// IsLoadTimeout reports whether err indicates a load deadline expiry.
func IsLoadTimeout(err error) bool {
	_, ok := err.(loadTimeoutError)
	return ok
}

// loadFailedError signals that all load attempts were exhausted.
type loadFailedError struct {
	id       string
	attempts int
	cause    error
}

func (e loadFailedError) Error() string {
	return fmt.Sprintf("model load failed after %d attempts: %s: %v", e.attempts, e.id, e.cause)
}
func (e loadFailedError) Unwrap() error { return e.cause }

// IsLoadFailed reports whether err indicates an exhausted load.
func IsLoadFailed(err error) bool {
	_, ok := err.(loadFailedError)
	return ok
}

// integrityCheckError signals a post-load self-test failure. Treated as a
// load failure for retry purposes.
type integrityCheckError struct{ cause error }

func (e integrityCheckError) Error() string { return "model self-test failed: " + e.cause.Error() }
func (e integrityCheckError) Unwrap() error { return e.cause }

// IsIntegrityCheckFailed reports whether err indicates a failed self-test.
func IsIntegrityCheckFailed(err error) bool {
	_, ok := err.(integrityCheckError)
	return ok
}

// inferenceFailedError signals the native call threw or returned a malformed
// result. Surfaced immediately; not retried within the same request.
type inferenceFailedError struct{ cause error }

func (e inferenceFailedError) Error() string { return "inference failed: " + e.cause.Error() }
func (e inferenceFailedError) Unwrap() error { return e.cause }

// IsInferenceFailed reports whether err indicates a failed native call.
func IsInferenceFailed(err error) bool {
	_, ok := err.(inferenceFailedError)
	return ok
}

// invalidInputError signals an unusable request (empty prompt, bad params).
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return "invalid input: " + e.msg }

// ErrInvalidInput constructs an invalidInputError.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// IsInvalidInput reports whether err indicates a rejected request.
func IsInvalidInput(err error) bool {
	_, ok := err.(invalidInputError)
	return ok
}

// descriptorNotFoundError signals an unknown descriptor id.
type descriptorNotFoundError struct{ id string }

func (e descriptorNotFoundError) Error() string { return "model not found: " + e.id }

// ErrDescriptorNotFound constructs a descriptorNotFoundError.
func ErrDescriptorNotFound(id string) error { return descriptorNotFoundError{id: id} }

// IsDescriptorNotFound reports whether the error indicates a missing descriptor id.
func IsDescriptorNotFound(err error) bool {
	_, ok := err.(descriptorNotFoundError)
	return ok
}

// notLoadedError signals a generate call with no active handle.
type notLoadedError struct{}

func (notLoadedError) Error() string { return "no model loaded" }

// IsNotLoaded reports whether err indicates no active model handle.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}
