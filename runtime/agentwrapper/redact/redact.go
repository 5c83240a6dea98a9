// Package redact transforms backend parser/normalizer/transport/exit errors
// into fixed, non-leaking messages. Raw child stdout lines and raw stderr
// MUST NOT reach an observer verbatim; every function here returns a
// message built only from safe metadata (lengths, durations, exit codes).
package redact

import "fmt"

// KindClassifier is a small fixed set of backend-error categories used by
// OtherBackendError. "idle" is reserved for a future idle-timeout signal
// (see design notes); neither backend currently emits it.
type KindClassifier string

// Recognized classifiers.
const (
	ClassifierSpawn          KindClassifier = "spawn"
	ClassifierWait           KindClassifier = "wait"
	ClassifierTimeout        KindClassifier = "timeout"
	ClassifierIdle           KindClassifier = "idle"
	ClassifierInvalidRequest KindClassifier = "invalid_request"
	ClassifierIO             KindClassifier = "io"
	ClassifierOther          KindClassifier = "other"
)

// ChannelClosedSentinel is the fixed message used when the backend's native
// event channel is closed unexpectedly.
const ChannelClosedSentinel = "backend event channel closed unexpectedly"

// ParseError redacts a per-line JSON parse failure. lineBytes is the byte
// length of the offending native line; parserSource names the parser
// component, never the line's content.
func ParseError(backend, parserSource string, lineBytes int) string {
	return fmt.Sprintf("%s stream parse error (redacted): %s (line_bytes=%d)", backend, parserSource, lineBytes)
}

// NormalizeError redacts a native-event normalization failure. shortMessage
// must already be a safe, non-payload-bearing description (e.g. a Go error
// type name), never the raw line or a user-controlled substring.
func NormalizeError(backend, shortMessage string, lineBytes int) string {
	return fmt.Sprintf("%s stream normalize error (redacted): %s (line_bytes=%d)", backend, shortMessage, lineBytes)
}

// IdleTimeout redacts an idle-timeout condition (no native events observed
// for duration).
func IdleTimeout(backend, duration string) string {
	return fmt.Sprintf("%s stream idle timeout: %s", backend, duration)
}

// ChannelClosed returns the fixed sentinel, prefixed with the backend name,
// for an unexpectedly closed native event channel.
func ChannelClosed(backend string) string {
	return fmt.Sprintf("%s: %s", backend, ChannelClosedSentinel)
}

// NonZeroExit redacts a non-zero child exit. stderr is deliberately never
// included.
func NonZeroExit(backend string, exitCode int) string {
	return fmt.Sprintf("%s exited non-zero: %d (stderr redacted)", backend, exitCode)
}

// OtherBackendError redacts any other backend failure behind a fixed
// kind-classifier, omitting details that might be unsafe to surface.
func OtherBackendError(backend string, classifier KindClassifier) string {
	return fmt.Sprintf("%s backend error: %s (details redacted when unsafe)", backend, classifier)
}
