package agentwrapper

import "context"

// Backend adapts one external agent CLI to the universal wrapper contract.
// Implementations live in sibling packages (backends/codex,
// backends/claudecode); Gateway dispatches to whichever is registered for a
// request's Kind.
type Backend interface {
	// Kind returns the backend's registered identifier.
	Kind() Kind
	// Capabilities returns the set of capability identifiers this backend
	// advertises.
	Capabilities() Capabilities
	// Run validates request, spawns the underlying CLI, and returns a
	// RunHandle whose event stream and completion future are both live.
	// Run itself does not block on the child's lifetime; validation
	// failures are returned synchronously without spawning anything.
	Run(ctx context.Context, request RunRequest) (*RunHandle, error)
}
