package agentwrapper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"goa.design/agentwrapper/runtime/telemetry"
)

// Gateway maps a Kind to its registered Backend and dispatches Run calls.
// A Gateway instance's registry is effectively immutable after startup;
// Backend/Run reads take a shared read lock, while Register takes the
// exclusive lock to guard against concurrent registration.
type Gateway struct {
	mu       sync.RWMutex
	backends map[Kind]Backend
	logger   telemetry.Logger
	tracer   telemetry.Tracer
	metrics  telemetry.Metrics
}

// GatewayOption configures optional Gateway dependencies.
type GatewayOption func(*Gateway)

// WithLogger overrides the Gateway's logger (default: telemetry.NoopLogger).
func WithLogger(l telemetry.Logger) GatewayOption { return func(g *Gateway) { g.logger = l } }

// WithTracer overrides the Gateway's tracer (default: telemetry.NoopTracer).
func WithTracer(t telemetry.Tracer) GatewayOption { return func(g *Gateway) { g.tracer = t } }

// WithMetrics overrides the Gateway's metrics sink (default: telemetry.NoopMetrics).
func WithMetrics(m telemetry.Metrics) GatewayOption { return func(g *Gateway) { g.metrics = m } }

// NewGateway constructs an empty Gateway.
func NewGateway(opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backends: make(map[Kind]Backend),
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
		metrics:  telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register inserts backend into the kind→backend map. Registering a kind a
// second time returns a KindInvalidRequest error; the first registration is
// left untouched.
func (g *Gateway) Register(backend Backend) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	kind := backend.Kind()
	if _, exists := g.backends[kind]; exists {
		return NewError(KindInvalidRequest, fmt.Sprintf("backend %q already registered", kind))
	}
	g.backends[kind] = backend
	return nil
}

// Backend returns the backend registered for kind, or nil if none is.
func (g *Gateway) Backend(kind Kind) Backend {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.backends[kind]
}

// Run resolves the backend registered for kind and delegates to it,
// assigning a run correlation id used for logging/tracing and exposed on
// the returned handle via RunHandle.RunID.
func (g *Gateway) Run(ctx context.Context, kind Kind, request RunRequest) (*RunHandle, error) {
	backend := g.Backend(kind)
	if backend == nil {
		g.logger.Warn(ctx, "run: unknown backend", "agent_kind", string(kind))
		return nil, NewUnknownBackendError(kind)
	}

	runID := uuid.NewString()
	ctx, span := g.tracer.Start(ctx, "agentwrapper.run")
	defer span.End()
	ctx = WithRunID(ctx, runID)

	g.logger.Info(ctx, "run: starting", "agent_kind", string(kind), "run_id", runID)
	g.metrics.IncCounter("agentwrapper.runs.started", 1, "agent_kind", string(kind))

	handle, err := backend.Run(ctx, request)
	if err != nil {
		g.metrics.IncCounter("agentwrapper.runs.failed", 1, "agent_kind", string(kind))
		g.logger.Warn(ctx, "run: failed to start", "agent_kind", string(kind), "run_id", runID, "error", err.Error())
		return nil, err
	}
	return handle, nil
}
