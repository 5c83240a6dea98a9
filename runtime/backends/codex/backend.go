package codex

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"goa.design/agentwrapper/runtime/agentwrapper"
	"goa.design/agentwrapper/runtime/agentwrapper/bounds"
	"goa.design/agentwrapper/runtime/agentwrapper/redact"
	"goa.design/agentwrapper/runtime/procstream"
	"goa.design/agentwrapper/runtime/telemetry"
)

const backendName = "codex"

const defaultRunTimeout = 10 * time.Minute

var capabilities = agentwrapper.NewCapabilities(
	"agent_api.run",
	"agent_api.events",
	"agent_api.events.live",
	"agent_api.tools.structured.v1",
	"agent_api.tools.results.v1",
	"agent_api.artifacts.final_text.v1",
	"backend.codex.exec_stream",
	"agent_api.exec.non_interactive",
	"backend.codex.exec.approval_policy",
	"backend.codex.exec.sandbox_mode",
)

// Backend implements agentwrapper.Backend for the Codex stream-exec CLI.
type Backend struct {
	Config  Config
	Spawner procstream.Spawner
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// New constructs a Codex Backend. If spawner is nil, procstream.Exec is
// used; logger/metrics default to no-ops when nil.
func New(config Config, spawner procstream.Spawner, logger telemetry.Logger, metrics telemetry.Metrics) *Backend {
	if spawner == nil {
		spawner = procstream.Exec{}
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Backend{Config: config, Spawner: spawner, Logger: logger, Metrics: metrics}
}

// Kind implements agentwrapper.Backend.
func (b *Backend) Kind() agentwrapper.Kind { return agentwrapper.Kind(backendName) }

// Capabilities implements agentwrapper.Backend.
func (b *Backend) Capabilities() agentwrapper.Capabilities { return capabilities }

// Run implements agentwrapper.Backend. Validation failures return
// synchronously without spawning a child; once spawned, the run proceeds on
// background goroutines and its progress is observed through the returned
// RunHandle.
func (b *Backend) Run(ctx context.Context, request agentwrapper.RunRequest) (*agentwrapper.RunHandle, error) {
	if trimmedEmpty(request.Prompt) {
		return nil, agentwrapper.NewError(agentwrapper.KindInvalidRequest, "prompt must not be empty")
	}

	pol, err := resolvePolicy(b.Kind(), request.Extensions)
	if err != nil {
		return nil, err
	}

	workingDir, err := resolveWorkingDir(request.WorkingDir, b.Config.DefaultWorkingDir)
	if err != nil {
		return nil, err
	}

	timeout := defaultRunTimeout
	if request.Timeout != nil {
		timeout = *request.Timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)

	spec := procstream.Spec{
		Binary:     b.resolveBinary(),
		Args:       pol.cliArgs(request.Prompt),
		WorkingDir: workingDir,
		Env:        mergeEnv(b.Config.Env, request.Env),
	}

	handle, err := b.Spawner.Spawn(runCtx, spec)
	if err != nil {
		cancel()
		b.Logger.Warn(ctx, "codex: spawn failed", "error", err.Error())
		return nil, agentwrapper.NewBackendError(redact.OtherBackendError(backendName, redact.ClassifierSpawn), err)
	}

	runID, ok := agentwrapper.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
	}
	runHandle, sink, completionCh := agentwrapper.NewGatedRunHandle(runID, cancel)

	go b.drive(runCtx, handle, sink, completionCh)

	return runHandle, nil
}

func (b *Backend) resolveBinary() string {
	if b.Config.Binary != "" {
		return b.Config.Binary
	}
	return "codex"
}

// drive pulls native lines from handle, maps and bounds-enforces each one,
// forwards it through sink, and resolves completion once the native stream
// has ended. It never stops draining early: if the consumer abandons the
// event stream, forwarding stops but draining (and thus child reaping)
// continues.
func (b *Backend) drive(_ context.Context, handle *procstream.Handle, sink *agentwrapper.EventSink, completionCh chan<- agentwrapper.CompletionResult) {
	forwarding := true
	var finalText *string

	for line := range handle.Lines {
		ev, parseErr := parseLine(line)
		if parseErr != nil {
			msg := redact.ParseError(backendName, "json_decode", line.Len())
			ch := "error"
			redacted := agentwrapper.Event{AgentKind: b.Kind(), Kind: agentwrapper.Error, Channel: &ch, Message: &msg}
			if forwarding {
				forwarding = forward(sink, redacted)
			}
			continue
		}

		if ev.Kind == agentwrapper.TextOutput && ev.Channel != nil && *ev.Channel == channelAssistant && ev.Text != nil {
			finalText = appendFinalText(finalText, *ev.Text)
		}

		if forwarding {
			forwarding = forward(sink, ev)
		}
	}

	outcome := <-handle.Completion

	if outcome.Err == nil && outcome.ExitCode != 0 && forwarding {
		msg := redact.NonZeroExit(backendName, outcome.ExitCode)
		ch := "error"
		forwarding = forward(sink, agentwrapper.Event{AgentKind: b.Kind(), Kind: agentwrapper.Error, Channel: &ch, Message: &msg})
	}

	sink.Close()

	switch {
	case outcome.Err != nil:
		classifier := redact.ClassifierWait
		if errors.Is(outcome.Err, context.DeadlineExceeded) {
			classifier = redact.ClassifierTimeout
		}
		msg := redact.OtherBackendError(backendName, classifier)
		completionCh <- agentwrapper.CompletionResult{Err: agentwrapper.NewBackendError(msg, outcome.Err)}
	case outcome.ExitCode != 0:
		completionCh <- agentwrapper.CompletionResult{Completion: bounds.EnforceCompletion(agentwrapper.Completion{
			ExitCode: outcome.ExitCode,
			Success:  true,
		})}
	default:
		completionCh <- agentwrapper.CompletionResult{Completion: bounds.EnforceCompletion(agentwrapper.Completion{
			ExitCode:  outcome.ExitCode,
			Success:   true,
			FinalText: finalText,
		})}
	}
}

func forward(sink *agentwrapper.EventSink, ev agentwrapper.Event) bool {
	for _, bounded := range bounds.EnforceEvent(ev) {
		if !sink.Send(bounded) {
			return false
		}
	}
	return true
}

func appendFinalText(existing *string, chunk string) *string {
	if existing == nil {
		return &chunk
	}
	combined := *existing + chunk
	return &combined
}

// parseLine decodes one native stdout line into a ThreadEvent and maps it.
// A JSON decode failure is returned as an error so the caller can redact it
// without touching the raw line content.
func parseLine(line procstream.Line) (agentwrapper.Event, error) {
	var te ThreadEvent
	dec := json.NewDecoder(strings.NewReader(string(line.Bytes)))
	if err := dec.Decode(&te); err != nil {
		return agentwrapper.Event{}, err
	}
	return MapThreadEvent(te), nil
}
