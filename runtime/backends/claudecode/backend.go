package claudecode

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

const backendName = "claude_code"

const defaultRunTimeout = 10 * time.Minute

var capabilities = agentwrapper.NewCapabilities(
	"agent_api.run",
	"agent_api.events",
	"agent_api.events.live",
	"agent_api.tools.structured.v1",
	"agent_api.tools.results.v1",
	"agent_api.artifacts.final_text.v1",
	"backend.claude_code.print_stream_json",
	"agent_api.exec.non_interactive",
)

// Backend implements agentwrapper.Backend for the Claude Code print
// stream-json CLI.
type Backend struct {
	Config  Config
	Spawner procstream.Spawner
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// New constructs a Claude Code Backend. If spawner is nil, procstream.Exec
// is used; logger/metrics default to no-ops when nil.
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

// Run implements agentwrapper.Backend.
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
		b.Logger.Warn(ctx, "claude_code: spawn failed", "error", err.Error())
		return nil, agentwrapper.NewBackendError(redact.OtherBackendError(backendName, redact.ClassifierSpawn), err)
	}

	runID, ok := agentwrapper.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
	}
	runHandle, sink, completionCh := agentwrapper.NewGatedRunHandle(runID, cancel)

	go b.drive(handle, sink, completionCh)

	return runHandle, nil
}

func (b *Backend) resolveBinary() string {
	if b.Config.Binary != "" {
		return b.Config.Binary
	}
	return "claude"
}

// drive pulls native lines, maps and bounds-enforces each one, forwards
// through sink, and tracks the last assistant message's text
// unconditionally — S6 requires final_text to remain populated even after
// the consumer abandons the event stream mid-run.
func (b *Backend) drive(handle *procstream.Handle, sink *agentwrapper.EventSink, completionCh chan<- agentwrapper.CompletionResult) {
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

		if text := extractAssistantFinalText(ev); text != nil {
			finalText = text
		}

		for _, mapped := range MapEvent(ev) {
			if !forwarding {
				break
			}
			forwarding = forward(sink, mapped)
		}
	}

	outcome := <-handle.Completion

	if outcome.Err == nil && outcome.ExitCode != 0 && forwarding {
		msg := redact.NonZeroExit(backendName, outcome.ExitCode)
		ch := "error"
		forward(sink, agentwrapper.Event{AgentKind: b.Kind(), Kind: agentwrapper.Error, Channel: &ch, Message: &msg})
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
			ExitCode:  outcome.ExitCode,
			Success:   true,
			FinalText: finalText,
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

func parseLine(line procstream.Line) (StreamJSONEvent, error) {
	var ev StreamJSONEvent
	dec := json.NewDecoder(strings.NewReader(string(line.Bytes)))
	if err := dec.Decode(&ev); err != nil {
		return StreamJSONEvent{}, err
	}
	return ev, nil
}
