package codex

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentwrapper/runtime/agentwrapper"
	"goa.design/agentwrapper/runtime/procstream"
)

func drainAll(t *testing.T, handle *agentwrapper.RunHandle) []agentwrapper.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var events []agentwrapper.Event
	for {
		ev, ok, err := handle.Recv(ctx)
		require.NoError(t, err)
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func eventStrings(events []agentwrapper.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Message != nil {
			out = append(out, *ev.Message)
		}
		if ev.Text != nil {
			out = append(out, *ev.Text)
		}
	}
	return out
}

func TestCodexRunRejectsEmptyPrompt(t *testing.T) {
	b := New(Config{}, procstream.Fake{}, nil, nil)
	_, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "   "})
	require.Error(t, err)
	var wrapped *agentwrapper.Error
	require.ErrorAs(t, err, &wrapped)
	assert.Equal(t, agentwrapper.KindInvalidRequest, wrapped.Kind())
}

func TestCodexRunRejectsNonInteractiveContradictionWithoutSpawning(t *testing.T) {
	// S5
	spawner := &countingSpawner{Fake: procstream.Fake{}}
	b := New(Config{}, spawner, nil, nil)
	_, err := b.Run(context.Background(), agentwrapper.RunRequest{
		Prompt: "do it",
		Extensions: map[string]any{
			"agent_api.exec.non_interactive":     true,
			"backend.codex.exec.approval_policy": "untrusted",
		},
	})
	require.Error(t, err)
	assert.Equal(t, 0, spawner.calls)
}

func TestCodexRunRedactsParseErrorAndStillCompletes(t *testing.T) {
	// S2
	scenario := procstream.FakeScenario{
		Lines: []procstream.FakeLine{
			{Text: `{"type":"thread.started"}`},
			{Text: `THIS IS NOT JSON RAW-LINE-SECRET-PARSE`},
			{Text: `{"type":"turn.started"}`},
		},
		ExitCode: 0,
	}
	b := New(Config{}, procstream.Fake{Scenario: scenario}, nil, nil)
	handle, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "go"})
	require.NoError(t, err)

	events := drainAll(t, handle)
	require.NotEmpty(t, events)

	errIdx := -1
	statusAfterErrIdx := -1
	for i, ev := range events {
		if ev.Kind == agentwrapper.Error && errIdx == -1 {
			errIdx = i
		}
		if errIdx != -1 && i > errIdx && ev.Kind == agentwrapper.Status && statusAfterErrIdx == -1 {
			statusAfterErrIdx = i
		}
	}
	assert.GreaterOrEqual(t, errIdx, 0, "expected at least one Error event")
	assert.Greater(t, statusAfterErrIdx, errIdx, "expected a Status event after the Error event")

	for _, s := range eventStrings(events) {
		assert.NotContains(t, s, "RAW-LINE-SECRET-PARSE")
	}

	completion, err := handle.Completion(context.Background())
	require.NoError(t, err)
	assert.True(t, completion.Success)
}

func TestCodexRunRedactsNonZeroExit(t *testing.T) {
	// S3
	scenario := procstream.FakeScenario{
		Lines:    []procstream.FakeLine{{Text: `{"type":"thread.started"}`}},
		ExitCode: 3,
	}
	b := New(Config{}, procstream.Fake{Scenario: scenario}, nil, nil)
	handle, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "go"})
	require.NoError(t, err)

	events := drainAll(t, handle)
	sawError := false
	for _, ev := range events {
		if ev.Kind == agentwrapper.Error {
			sawError = true
		}
	}
	assert.True(t, sawError)
	for _, s := range eventStrings(events) {
		assert.NotContains(t, s, "RAW-STDERR-SECRET")
	}

	completion, err := handle.Completion(context.Background())
	require.NoError(t, err)
	assert.True(t, completion.Success)
	assert.Equal(t, 3, completion.ExitCode)
	assert.Nil(t, completion.FinalText)
}

func TestCodexRunItemFailedAttribution(t *testing.T) {
	// S4 via the real run pipeline (not just MapThreadEvent directly).
	scenario := procstream.FakeScenario{
		Lines: []procstream.FakeLine{
			{Text: `{"type":"item.failed","item_type":"command_execution","thread_id":"t1","turn_id":"r1"}`},
		},
		ExitCode: 0,
	}
	b := New(Config{}, procstream.Fake{Scenario: scenario}, nil, nil)
	handle, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "go"})
	require.NoError(t, err)

	events := drainAll(t, handle)
	var toolResults []agentwrapper.Event
	for _, ev := range events {
		if ev.Kind == agentwrapper.ToolResult {
			toolResults = append(toolResults, ev)
		}
	}
	require.Len(t, toolResults, 1)
	facet := toolResults[0].Data.(map[string]any)
	tool := facet["tool"].(map[string]any)
	assert.Equal(t, "fail", tool["phase"])
	assert.Equal(t, "failed", tool["status"])
	assert.Equal(t, "command_execution", tool["kind"])
	assert.Nil(t, tool["exit_code"])
}

func TestCodexRunAbandonedEventsStillDrainsChild(t *testing.T) {
	scenario := procstream.FakeScenario{
		Lines: []procstream.FakeLine{
			{Text: `{"type":"thread.started"}`},
			{Text: `{"type":"turn.started"}`, Delay: 5 * time.Millisecond},
			{Text: `{"type":"turn.completed"}`, Delay: 5 * time.Millisecond},
		},
		ExitCode: 0,
	}
	b := New(Config{}, procstream.Fake{Scenario: scenario}, nil, nil)
	handle, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "go"})
	require.NoError(t, err)

	handle.CloseEvents()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	completion, err := handle.Completion(ctx)
	require.NoError(t, err)
	assert.True(t, completion.Success)
}

func TestCodexFinalTextAccumulatesAssistantText(t *testing.T) {
	scenario := procstream.FakeScenario{
		Lines: []procstream.FakeLine{
			{Text: `{"type":"item.completed","item":{"item_id":"i1","item_type":"agent_message","text":"hello "}}`},
			{Text: `{"type":"item.completed","item":{"item_id":"i2","item_type":"agent_message","text":"world"}}`},
		},
		ExitCode: 0,
	}
	b := New(Config{}, procstream.Fake{Scenario: scenario}, nil, nil)
	handle, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "go"})
	require.NoError(t, err)

	drainAll(t, handle)
	completion, err := handle.Completion(context.Background())
	require.NoError(t, err)
	require.NotNil(t, completion.FinalText)
	assert.True(t, strings.Contains(*completion.FinalText, "hello") && strings.Contains(*completion.FinalText, "world"))
}

type countingSpawner struct {
	procstream.Fake
	calls int
}

func (c *countingSpawner) Spawn(ctx context.Context, spec procstream.Spec) (*procstream.Handle, error) {
	c.calls++
	return c.Fake.Spawn(ctx, spec)
}
