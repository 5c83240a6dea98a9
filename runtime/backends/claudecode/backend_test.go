package claudecode

import (
	"context"
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

func TestClaudeCodeRunRejectsEmptyPrompt(t *testing.T) {
	b := New(Config{}, procstream.Fake{}, nil, nil)
	_, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: ""})
	require.Error(t, err)
}

func TestClaudeCodeRunRejectsUnknownExtension(t *testing.T) {
	b := New(Config{}, procstream.Fake{}, nil, nil)
	_, err := b.Run(context.Background(), agentwrapper.RunRequest{
		Prompt:     "go",
		Extensions: map[string]any{"backend.codex.exec.sandbox_mode": "workspace-write"},
	})
	require.Error(t, err)
	var wrapped *agentwrapper.Error
	require.ErrorAs(t, err, &wrapped)
	assert.Equal(t, agentwrapper.KindUnsupportedCapability, wrapped.Kind())
}

func TestClaudeCodeRunLiveEventObservableBeforeExit(t *testing.T) {
	// S1 — a live event is observed on the stream while the child is still
	// "running" (delayed completion relative to the first line).
	scenario := procstream.FakeScenario{
		Lines: []procstream.FakeLine{
			{Text: `{"type":"system","subtype":"init"}`},
			{Text: `{"type":"assistant_message","message":{"content":[{"type":"text","text":"hi"}]}}`, Delay: 20 * time.Millisecond},
		},
		ExitCode: 0,
	}
	b := New(Config{}, procstream.Fake{Scenario: scenario}, nil, nil)
	handle, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "go"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok, err := handle.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agentwrapper.Status, ev.Kind)

	drainAll(t, handle)
	completion, err := handle.Completion(context.Background())
	require.NoError(t, err)
	require.NotNil(t, completion.FinalText)
	assert.Equal(t, "hi", *completion.FinalText)
}

func TestClaudeCodeRunDropBeforeDrainStillExtractsFinalText(t *testing.T) {
	// S6 — abandoning the event stream mid-run must not blank out final_text.
	scenario := procstream.FakeScenario{
		Lines: []procstream.FakeLine{
			{Text: `{"type":"assistant_message","message":{"content":[{"type":"text","text":"partial"}]}}`},
			{Text: `{"type":"assistant_message","message":{"content":[{"type":"text","text":"final answer"}]}}`, Delay: 5 * time.Millisecond},
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
	require.NotNil(t, completion.FinalText)
	assert.Equal(t, "final answer", *completion.FinalText)
}

func TestClaudeCodeRunNonZeroExitKeepsFinalText(t *testing.T) {
	scenario := procstream.FakeScenario{
		Lines: []procstream.FakeLine{
			{Text: `{"type":"assistant_message","message":{"content":[{"type":"text","text":"done"}]}}`},
		},
		ExitCode: 2,
	}
	b := New(Config{}, procstream.Fake{Scenario: scenario}, nil, nil)
	handle, err := b.Run(context.Background(), agentwrapper.RunRequest{Prompt: "go"})
	require.NoError(t, err)

	drainAll(t, handle)
	completion, err := handle.Completion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, completion.ExitCode)
	require.NotNil(t, completion.FinalText)
	assert.Equal(t, "done", *completion.FinalText)
}
