package claudecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentwrapper/runtime/agentwrapper"
)

func TestMapEventSystemInit(t *testing.T) {
	events := MapEvent(StreamJSONEvent{Type: eventSystem, Subtype: "init"})
	require.Len(t, events, 1)
	assert.Equal(t, agentwrapper.Status, events[0].Kind)
	assert.Equal(t, "system init", *events[0].Message)
}

func TestMapEventSystemOtherSubtype(t *testing.T) {
	events := MapEvent(StreamJSONEvent{Type: eventSystem, Subtype: "warning"})
	assert.Equal(t, "system warning", *events[0].Message)
}

func TestMapEventResultSuccess(t *testing.T) {
	ok := true
	events := MapEvent(StreamJSONEvent{Type: eventResult, Success: &ok})
	assert.Equal(t, agentwrapper.Status, events[0].Kind)
	assert.Equal(t, "result success", *events[0].Message)
}

func TestMapEventResultFailure(t *testing.T) {
	failed := false
	events := MapEvent(StreamJSONEvent{Type: eventResult, Success: &failed})
	assert.Equal(t, agentwrapper.Error, events[0].Kind)
	assert.Equal(t, "result error", *events[0].Message)
}

func TestMapEventUserMessageIsStatus(t *testing.T) {
	events := MapEvent(StreamJSONEvent{Type: eventUserMessage})
	assert.Equal(t, agentwrapper.Status, events[0].Kind)
	assert.Nil(t, events[0].Message)
}

func TestMapEventAssistantMessageTextBlock(t *testing.T) {
	text := "hello there"
	events := MapEvent(StreamJSONEvent{
		Type:    eventAssistantMessage,
		Message: &MessagePayload{Content: []ContentBlock{{Type: blockText, Text: &text}}},
	})
	require.Len(t, events, 1)
	assert.Equal(t, agentwrapper.TextOutput, events[0].Kind)
	assert.Equal(t, "assistant", *events[0].Channel)
	assert.Equal(t, text, *events[0].Text)
}

func TestMapEventAssistantMessageMissingTextIsUnknown(t *testing.T) {
	events := MapEvent(StreamJSONEvent{
		Type:    eventAssistantMessage,
		Message: &MessagePayload{Content: []ContentBlock{{Type: blockText}}},
	})
	assert.Equal(t, agentwrapper.Unknown, events[0].Kind)
}

func TestMapEventAssistantMessageToolUse(t *testing.T) {
	name, id := "bash", "tu_1"
	events := MapEvent(StreamJSONEvent{
		Type:    eventAssistantMessage,
		Message: &MessagePayload{Content: []ContentBlock{{Type: blockToolUse, Name: &name, ID: &id}}},
	})
	assert.Equal(t, agentwrapper.ToolCall, events[0].Kind)
	facet := events[0].Data.(map[string]any)
	tool := facet["tool"].(map[string]any)
	assert.Equal(t, "tool_use", tool["kind"])
	assert.Equal(t, "start", tool["phase"])
	assert.Equal(t, "bash", tool["tool_name"])
	assert.Equal(t, "tu_1", tool["tool_use_id"])
	assert.Nil(t, tool["backend_item_id"])
	assert.Nil(t, tool["thread_id"])
	assert.Nil(t, tool["turn_id"])
}

func TestMapEventAssistantMessageToolResult(t *testing.T) {
	toolUseID := "tu_1"
	events := MapEvent(StreamJSONEvent{
		Type:    eventAssistantMessage,
		Message: &MessagePayload{Content: []ContentBlock{{Type: blockToolResult, ToolUseID: &toolUseID}}},
	})
	assert.Equal(t, agentwrapper.ToolResult, events[0].Kind)
	facet := events[0].Data.(map[string]any)
	tool := facet["tool"].(map[string]any)
	assert.Equal(t, "complete", tool["phase"])
	assert.Equal(t, "completed", tool["status"])
	assert.Equal(t, "tu_1", tool["tool_use_id"])
}

func TestMapEventStreamEventContentBlockStartToolUse(t *testing.T) {
	name := "bash"
	events := MapEvent(StreamJSONEvent{
		Type: eventStreamEvent,
		Event: &InnerEvent{
			Type:         innerContentBlockStart,
			ContentBlock: &ContentBlock{Type: blockToolUse, Name: &name},
		},
	})
	assert.Equal(t, agentwrapper.ToolCall, events[0].Kind)
}

func TestMapEventStreamEventContentBlockDeltaText(t *testing.T) {
	chunk := "chunk"
	events := MapEvent(StreamJSONEvent{
		Type:  eventStreamEvent,
		Event: &InnerEvent{Type: innerContentBlockDelta, Delta: &Delta{Type: deltaText, Text: &chunk}},
	})
	assert.Equal(t, agentwrapper.TextOutput, events[0].Kind)
	assert.Equal(t, "chunk", *events[0].Text)
}

func TestMapEventStreamEventContentBlockDeltaTextMissingFieldIsUnknown(t *testing.T) {
	events := MapEvent(StreamJSONEvent{
		Type:  eventStreamEvent,
		Event: &InnerEvent{Type: innerContentBlockDelta, Delta: &Delta{Type: deltaText}},
	})
	assert.Equal(t, agentwrapper.Unknown, events[0].Kind)
}

func TestMapEventStreamEventContentBlockDeltaInputJSON(t *testing.T) {
	events := MapEvent(StreamJSONEvent{
		Type:  eventStreamEvent,
		Event: &InnerEvent{Type: innerContentBlockDelta, Delta: &Delta{Type: deltaInputJSON, PartialJSON: `{"a":1`}},
	})
	assert.Equal(t, agentwrapper.ToolCall, events[0].Kind)
	facet := events[0].Data.(map[string]any)
	tool := facet["tool"].(map[string]any)
	assert.Equal(t, "delta", tool["phase"])
	assert.Nil(t, tool["tool_name"])
}

func TestMapEventUnknownOuterKind(t *testing.T) {
	events := MapEvent(StreamJSONEvent{Type: "something_new"})
	assert.Equal(t, agentwrapper.Unknown, events[0].Kind)
}

func TestExtractAssistantFinalTextJoinsMultipleTextBlocks(t *testing.T) {
	a, b := "first", "second"
	ev := StreamJSONEvent{
		Type: eventAssistantMessage,
		Message: &MessagePayload{Content: []ContentBlock{
			{Type: blockText, Text: &a},
			{Type: blockToolUse},
			{Type: blockText, Text: &b},
		}},
	}
	text := extractAssistantFinalText(ev)
	require.NotNil(t, text)
	assert.Equal(t, "first\nsecond", *text)
}

func TestExtractAssistantFinalTextNilForNonAssistantEvent(t *testing.T) {
	assert.Nil(t, extractAssistantFinalText(StreamJSONEvent{Type: eventUserMessage}))
}
