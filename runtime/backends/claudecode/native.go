// Package claudecode adapts the Claude Code print stream-json CLI to the
// universal wrapper contract: it validates extension options, pins the
// non-interactive permission mode, spawns the child via procstream, parses
// its native ClaudeStreamJsonEvent protocol, and maps each event to the
// universal envelope, extracting the assistant's final text as it drains.
package claudecode

// StreamJSONEvent is the native event shape emitted by Claude Code's
// `--output-format stream-json` print mode, one per stdout line.
type StreamJSONEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
	Event   *InnerEvent     `json:"event,omitempty"`
}

// MessagePayload is the payload of assistant_message/user_message events.
type MessagePayload struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is one element of an assistant message's content array, or a
// content_block_start's block.
type ContentBlock struct {
	Type      string  `json:"type"`
	Text      *string `json:"text,omitempty"`
	Name      *string `json:"name,omitempty"`
	ID        *string `json:"id,omitempty"`
	ToolUseID *string `json:"tool_use_id,omitempty"`
}

// InnerEvent is the payload of a stream_event envelope: either a
// content_block_start or a content_block_delta.
type InnerEvent struct {
	Type         string        `json:"type"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *Delta        `json:"delta,omitempty"`
}

// Delta is the payload of a content_block_delta inner event. Text is a
// pointer so a delta with no "text" field is distinguishable from one
// carrying an explicit empty string.
type Delta struct {
	Type        string  `json:"type"`
	Text        *string `json:"text,omitempty"`
	PartialJSON string  `json:"partial_json,omitempty"`
}

// Outer event type tag constants.
const (
	eventSystem           = "system"
	eventResult           = "result"
	eventUserMessage      = "user_message"
	eventAssistantMessage = "assistant_message"
	eventStreamEvent      = "stream_event"
)

// Content block type tag constants.
const (
	blockText       = "text"
	blockToolUse    = "tool_use"
	blockToolResult = "tool_result"
)

// Inner stream_event type tag constants.
const (
	innerContentBlockStart = "content_block_start"
	innerContentBlockDelta = "content_block_delta"
)

// Delta type tag constants.
const (
	deltaText      = "text_delta"
	deltaInputJSON = "input_json_delta"
)
