package claudecode

import (
	"fmt"
	"strings"

	"goa.design/agentwrapper/runtime/agentwrapper"
	"goa.design/agentwrapper/runtime/agentwrapper/toolfacet"
)

const agentKind = agentwrapper.Kind("claude_code")

const (
	channelStatus    = "status"
	channelError     = "error"
	channelAssistant = "assistant"
	channelTool      = "tool"
)

func strPtr(s string) *string { return &s }

func statusEvent(message *string) agentwrapper.Event {
	ch := channelStatus
	return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Status, Channel: &ch, Message: message}
}

func errorEvent(message string) agentwrapper.Event {
	ch := channelError
	return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Error, Channel: &ch, Message: &message}
}

func unknownEvent() agentwrapper.Event {
	return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Unknown}
}

func textOutputEvent(text string) agentwrapper.Event {
	ch := channelAssistant
	return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.TextOutput, Channel: &ch, Text: &text}
}

// toolFacetEvent builds a ToolCall/ToolResult event. backend_item_id,
// thread_id, turn_id are always null for this backend; it lacks those
// correlations.
func toolFacetEvent(kind string, phase toolfacet.Phase, status toolfacet.Status, eventKind agentwrapper.EventKind, toolName, toolUseID *string) agentwrapper.Event {
	f := toolfacet.New(kind, phase, status)
	f.ToolName = toolName
	f.ToolUseID = toolUseID

	ch := channelTool
	return agentwrapper.Event{AgentKind: agentKind, Kind: eventKind, Channel: &ch, Data: f.ToMap()}
}

func toolCallStartEvent(block ContentBlock) agentwrapper.Event {
	return toolFacetEvent(blockToolUse, toolfacet.PhaseStart, toolfacet.StatusRunning, agentwrapper.ToolCall, block.Name, block.ID)
}

func toolResultCompleteEvent(block ContentBlock) agentwrapper.Event {
	return toolFacetEvent(blockToolResult, toolfacet.PhaseComplete, toolfacet.StatusCompleted, agentwrapper.ToolResult, nil, block.ToolUseID)
}

func toolCallDeltaEvent() agentwrapper.Event {
	return toolFacetEvent("tool_use", toolfacet.PhaseDelta, toolfacet.StatusRunning, agentwrapper.ToolCall, nil, nil)
}

// mapContentBlock maps one assistant_message content block, or one
// content_block_start's nested block, to its universal equivalent.
func mapContentBlock(block ContentBlock) agentwrapper.Event {
	switch block.Type {
	case blockText:
		if block.Text == nil {
			return unknownEvent()
		}
		return textOutputEvent(*block.Text)
	case blockToolUse:
		return toolCallStartEvent(block)
	case blockToolResult:
		return toolResultCompleteEvent(block)
	default:
		return unknownEvent()
	}
}

// MapEvent maps one native StreamJSONEvent to its universal equivalent(s).
// Assistant messages with multiple content blocks yield one universal event
// per block, preserving the block order.
func MapEvent(ev StreamJSONEvent) []agentwrapper.Event {
	switch ev.Type {
	case eventSystem:
		if ev.Subtype == "" || ev.Subtype == "init" {
			return []agentwrapper.Event{statusEvent(strPtr("system init"))}
		}
		return []agentwrapper.Event{statusEvent(strPtr(fmt.Sprintf("system %s", ev.Subtype)))}

	case eventResult:
		if ev.Success != nil && *ev.Success {
			return []agentwrapper.Event{statusEvent(strPtr("result success"))}
		}
		return []agentwrapper.Event{errorEvent("result error")}

	case eventUserMessage:
		return []agentwrapper.Event{statusEvent(nil)}

	case eventAssistantMessage:
		if ev.Message == nil || len(ev.Message.Content) == 0 {
			return []agentwrapper.Event{unknownEvent()}
		}
		out := make([]agentwrapper.Event, 0, len(ev.Message.Content))
		for _, block := range ev.Message.Content {
			out = append(out, mapContentBlock(block))
		}
		return out

	case eventStreamEvent:
		return []agentwrapper.Event{mapInnerEvent(ev.Event)}

	default:
		return []agentwrapper.Event{unknownEvent()}
	}
}

func mapInnerEvent(inner *InnerEvent) agentwrapper.Event {
	if inner == nil {
		return unknownEvent()
	}
	switch inner.Type {
	case innerContentBlockStart:
		if inner.ContentBlock == nil {
			return unknownEvent()
		}
		switch inner.ContentBlock.Type {
		case blockToolUse:
			return toolCallStartEvent(*inner.ContentBlock)
		case blockToolResult:
			return toolResultCompleteEvent(*inner.ContentBlock)
		default:
			return unknownEvent()
		}

	case innerContentBlockDelta:
		if inner.Delta == nil {
			return unknownEvent()
		}
		switch inner.Delta.Type {
		case deltaText:
			if inner.Delta.Text == nil {
				return unknownEvent()
			}
			return textOutputEvent(*inner.Delta.Text)
		case deltaInputJSON:
			return toolCallDeltaEvent()
		default:
			return unknownEvent()
		}

	default:
		return unknownEvent()
	}
}

// extractAssistantFinalText returns the concatenation (joined by "\n") of
// every text block in ev.Message.Content, or nil if ev is not an
// assistant_message with at least one text block. Extraction proceeds
// unconditionally while draining, independent of whether forwarding has
// stopped due to consumer drop.
func extractAssistantFinalText(ev StreamJSONEvent) *string {
	if ev.Type != eventAssistantMessage || ev.Message == nil {
		return nil
	}
	var texts []string
	for _, block := range ev.Message.Content {
		if block.Type == blockText && block.Text != nil {
			texts = append(texts, *block.Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	joined := strings.Join(texts, "\n")
	return &joined
}
