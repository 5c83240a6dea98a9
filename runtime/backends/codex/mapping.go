package codex

import (
	"encoding/json"

	"goa.design/agentwrapper/runtime/agentwrapper"
	"goa.design/agentwrapper/runtime/agentwrapper/toolfacet"
)

const agentKind = agentwrapper.Kind("codex")

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

// MapThreadEvent maps one native ThreadEvent to its universal equivalent(s).
// It always returns exactly one event (no native event is emitted as
// multiple universal events by this backend).
func MapThreadEvent(ev ThreadEvent) agentwrapper.Event {
	switch ev.Type {
	case eventThreadStarted, eventTurnStarted, eventTurnCompleted:
		return statusEvent(nil)
	case eventTurnFailed:
		return statusEvent(strPtr("turn failed"))
	case eventError:
		return errorEvent(ev.Message)
	case eventItemStarted:
		return mapItemSnapshot(ev, toolfacet.PhaseStart)
	case eventItemCompleted:
		return mapItemSnapshot(ev, toolfacet.PhaseComplete)
	case eventItemDelta:
		return mapItemDelta(ev)
	case eventItemFailed:
		return mapItemFailed(ev)
	default:
		return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Unknown}
	}
}

type toolBytes struct {
	stdout, stderr, diff, result int
}

func toolResultBytes(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	return len(raw)
}

func toolFacetEvent(kind string, phase toolfacet.Phase, status toolfacet.Status, eventKind agentwrapper.EventKind,
	itemID, threadID, turnID *string, exitCode *int, bytes toolBytes) agentwrapper.Event {
	f := toolfacet.New(kind, phase, status)
	f.BackendItemID = itemID
	f.ThreadID = threadID
	f.TurnID = turnID
	f.ExitCode = exitCode
	f.Bytes = toolfacet.Bytes{Stdout: bytes.stdout, Stderr: bytes.stderr, Diff: bytes.diff, Result: bytes.result}

	ch := channelTool
	return agentwrapper.Event{
		AgentKind: agentKind,
		Kind:      eventKind,
		Channel:   &ch,
		Data:      f.ToMap(),
	}
}

func mapItemSnapshot(ev ThreadEvent, phase toolfacet.Phase) agentwrapper.Event {
	item := ev.Item
	if item == nil {
		return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Unknown}
	}

	switch item.ItemType {
	case itemTypeAgentMessage, itemTypeReasoning:
		ch := channelAssistant
		return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.TextOutput, Channel: &ch, Text: strPtr(item.Text)}

	case itemTypeCommandExecution:
		status, kind := toolfacet.StatusRunning, agentwrapper.ToolCall
		if phase == toolfacet.PhaseComplete {
			status, kind = toolfacet.StatusCompleted, agentwrapper.ToolResult
		}
		bytes := toolBytes{stdout: len(item.Stdout), stderr: len(item.Stderr)}
		return toolFacetEvent(itemTypeCommandExecution, phase, status, kind,
			strPtr(item.ItemID), strPtr(ev.ThreadID), strPtr(ev.TurnID), item.ExitCode, bytes)

	case itemTypeFileChange:
		status, kind := toolfacet.StatusRunning, agentwrapper.ToolCall
		if phase == toolfacet.PhaseComplete {
			status, kind = toolfacet.StatusCompleted, agentwrapper.ToolResult
		}
		bytes := toolBytes{stdout: len(item.Stdout), stderr: len(item.Stderr)}
		if item.Diff != nil {
			bytes.diff = len(*item.Diff)
		}
		return toolFacetEvent(itemTypeFileChange, phase, status, kind,
			strPtr(item.ItemID), strPtr(ev.ThreadID), strPtr(ev.TurnID), item.ExitCode, bytes)

	case itemTypeMCPToolCall:
		status, kind := toolfacet.StatusRunning, agentwrapper.ToolCall
		if phase == toolfacet.PhaseComplete {
			status, kind = toolfacet.StatusCompleted, agentwrapper.ToolResult
		}
		bytes := toolBytes{result: toolResultBytes(item.Result)}
		return toolFacetEvent(itemTypeMCPToolCall, phase, status, kind,
			strPtr(item.ItemID), strPtr(ev.ThreadID), strPtr(ev.TurnID), nil, bytes)

	case itemTypeWebSearch:
		status, kind := toolfacet.StatusRunning, agentwrapper.ToolCall
		if phase == toolfacet.PhaseComplete {
			status, kind = toolfacet.StatusCompleted, agentwrapper.ToolResult
		}
		bytes := toolBytes{result: toolResultBytes(item.Results)}
		return toolFacetEvent(itemTypeWebSearch, phase, status, kind,
			strPtr(item.ItemID), strPtr(ev.ThreadID), strPtr(ev.TurnID), nil, bytes)

	case itemTypeTodoList:
		return statusEvent(nil)

	case itemTypeError:
		if item.Error != nil {
			return errorEvent(item.Error.Message)
		}
		return errorEvent("")

	default:
		return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Unknown}
	}
}

func mapItemDelta(ev ThreadEvent) agentwrapper.Event {
	delta := ev.Delta
	if delta == nil {
		return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Unknown}
	}

	switch delta.ItemType {
	case itemTypeAgentMessage, itemTypeReasoning:
		ch := channelAssistant
		return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.TextOutput, Channel: &ch, Text: strPtr(delta.TextDelta)}

	case itemTypeCommandExecution:
		bytes := toolBytes{stdout: len(delta.Stdout), stderr: len(delta.Stderr)}
		return toolFacetEvent(itemTypeCommandExecution, toolfacet.PhaseDelta, toolfacet.StatusRunning, agentwrapper.ToolCall,
			nil, strPtr(ev.ThreadID), strPtr(ev.TurnID), delta.ExitCode, bytes)

	case itemTypeFileChange:
		bytes := toolBytes{stdout: len(delta.Stdout), stderr: len(delta.Stderr)}
		if delta.Diff != nil {
			bytes.diff = len(*delta.Diff)
		}
		return toolFacetEvent(itemTypeFileChange, toolfacet.PhaseDelta, toolfacet.StatusRunning, agentwrapper.ToolCall,
			nil, strPtr(ev.ThreadID), strPtr(ev.TurnID), delta.ExitCode, bytes)

	case itemTypeMCPToolCall:
		bytes := toolBytes{result: toolResultBytes(delta.Result)}
		return toolFacetEvent(itemTypeMCPToolCall, toolfacet.PhaseDelta, toolfacet.StatusRunning, agentwrapper.ToolCall,
			nil, strPtr(ev.ThreadID), strPtr(ev.TurnID), nil, bytes)

	case itemTypeWebSearch:
		bytes := toolBytes{result: toolResultBytes(delta.Results)}
		return toolFacetEvent(itemTypeWebSearch, toolfacet.PhaseDelta, toolfacet.StatusRunning, agentwrapper.ToolCall,
			nil, strPtr(ev.ThreadID), strPtr(ev.TurnID), nil, bytes)

	case itemTypeTodoList:
		return statusEvent(nil)

	case itemTypeError:
		if delta.Error != nil {
			return errorEvent(delta.Error.Message)
		}
		return errorEvent("")

	default:
		return agentwrapper.Event{AgentKind: agentKind, Kind: agentwrapper.Unknown}
	}
}

// mapItemFailed implements the strict item.failed attribution rule:
// item_type must appear at the event's top level (never nested) for the
// event to become a failure-attributed ToolResult.
func mapItemFailed(ev ThreadEvent) agentwrapper.Event {
	if ev.ItemType == "" || !isToolishItemType(ev.ItemType) {
		if ev.Item != nil && ev.Item.Error != nil {
			return errorEvent(ev.Item.Error.Message)
		}
		return errorEvent("")
	}

	var itemID, threadID, turnID *string
	if ev.Item != nil {
		itemID = strPtr(ev.Item.ItemID)
	}
	threadID = strPtr(ev.ThreadID)
	turnID = strPtr(ev.TurnID)

	return toolFacetEvent(ev.ItemType, toolfacet.PhaseFail, toolfacet.StatusFailed, agentwrapper.ToolResult,
		itemID, threadID, turnID, nil, toolBytes{})
}
