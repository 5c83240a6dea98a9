// Package bounds enforces per-field byte budgets on universal events and
// completion payloads, splitting oversized text into ordered, char-boundary
// safe chunks rather than dropping data.
package bounds

import (
	"encoding/json"
	"unicode/utf8"

	"goa.design/agentwrapper/runtime/agentwrapper"
)

const (
	// ChannelBoundBytes is the maximum length of Event.Channel.
	ChannelBoundBytes = 128
	// TextBoundBytes is the maximum length of a single TextOutput chunk,
	// and of Completion.FinalText.
	TextBoundBytes = 65536
	// MessageBoundBytes is the maximum length of Event.Message.
	MessageBoundBytes = 4096
	// DataBoundBytes is the maximum serialized length of Event.Data and
	// Completion.Data.
	DataBoundBytes = 65536
)

const truncatedSuffix = "…(truncated)"

// droppedOversize is substituted for any data facet whose serialized form
// exceeds DataBoundBytes.
var droppedOversize = map[string]any{"dropped": map[string]any{"reason": "oversize"}}

// EnforceEvent converts a freshly-mapped event into a sequence of
// bound-conforming events. Non-text events always yield exactly one event;
// TextOutput events whose text exceeds TextBoundBytes yield one event per
// char-boundary-safe chunk, and the concatenation of chunk texts equals the
// original text exactly. EnforceEvent never fails.
func EnforceEvent(event agentwrapper.Event) []agentwrapper.Event {
	event.Channel = enforceChannelBound(event.Channel)
	if event.Message != nil {
		msg := enforceMessageBound(*event.Message)
		event.Message = &msg
	}
	if event.Data != nil {
		event.Data = enforceDataBound(event.Data)
	}

	if event.Kind != agentwrapper.TextOutput || event.Text == nil {
		return []agentwrapper.Event{event}
	}

	text := *event.Text
	if len(text) <= TextBoundBytes {
		return []agentwrapper.Event{event}
	}

	chunks := SplitUTF8Chunks(text, TextBoundBytes)
	out := make([]agentwrapper.Event, 0, len(chunks))
	for _, chunk := range chunks {
		e := event
		c := chunk
		e.Text = &c
		out = append(out, e)
	}
	return out
}

// EnforceCompletion re-checks Completion.Data (replacing it if oversize) and
// truncates Completion.FinalText to the text bound at a char boundary.
func EnforceCompletion(c agentwrapper.Completion) agentwrapper.Completion {
	if c.Data != nil {
		c.Data = enforceDataBound(c.Data)
	}
	if c.FinalText != nil {
		truncated := UTF8TruncateToBytes(*c.FinalText, TextBoundBytes)
		c.FinalText = &truncated
	}
	return c
}

func enforceChannelBound(channel *string) *string {
	if channel == nil {
		return nil
	}
	if len(*channel) <= ChannelBoundBytes {
		return channel
	}
	return nil
}

func enforceMessageBound(message string) string {
	if len(message) <= MessageBoundBytes {
		return message
	}

	suffixBytes := len(truncatedSuffix)
	if MessageBoundBytes > suffixBytes {
		prefix := UTF8TruncateToBytes(message, MessageBoundBytes-suffixBytes)
		return prefix + truncatedSuffix
	}
	return UTF8TruncateToBytes("…", MessageBoundBytes)
}

func enforceDataBound(data any) any {
	encoded, err := json.Marshal(data)
	if err != nil || len(encoded) > DataBoundBytes {
		return droppedOversize
	}
	return data
}

// SplitUTF8Chunks splits text into ordered chunks of at most boundBytes
// bytes each, always cutting on a UTF-8 char boundary. If a single
// character is wider than boundBytes, that character is emitted alone in
// its own chunk (an acceptable overrun to guarantee forward progress).
func SplitUTF8Chunks(text string, boundBytes int) []string {
	if boundBytes <= 0 {
		return nil
	}
	if len(text) <= boundBytes {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(text) {
		end := start + boundBytes
		if end > len(text) {
			end = len(text)
		}
		for end > start && end < len(text) && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == start {
			_, size := utf8.DecodeRuneInString(text[start:])
			if size == 0 {
				size = 1
			}
			end = start + size
			if end > len(text) {
				end = len(text)
			}
		}
		out = append(out, text[start:end])
		start = end
	}
	return out
}

// UTF8TruncateToBytes returns the longest prefix of s whose length is at
// most boundBytes, cutting on a UTF-8 char boundary.
func UTF8TruncateToBytes(s string, boundBytes int) string {
	if len(s) <= boundBytes {
		return s
	}
	end := boundBytes
	if end > len(s) {
		end = len(s)
	}
	for end > 0 && end < len(s) && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
