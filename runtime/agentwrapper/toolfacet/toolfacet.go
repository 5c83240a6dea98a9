// Package toolfacet defines the versioned JSON document carried under a
// ToolCall/ToolResult event's Data field, and validates it against a
// compiled JSON Schema.
package toolfacet

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaID is the versioned schema identifier carried in every tool facet's
// "schema" field.
const SchemaID = "agent_api.tools.structured.v1"

// Phase enumerates a tool invocation's lifecycle phase.
type Phase string

// Recognized phases.
const (
	PhaseStart    Phase = "start"
	PhaseDelta    Phase = "delta"
	PhaseComplete Phase = "complete"
	PhaseFail     Phase = "fail"
)

// Status enumerates a tool invocation's terminal/in-flight status.
type Status string

// Recognized statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Bytes reports output byte counts. Counters reflect tool output only,
// never tool input/arguments.
type Bytes struct {
	Stdout int `json:"stdout"`
	Stderr int `json:"stderr"`
	Diff   int `json:"diff"`
	Result int `json:"result"`
}

// Facet is the structured document carried under a ToolCall/ToolResult
// event's Data field.
type Facet struct {
	Schema        string  `json:"schema"`
	BackendItemID *string `json:"backend_item_id"`
	ThreadID      *string `json:"thread_id"`
	TurnID        *string `json:"turn_id"`
	Kind          string  `json:"kind"`
	Phase         Phase   `json:"phase"`
	Status        Status  `json:"status"`
	ExitCode      *int    `json:"exit_code"`
	Bytes         Bytes   `json:"bytes"`
	ToolName      *string `json:"tool_name"`
	ToolUseID     *string `json:"tool_use_id"`
}

// New builds a Facet, always stamping the current schema identifier.
func New(kind string, phase Phase, status Status) Facet {
	return Facet{
		Schema: SchemaID,
		Kind:   kind,
		Phase:  phase,
		Status: status,
	}
}

// ToMap converts the facet to the map[string]any shape used by
// agentwrapper.Event.Data so it round-trips through bounds enforcement
// (which serializes Data with encoding/json) the same way a plain JSON
// object would.
func (f Facet) ToMap() map[string]any {
	bytesMap := map[string]any{
		"stdout": f.Bytes.Stdout,
		"stderr": f.Bytes.Stderr,
		"diff":   f.Bytes.Diff,
		"result": f.Bytes.Result,
	}
	m := map[string]any{
		"backend_item_id": derefAny(f.BackendItemID),
		"thread_id":       derefAny(f.ThreadID),
		"turn_id":         derefAny(f.TurnID),
		"kind":            f.Kind,
		"phase":           string(f.Phase),
		"status":          string(f.Status),
		"exit_code":       derefIntAny(f.ExitCode),
		"bytes":           bytesMap,
		"tool_name":       derefAny(f.ToolName),
		"tool_use_id":     derefAny(f.ToolUseID),
	}
	return map[string]any{"tool": m, "schema": f.Schema}
}

func derefAny(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func derefIntAny(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

//go:embed schema.json
var schemaJSON string

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(SchemaID, strings.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("toolfacet: add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(SchemaID)
	})
	return compiledSchema, compileErr
}

// Validate checks that doc (the map[string]any produced by ToMap, or any
// equivalent decoded JSON document) conforms to the tool facet schema.
func Validate(doc any) error {
	schema, err := compiled()
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}
