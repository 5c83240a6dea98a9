package codex

import (
	"os"
	"strings"

	"goa.design/agentwrapper/runtime/agentwrapper"
)

// recognizedExtensions is the Codex backend's extension-key allowlist.
var recognizedExtensions = map[string]struct{}{
	"agent_api.exec.non_interactive":     {},
	"backend.codex.exec.approval_policy": {},
	"backend.codex.exec.sandbox_mode":    {},
}

var recognizedApprovalPolicies = map[string]struct{}{
	"untrusted": {}, "on-failure": {}, "on-request": {}, "never": {},
}

var recognizedSandboxModes = map[string]struct{}{
	"read-only": {}, "workspace-write": {}, "danger-full-access": {},
}

// policy is the fully-resolved set of flags the Codex CLI is invoked with,
// derived from a RunRequest's extensions per the validation and
// policy-resolution rules.
type policy struct {
	nonInteractive bool
	approvalPolicy string
	sandboxMode    string
}

// Config carries the Codex backend's per-instance defaults: the CLI binary
// to exec, a default working directory, and baseline environment overrides
// layered beneath the request's own.
type Config struct {
	Binary            string
	DefaultWorkingDir string
	Env               map[string]string
}

func resolvePolicy(kind agentwrapper.Kind, extensions map[string]any) (policy, error) {
	for key := range extensions {
		if _, ok := recognizedExtensions[key]; !ok {
			return policy{}, agentwrapper.NewUnsupportedCapabilityError(kind, key)
		}
	}

	nonInteractive := true
	if raw, ok := extensions["agent_api.exec.non_interactive"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return policy{}, agentwrapper.NewError(agentwrapper.KindInvalidRequest, "agent_api.exec.non_interactive must be a bool")
		}
		nonInteractive = b
	}

	approvalPolicy := ""
	if raw, ok := extensions["backend.codex.exec.approval_policy"]; ok {
		s, ok := raw.(string)
		if !ok {
			return policy{}, agentwrapper.NewError(agentwrapper.KindInvalidRequest, "backend.codex.exec.approval_policy must be a string")
		}
		if _, ok := recognizedApprovalPolicies[s]; !ok {
			return policy{}, agentwrapper.NewError(agentwrapper.KindInvalidRequest, "backend.codex.exec.approval_policy: unrecognized value "+s)
		}
		approvalPolicy = s
	}

	if nonInteractive && approvalPolicy != "" && approvalPolicy != "never" {
		return policy{}, agentwrapper.NewError(agentwrapper.KindInvalidRequest,
			"non_interactive=true requires approval_policy=never (or omitted)")
	}

	sandboxMode := "workspace-write"
	if raw, ok := extensions["backend.codex.exec.sandbox_mode"]; ok {
		s, ok := raw.(string)
		if !ok {
			return policy{}, agentwrapper.NewError(agentwrapper.KindInvalidRequest, "backend.codex.exec.sandbox_mode must be a string")
		}
		if _, ok := recognizedSandboxModes[s]; !ok {
			return policy{}, agentwrapper.NewError(agentwrapper.KindInvalidRequest, "backend.codex.exec.sandbox_mode: unrecognized value "+s)
		}
		sandboxMode = s
	}

	if nonInteractive {
		approvalPolicy = "never"
	} else if approvalPolicy == "" {
		approvalPolicy = "untrusted"
	}

	return policy{nonInteractive: nonInteractive, approvalPolicy: approvalPolicy, sandboxMode: sandboxMode}, nil
}

// cliArgs builds the stream-exec CLI invocation for the resolved policy and
// prompt.
func (p policy) cliArgs(prompt string) []string {
	args := []string{
		"exec",
		"--json",
		"--sandbox", p.sandboxMode,
		"--ask-for-approval", p.approvalPolicy,
	}
	if p.nonInteractive {
		args = append(args, "--non-interactive")
	}
	return append(args, prompt)
}

// resolveWorkingDir applies the request → backend default → process cwd
// resolution order.
func resolveWorkingDir(requestDir, backendDefault string) (string, error) {
	if requestDir != "" {
		return requestDir, nil
	}
	if backendDefault != "" {
		return backendDefault, nil
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "", agentwrapper.NewBackendError("failed to resolve working directory", err)
	}
	return cwd, nil
}

// mergeEnv layers config env first, then request env on top, without
// mutating either input map.
func mergeEnv(config, request map[string]string) map[string]string {
	out := make(map[string]string, len(config)+len(request))
	for k, v := range config {
		out[k] = v
	}
	for k, v := range request {
		out[k] = v
	}
	return out
}

func trimmedEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
