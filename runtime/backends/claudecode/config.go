package claudecode

import (
	"os"
	"strings"

	"goa.design/agentwrapper/runtime/agentwrapper"
)

var recognizedExtensions = map[string]struct{}{
	"agent_api.exec.non_interactive": {},
}

// policy is the fully-resolved set of flags used to build the print
// request, derived from a RunRequest's extensions.
type policy struct {
	nonInteractive bool
}

// Config carries the Claude Code backend's per-instance defaults.
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

	return policy{nonInteractive: nonInteractive}, nil
}

// cliArgs builds the print-mode CLI invocation for the resolved policy and
// prompt: stream-json output, partial messages included, and (when
// non-interactive) the bypassPermissions permission mode.
func (p policy) cliArgs(prompt string) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--include-partial-messages",
	}
	if p.nonInteractive {
		args = append(args, "--permission-mode", "bypassPermissions")
	}
	return append(args, prompt)
}

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
