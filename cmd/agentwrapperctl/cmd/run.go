package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"goa.design/agentwrapper/runtime/agentwrapper"
	"goa.design/agentwrapper/runtime/backends/claudecode"
	"goa.design/agentwrapper/runtime/backends/codex"
	"goa.design/agentwrapper/runtime/procstream"
	"goa.design/agentwrapper/runtime/telemetry"
)

var (
	runBackend        string
	runWorkingDir     string
	runTimeout        time.Duration
	runNonInteractive bool
	runApprovalPolicy string
	runSandboxMode    string
	runConfigPath     string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Submit a run request and stream its normalized events",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runBackend, "backend", "codex", "backend kind: codex or claude_code")
	runCmd.Flags().StringVar(&runWorkingDir, "working-dir", "", "working directory for the child process")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Minute, "ambient run timeout")
	runCmd.Flags().BoolVar(&runNonInteractive, "non-interactive", true, "agent_api.exec.non_interactive")
	runCmd.Flags().StringVar(&runApprovalPolicy, "approval-policy", "", "backend.codex.exec.approval_policy (codex only)")
	runCmd.Flags().StringVar(&runSandboxMode, "sandbox-mode", "", "backend.codex.exec.sandbox_mode (codex only)")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to a YAML file with per-backend binary/working-dir/env defaults")
}

func buildGateway() (*agentwrapper.Gateway, error) {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return nil, err
	}

	logger := telemetry.NewNoopLogger()
	gw := agentwrapper.NewGateway(agentwrapper.WithLogger(logger))
	_ = gw.Register(codex.New(cfg.Codex.toCodexConfig(), procstream.Exec{}, logger, nil))
	_ = gw.Register(claudecode.New(cfg.ClaudeCode.toClaudeCodeConfig(), procstream.Exec{}, logger, nil))
	return gw, nil
}

func runRun(c *cobra.Command, args []string) error {
	prompt := args[0]

	kind, err := agentwrapper.NewKind(runBackend)
	if err != nil {
		return err
	}

	extensions := map[string]any{"agent_api.exec.non_interactive": runNonInteractive}
	if kind == agentwrapper.Kind("codex") {
		if runApprovalPolicy != "" {
			extensions["backend.codex.exec.approval_policy"] = runApprovalPolicy
		}
		if runSandboxMode != "" {
			extensions["backend.codex.exec.sandbox_mode"] = runSandboxMode
		}
	}

	gw, err := buildGateway()
	if err != nil {
		return err
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	handle, err := gw.Run(ctx, kind, agentwrapper.RunRequest{
		Prompt:     prompt,
		WorkingDir: runWorkingDir,
		Timeout:    &runTimeout,
		Extensions: extensions,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for {
		ev, ok, err := handle.Recv(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := enc.Encode(eventToJSON(ev)); err != nil {
			return err
		}
	}

	completion, err := handle.Completion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exit_code=%d success=%v\n", completion.ExitCode, completion.Success)
	if completion.FinalText != nil {
		fmt.Println(*completion.FinalText)
	}
	return nil
}

func eventToJSON(ev agentwrapper.Event) map[string]any {
	out := map[string]any{
		"agent_kind": string(ev.AgentKind),
		"kind":       ev.Kind.String(),
	}
	if ev.Channel != nil {
		out["channel"] = *ev.Channel
	}
	if ev.Text != nil {
		out["text"] = *ev.Text
	}
	if ev.Message != nil {
		out["message"] = *ev.Message
	}
	if ev.Data != nil {
		out["data"] = ev.Data
	}
	return out
}
