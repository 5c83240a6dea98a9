package cmd

import (
	"os"

	"gopkg.in/yaml.v3"

	"goa.design/agentwrapper/runtime/backends/claudecode"
	"goa.design/agentwrapper/runtime/backends/codex"
)

// fileConfig is the on-disk shape of an agentwrapperctl config file: a
// binary path, default working directory, and environment overrides per
// backend. All fields are optional; missing fields keep the backend's
// built-in defaults.
type fileConfig struct {
	Codex      backendFileConfig `yaml:"codex"`
	ClaudeCode backendFileConfig `yaml:"claude_code"`
}

type backendFileConfig struct {
	Binary            string            `yaml:"binary"`
	DefaultWorkingDir string            `yaml:"default_working_dir"`
	Env               map[string]string `yaml:"env"`
}

// loadConfig reads path (if non-empty and present) and applies it over a
// zero-value fileConfig. A missing path is not an error; it yields
// zero-value backend configs.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c backendFileConfig) toCodexConfig() codex.Config {
	return codex.Config{Binary: c.Binary, DefaultWorkingDir: c.DefaultWorkingDir, Env: c.Env}
}

func (c backendFileConfig) toClaudeCodeConfig() claudecode.Config {
	return claudecode.Config{Binary: c.Binary, DefaultWorkingDir: c.DefaultWorkingDir, Env: c.Env}
}
