package exttool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

// Compiler runs `dev-utils genesis generate`, which turns an app state config into the genesis app_state
// and app_hash.
type Compiler struct {
	runner  Runner
	logger  *slog.Logger
	cmd     string
	tempDir string
}

func NewCompiler(runner Runner, logger *slog.Logger, cmd string) *Compiler {
	return &Compiler{runner: runner, logger: logger, cmd: cmd}
}

// WithTempDir sets where the transient config artifact is written (default os.TempDir).
func (c *Compiler) WithTempDir(dir string) *Compiler {
	c.tempDir = dir
	return c
}

// Compile writes appStateConfig to a temp file, runs the compiler over it and returns the top-level
// genesis fields it printed.
func (c *Compiler) Compile(ctx context.Context, appStateConfig []byte) (map[string]json.RawMessage, error) {
	file, err := os.CreateTemp(c.tempDir, "app-state-*.json")
	if err != nil {
		return nil, fmt.Errorf("unable to create app state file: %w", err)
	}
	defer os.Remove(file.Name())
	if _, err = file.Write(appStateConfig); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("unable to write app state file: %w", err)
	}
	if err = file.Close(); err != nil {
		return nil, err
	}

	misc.Infof(c.logger, "compiling app state from:%s", file.Name())
	out, err := c.runner.Run(ctx, Invocation{
		Name:   c.cmd,
		Args:   []string{"genesis", "generate", "-g", file.Name()},
		Mounts: []string{file.Name()},
	})
	if err != nil {
		return nil, fmt.Errorf("app state compile failed: %w", err)
	}
	return ParseFragment(out)
}

// ParseFragment parses compiler output: the body of a json object printed without its enclosing braces.
func ParseFragment(out []byte) (map[string]json.RawMessage, error) {
	body := bytes.TrimSpace(out)
	wrapped := make([]byte, 0, len(body)+2)
	wrapped = append(wrapped, '{')
	wrapped = append(wrapped, body...)
	wrapped = append(wrapped, '}')

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(wrapped, &fields); err != nil {
		return nil, fmt.Errorf("%w: unparseable compiler output %q: %v", ErrExternalToolFailure, body, err)
	}
	return fields, nil
}
