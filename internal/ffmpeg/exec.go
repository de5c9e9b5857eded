// internal/ffmpeg/exec.go
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandExecutor runs external tools. Backends and the decode/encode
// helpers take one so tests can substitute a recording fake.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
	IsAvailable(command string) bool
}

// SystemExecutor runs commands on the host.
type SystemExecutor struct{}

// NewSystemExecutor returns the host command executor.
func NewSystemExecutor() *SystemExecutor {
	return &SystemExecutor{}
}

// Execute runs name with args and returns its combined output.
func (SystemExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s failed: %w\nOutput: %s", name, err, string(output))
	}
	return output, nil
}

// IsAvailable reports whether command can be found in PATH.
func (SystemExecutor) IsAvailable(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}
