// Package mocks provides interfaces and mock implementations for testing
package mocks

import "context"

// CommandExecutorInterface abstracts external tool execution (ffmpeg,
// ffprobe, rife-ncnn-vulkan). It has the same method set as
// ffmpeg.CommandExecutor.
type CommandExecutorInterface interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
	IsAvailable(command string) bool
}

// UserInteractionInterface abstracts user prompts for testing
type UserInteractionInterface interface {
	PromptForString(label string, defaultValue string, validator func(string) error) (string, error)
	PromptForSelect(label string, items []string) (string, error)
	PromptForConfirm(label string) (bool, error)
}

var (
	_ CommandExecutorInterface = (*MockCommandExecutor)(nil)
	_ UserInteractionInterface = (*MockUserInteraction)(nil)
)
