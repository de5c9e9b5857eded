// Package mocks provides mock implementations for testing
package mocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// CommandHandler simulates the side effects of a command, such as writing
// the frames a tool would produce.
type CommandHandler func(args []string) ([]byte, error)

// MockCommandExecutor records commands instead of running them. It is safe
// for concurrent use.
type MockCommandExecutor struct {
	Responses         map[string][]byte
	Errors            map[string]error
	AvailableCommands map[string]bool
	Handlers          map[string]CommandHandler

	mu      sync.Mutex
	CallLog []string
}

func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:         make(map[string][]byte),
		Errors:            make(map[string]error),
		AvailableCommands: make(map[string]bool),
		Handlers:          make(map[string]CommandHandler),
		CallLog:           make([]string, 0),
	}
}

func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := fmt.Sprintf("%s %s", name, strings.Join(args, " "))
	m.mu.Lock()
	m.CallLog = append(m.CallLog, cmd)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check for command-specific errors first
	if err, exists := m.Errors[cmd]; exists {
		return nil, err
	}

	// Check for general command errors (e.g., "ffmpeg")
	if err, exists := m.Errors[name]; exists {
		return nil, err
	}

	if handler, exists := m.Handlers[name]; exists {
		return handler(args)
	}

	if response, exists := m.Responses[cmd]; exists {
		return response, nil
	}

	return []byte("mock response"), nil
}

func (m *MockCommandExecutor) IsAvailable(command string) bool {
	if available, exists := m.AvailableCommands[command]; exists {
		return available
	}
	return true // Default to available
}

// Calls returns a copy of the call log.
func (m *MockCommandExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// ArgValue returns the value following flag in args.
func ArgValue(args []string, flag string) (string, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

// MockUserInteraction provides a mock user interaction for testing
type MockUserInteraction struct {
	StringResponses  map[string]string
	SelectResponses  map[string]string
	ConfirmResponses map[string]bool
	Errors           map[string]error
	CallLog          []string
}

func NewMockUserInteraction() *MockUserInteraction {
	return &MockUserInteraction{
		StringResponses:  make(map[string]string),
		SelectResponses:  make(map[string]string),
		ConfirmResponses: make(map[string]bool),
		Errors:           make(map[string]error),
		CallLog:          make([]string, 0),
	}
}

func (m *MockUserInteraction) PromptForString(label string, defaultValue string, validator func(string) error) (string, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("PromptForString: %s (default: %s)", label, defaultValue))

	if err, exists := m.Errors[label]; exists {
		return "", err
	}

	if response, exists := m.StringResponses[label]; exists {
		if validator != nil {
			if err := validator(response); err != nil {
				return "", err
			}
		}
		return response, nil
	}

	return defaultValue, nil
}

func (m *MockUserInteraction) PromptForSelect(label string, items []string) (string, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("PromptForSelect: %s", label))

	if err, exists := m.Errors[label]; exists {
		return "", err
	}

	if response, exists := m.SelectResponses[label]; exists {
		return response, nil
	}

	if len(items) > 0 {
		return items[0], nil
	}

	return "", errors.New("no items provided")
}

func (m *MockUserInteraction) PromptForConfirm(label string) (bool, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("PromptForConfirm: %s", label))

	if err, exists := m.Errors[label]; exists {
		return false, err
	}

	if response, exists := m.ConfirmResponses[label]; exists {
		return response, nil
	}

	return false, nil
}
