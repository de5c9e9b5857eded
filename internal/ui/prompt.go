// internal/ui/prompt.go
package ui

import (
	"strings"

	"github.com/manifoldco/promptui"
)

// Prompter asks questions on the terminal.
type Prompter struct{}

func (Prompter) PromptForString(label string, defaultValue string, validator func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	if validator != nil {
		p.Validate = func(s string) error { return validator(strings.TrimSpace(s)) }
	}
	out, err := p.Run()
	return strings.TrimSpace(out), err
}

func (Prompter) PromptForSelect(label string, items []string) (string, error) {
	s := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}
	_, out, err := s.Run()
	return out, err
}

func (Prompter) PromptForConfirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
