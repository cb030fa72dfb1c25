package main

import (
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/myrjola/sleuth/internal/errors"
)

// respondent is the person answering in the terminal.
type respondent interface {
	// Choose returns the index of the selected option.
	Choose(label string, options []string) (int, error)
	// Write returns non-blank free text.
	Write(label string) (string, error)
}

type promptRespondent struct{}

func (promptRespondent) Choose(label string, options []string) (int, error) {
	prompt := promptui.Select{ //nolint:exhaustruct // defaults for templates and keys.
		Label: label,
		Items: options,
		Size:  len(options),
	}
	i, _, err := prompt.Run()
	if err != nil {
		return 0, errors.Wrap(err, "select")
	}
	return i, nil
}

func (promptRespondent) Write(label string) (string, error) {
	prompt := promptui.Prompt{ //nolint:exhaustruct // defaults for templates and keys.
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("please write something")
			}
			return nil
		},
	}
	text, err := prompt.Run()
	if err != nil {
		return "", errors.Wrap(err, "prompt")
	}
	return strings.TrimSpace(text), nil
}
