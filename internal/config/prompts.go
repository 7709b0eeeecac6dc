package config

import (
	"fmt"
	"os"
)

// PromptFiles holds the loaded prompt template contents. Empty fields mean
// the built-in template should be used.
type PromptFiles struct {
	System   string
	Examples string
}

// LoadPrompts reads the configured prompt template files. Unconfigured or
// missing files are skipped so callers fall back to built-in templates.
func (c *Config) LoadPrompts() (PromptFiles, error) {
	var pf PromptFiles

	if c.Prompts.SystemFile != "" {
		data, err := os.ReadFile(c.Prompts.SystemFile)
		if err != nil && !os.IsNotExist(err) {
			return pf, fmt.Errorf("failed to read system template: %w", err)
		}
		pf.System = string(data)
	}

	if c.Prompts.ExamplesFile != "" {
		data, err := os.ReadFile(c.Prompts.ExamplesFile)
		if err != nil && !os.IsNotExist(err) {
			return pf, fmt.Errorf("failed to read examples template: %w", err)
		}
		pf.Examples = string(data)
	}

	return pf, nil
}
