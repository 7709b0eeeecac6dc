package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			fmt.Printf("config:    INVALID (%v)\n", err)
		} else {
			fmt.Printf("config:    ok\n")
		}
		fmt.Printf("name:      %s %s\n", cfg.Name, cfg.Version)
		fmt.Printf("persona:   %s\n", cfg.Persona.Name)
		fmt.Printf("state dir: %s\n", cfg.StateDir)
		fmt.Printf("model:     %s @ %s\n", cfg.LLM.Model, cfg.LLM.BaseURL)
		fmt.Printf("server:    %s\n", cfg.Server.Addr)
		fmt.Printf("archive:   %s\n", onOff(cfg.Archive.Enabled))
		fmt.Printf("giphy:     %s\n", onOff(cfg.Giphy.APIKey != ""))
		fmt.Printf("wikimedia: %s\n", onOff(cfg.Wikimedia.BaseURL != ""))
		if cfg.Prompts.SystemFile != "" {
			fmt.Printf("prompts:   %s (watch %s)\n", cfg.Prompts.SystemFile, onOff(cfg.Prompts.Watch))
		} else {
			fmt.Printf("prompts:   built-in\n")
		}
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
