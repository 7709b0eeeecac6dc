package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"banter/internal/bot"
	"banter/internal/chat"
)

// The instances subcommands operate directly on the save files so they
// work while no bot process is running. A running process that has the
// same instance in memory will rewrite its save on the next commit.

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "Inspect and manage persisted conversation instances",
}

// savedInstance is the slice of the save record the CLI cares about.
type savedInstance struct {
	Identity string               `json:"identity"`
	UUID     string               `json:"uuid"`
	Messages []chat.MessageRecord `json:"messages"`
}

var instancesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(cfg.InstancesDir())
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("no saved instances")
				return nil
			}
			return err
		}

		var saved []savedInstance
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			rec, err := readSave(filepath.Join(cfg.InstancesDir(), e.Name()))
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", e.Name(), err)
				continue
			}
			saved = append(saved, rec)
		}
		if len(saved) == 0 {
			fmt.Println("no saved instances")
			return nil
		}
		sort.Slice(saved, func(i, j int) bool { return saved[i].Identity < saved[j].Identity })
		for _, rec := range saved {
			fmt.Printf("%-32s %4d messages  %s\n", rec.Identity, len(rec.Messages), rec.UUID)
		}
		return nil
	},
}

var instancesShowCmd = &cobra.Command{
	Use:   "show <identity>",
	Short: "Print the transcript of a saved instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := readSave(instanceSavePath(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("identity: %s\nuuid:     %s\n\n", rec.Identity, rec.UUID)
		for _, mr := range rec.Messages {
			content := ""
			if mr.Content != nil {
				content = *mr.Content
			}
			if content == "" && len(mr.ToolCalls) > 0 {
				content = fmt.Sprintf("(%d tool calls)", len(mr.ToolCalls))
			}
			fmt.Printf("[%s] %s\n", mr.Role, content)
		}
		return nil
	},
}

var instancesResetCmd = &cobra.Command{
	Use:   "reset <identity>",
	Short: "Delete an instance's conversation, keeping its memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := instanceSavePath(args[0])
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("no saved instance for %q", args[0])
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		fmt.Printf("reset %s\n", args[0])
		return nil
	},
}

var instancesRemoveCmd = &cobra.Command{
	Use:   "remove <identity>",
	Short: "Delete an instance's conversation and its memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := bot.SaveName(cfg.Bot.Prefix, args[0])
		removed := false
		for _, path := range []string{
			filepath.Join(cfg.InstancesDir(), name),
			filepath.Join(cfg.MemoriesDir(), name),
		} {
			err := os.Remove(path)
			if err == nil {
				removed = true
			} else if !os.IsNotExist(err) {
				return err
			}
		}
		if !removed {
			return fmt.Errorf("no saved instance for %q", args[0])
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func instanceSavePath(identity string) string {
	return filepath.Join(cfg.InstancesDir(), bot.SaveName(cfg.Bot.Prefix, identity))
}

func readSave(path string) (savedInstance, error) {
	var rec savedInstance
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rec, nil
}
