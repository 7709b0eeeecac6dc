package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"banter/internal/archive"
	"banter/internal/tools"
)

// recallLimit caps how many archived turns a recall returns.
const recallLimit = 10

// RecallTool searches the transcript archive for past conversation turns.
// identity scopes the search to the owning conversation; register it
// through a per-instance build so each instance searches only its own
// history.
func RecallTool(arch *archive.Archive, identity string) *tools.Tool {
	return &tools.Tool{
		Name:        "recall",
		Description: "Search this conversation's full history, including turns that no longer fit in context.",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "Keywords to search the history for"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			matches, err := arch.Search(ctx, identity, inv.Args.String("query"), recallLimit)
			if err != nil {
				return "", fmt.Errorf("history search: %w", err)
			}
			if len(matches) == 0 {
				return "nothing in the history matches", nil
			}
			data, err := json.Marshal(matches)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}
