package knowledge

import (
	"context"
	"fmt"

	"banter/internal/agents"
	"banter/internal/tools"
)

// RememberTool writes a fact into the instance's memory notebook.
func RememberTool(mem *agents.MemoryAgent) *tools.Tool {
	return &tools.Tool{
		Name:        "remember",
		Description: "Store a fact in your long-term memory. Use it for things worth knowing next week: names, preferences, running jokes.",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"fact"},
			Properties: map[string]tools.Property{
				"fact": {Type: "string", Description: "The fact to remember, phrased so it makes sense on its own"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			fact := inv.Args.String("fact")
			if fact == "" {
				return "", fmt.Errorf("nothing to remember")
			}
			item := mem.Add(fact)
			if err := mem.Save(); err != nil {
				return "", fmt.Errorf("saving memory: %w", err)
			}
			return "remembered (" + item.Hash()[:8] + ")", nil
		},
	}
}

// RecallMemoryTool asks the memory agent for a first-person summary of
// everything relevant to a query.
func RecallMemoryTool(mem *agents.MemoryAgent) *tools.Tool {
	return &tools.Tool{
		Name:        "recall_memory",
		Description: "Search your long-term memory. Returns a first-person summary of what you remember about the topic.",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "What to try to remember"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			return mem.Recall(ctx, inv.Args.String("query"))
		},
	}
}

// ForgetTool removes a fact from the memory notebook by its hash.
func ForgetTool(mem *agents.MemoryAgent) *tools.Tool {
	return &tools.Tool{
		Name:        "forget",
		Description: "Delete a remembered fact by the id returned when it was stored.",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"id"},
			Properties: map[string]tools.Property{
				"id": {Type: "string", Description: "Hash prefix of the fact to forget"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			id := inv.Args.String("id")
			for _, item := range mem.Items() {
				if len(id) >= 8 && len(item.Hash()) >= len(id) && item.Hash()[:len(id)] == id {
					mem.Remove(item.Hash())
					if err := mem.Save(); err != nil {
						return "", fmt.Errorf("saving memory: %w", err)
					}
					return "forgotten", nil
				}
			}
			return "no such memory", nil
		},
	}
}
