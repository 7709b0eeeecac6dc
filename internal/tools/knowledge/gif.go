// Package knowledge provides the model-facing lookup tools: GIF search,
// wiki access, local datasets, the long-term memory notebook, and
// transcript recall. Constructors take their backing clients; wiring and
// per-instance predicates live with the instance registry.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"banter/internal/apis/giphy"
	"banter/internal/tools"
)

// GifTool searches Giphy and returns embeddable GIF URLs. Register it only
// when the Giphy client is enabled.
func GifTool(client *giphy.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "gif",
		Description: "Search for an animated GIF. Returns candidate URLs; send one with SEND to show it in the chat.",
		Category:    tools.CategoryMedia,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "What the GIF should show, e.g. 'excited dog'"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			results, err := client.Search(ctx, inv.Args.String("query"))
			if err != nil {
				return "", fmt.Errorf("gif search: %w", err)
			}
			if len(results) == 0 {
				return "no GIFs found", nil
			}
			data, err := json.Marshal(results)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}
