package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"banter/internal/agents"
	"banter/internal/apis/wikimedia"
	"banter/internal/llm"
	"banter/internal/tools"
)

// wikiPageBudget caps how much raw wikitext a single lookup feeds back to
// the model or into the retrieval agent.
const wikiPageBudget = 24000

// WikiSearchTool searches the configured wiki and returns title/snippet
// pairs.
func WikiSearchTool(client *wikimedia.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "wiki_search",
		Description: "Search the wiki for pages matching a query. Returns titles and snippets; follow up with wiki_page for full content.",
		Category:    tools.CategorySearch,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "Search terms"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			results, err := client.Search(ctx, inv.Args.String("query"))
			if err != nil {
				return "", fmt.Errorf("wiki search: %w", err)
			}
			if len(results) == 0 {
				return "no pages found", nil
			}
			data, err := json.Marshal(results)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// WikiPageTool fetches a page's raw wikitext by exact title.
func WikiPageTool(client *wikimedia.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "wiki_page",
		Description: "Fetch the raw content of a wiki page by its exact title.",
		Category:    tools.CategorySearch,
		Schema: tools.ToolSchema{
			Required: []string{"title"},
			Properties: map[string]tools.Property{
				"title": {Type: "string", Description: "Exact page title, e.g. from wiki_search"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			content, err := client.GetRaw(ctx, inv.Args.String("title"))
			if err != nil {
				return "", fmt.Errorf("wiki page: %w", err)
			}
			return clip(content, wikiPageBudget), nil
		},
	}
}

// WikiQueryTool answers a question from the wiki in one step: resolve the
// best-matching page, pull its content, and run the retrieval agent over
// it. helper is the sub-LLM client the agent runs on.
func WikiQueryTool(client *wikimedia.Client, helper *llm.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "wiki_query",
		Description: "Ask the wiki a question and get back only the relevant facts, with sources and a confidence score.",
		Category:    tools.CategorySearch,
		Schema: tools.ToolSchema{
			Required: []string{"question"},
			Properties: map[string]tools.Property{
				"question": {Type: "string", Description: "The question to answer from the wiki"},
				"topic":    {Type: "string", Description: "Optional page topic when the question alone is ambiguous"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			question := inv.Args.String("question")
			topic := inv.Args.String("topic")
			if topic == "" {
				topic = question
			}

			hits, err := client.OpenSearch(ctx, topic)
			if err != nil {
				return "", fmt.Errorf("wiki query: %w", err)
			}
			if len(hits) == 0 {
				return "no matching pages", nil
			}

			agent := agents.NewRetrievalAgent(helper, nil)
			for i, hit := range hits {
				if i >= 2 {
					break
				}
				content, err := client.GetRaw(ctx, hit.Title)
				if err != nil {
					continue
				}
				agent.AddContext(fmt.Sprintf("page_title:%s\n%s", hit.Title, clip(content, wikiPageBudget)))
			}

			return agent.Retrieve(ctx, question)
		},
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n[truncated]"
}
