package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"banter/internal/agents"
	"banter/internal/dataset"
	"banter/internal/llm"
	"banter/internal/tools"
)

// lookupLimit caps how many snippets a dataset lookup returns.
const lookupLimit = 8

// LookupTool searches every dataset in the store for keyword matches and
// returns ranked snippets. Datasets load lazily on first use.
func LookupTool(store *dataset.Store) *tools.Tool {
	loader := newDatasetLoader(store)
	return &tools.Tool{
		Name:        "lookup",
		Description: "Search the local knowledge datasets for keyword matches. Returns snippets with <match> markers around the hits.",
		Category:    tools.CategorySearch,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query":   {Type: "string", Description: "Keywords to look for"},
				"dataset": {Type: "string", Description: "Optional dataset name; all datasets when omitted"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			sets, err := loader.load(inv.Args.String("dataset"))
			if err != nil {
				return "", err
			}
			if len(sets) == 0 {
				return "no datasets available", nil
			}

			type hit struct {
				Dataset string `json:"dataset"`
				dataset.QueryMatch
			}
			var hits []hit
			for _, ds := range sets {
				for _, m := range ds.Search(inv.Args.String("query")) {
					hits = append(hits, hit{Dataset: ds.Name(), QueryMatch: m})
				}
			}
			if len(hits) == 0 {
				return "no matches", nil
			}
			sort.SliceStable(hits, func(i, j int) bool { return hits[i].NumMatches > hits[j].NumMatches })
			if len(hits) > lookupLimit {
				hits = hits[:lookupLimit]
			}
			data, err := json.Marshal(hits)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// QueryDatasetTool answers a question from the datasets through the
// retrieval agent: matched snippets become the agent's context.
func QueryDatasetTool(store *dataset.Store, helper *llm.Client) *tools.Tool {
	loader := newDatasetLoader(store)
	return &tools.Tool{
		Name:        "query_dataset",
		Description: "Ask the local knowledge datasets a question and get back only the relevant facts.",
		Category:    tools.CategorySearch,
		Schema: tools.ToolSchema{
			Required: []string{"question"},
			Properties: map[string]tools.Property{
				"question": {Type: "string", Description: "The question to answer"},
			},
		},
		Handler: func(ctx context.Context, inv tools.Invocation) (string, error) {
			sets, err := loader.load("")
			if err != nil {
				return "", err
			}
			question := inv.Args.String("question")

			agent := agents.NewRetrievalAgent(helper, nil)
			fed := 0
			for _, ds := range sets {
				for _, m := range ds.Search(question) {
					agent.AddContext(fmt.Sprintf("dataset:%s title:%s\n%s", ds.Name(), m.Title, m.Snippet))
					fed++
				}
			}
			if fed == 0 {
				return "nothing relevant in the datasets", nil
			}
			return agent.Retrieve(ctx, question)
		},
	}
}

// datasetLoader caches loaded datasets for the tool's lifetime.
type datasetLoader struct {
	store *dataset.Store
	cache map[string]*dataset.Dataset
}

func newDatasetLoader(store *dataset.Store) *datasetLoader {
	return &datasetLoader{store: store, cache: make(map[string]*dataset.Dataset)}
}

// load returns the named dataset, or every dataset when name is empty.
func (l *datasetLoader) load(name string) ([]*dataset.Dataset, error) {
	names := []string{name}
	if name == "" {
		all, err := l.store.Names()
		if err != nil {
			return nil, fmt.Errorf("listing datasets: %w", err)
		}
		names = all
	}

	out := make([]*dataset.Dataset, 0, len(names))
	for _, n := range names {
		if ds, ok := l.cache[n]; ok {
			out = append(out, ds)
			continue
		}
		ds, err := l.store.Load(n)
		if err != nil {
			return nil, fmt.Errorf("loading dataset %q: %w", n, err)
		}
		l.cache[n] = ds
		out = append(out, ds)
	}
	return out, nil
}
