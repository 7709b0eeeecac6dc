// Package agents implements the helper sub-agents: single-purpose chat
// sessions with fixed system prompts, run against the (usually cheaper)
// helper model. They never share transcripts with conversation instances.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"banter/internal/llm"
	"banter/internal/logging"
)

// retrievalSystemPrompt instructs the agent to extract, not summarize.
var retrievalSystemPrompt = strings.Join([]string{
	"## You are a context retrieval agent",
	"",
	"Given a list of entries and a query, you must return any context that is relevant to the query.",
	"Write the response without losing any data, mention all the details, the less you summarize the better.",
	"",
	"Output a json object with the following keys:",
	" - `relevant`: a list of all information that could possibly be used to answer the query in any way",
	" - `source`: a list of sources where the information was found, if applicable",
	" - `confidence`: a score value between 1 and 10 indicating how confident you are in the information provided",
	"",
	"Example output:",
	"```json",
	"{",
	`  "relevant": ["Villagers can be cured from zombie villagers by using a splash potion of weakness and a golden apple."],`,
	`  "source": ["page_title:Villagers"],`,
	`  "confidence": 9`,
	"}",
	"```",
}, "\n")

// RetrievalAgent answers a query strictly from supplied context documents.
type RetrievalAgent struct {
	session *llm.Session
	context []string
}

// NewRetrievalAgent creates an agent over the given client with the
// initial context documents.
func NewRetrievalAgent(client *llm.Client, contextDocs []string) *RetrievalAgent {
	session := llm.NewSession(client, llm.SessionOptions{})
	session.SetSystem(retrievalSystemPrompt)
	return &RetrievalAgent{session: session, context: contextDocs}
}

// AddContext appends one context document.
func (a *RetrievalAgent) AddContext(doc string) {
	a.context = append(a.context, doc)
}

// Retrieve asks the agent for everything in its context relevant to the
// query. The exchange is temporal: the agent's transcript stays empty
// between calls.
func (a *RetrievalAgent) Retrieve(ctx context.Context, query string) (string, error) {
	logging.AgentsDebug("retrieving information for query %q over %d documents", query, len(a.context))

	contextJSON, err := json.Marshal(a.context)
	if err != nil {
		return "", fmt.Errorf("failed to encode retrieval context: %w", err)
	}

	prompt := strings.Join([]string{
		"Context:",
		"```json",
		string(contextJSON),
		"```",
		"",
		fmt.Sprintf("Query: %q", query),
	}, "\n")

	reply, err := a.session.AskTemporal(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("retrieval agent: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
