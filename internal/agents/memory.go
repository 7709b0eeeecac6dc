package agents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"banter/internal/llm"
	"banter/internal/logging"
)

// MemoryItem is one remembered fact. The hash covers content and time so
// identical facts remembered at different moments stay distinct.
type MemoryItem struct {
	Content string  `json:"content"`
	Time    float64 `json:"time"`
}

// Hash returns the item's stable identifier.
func (m MemoryItem) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%v", m.Content, m.Time)))
	return hex.EncodeToString(sum[:])
}

var memorySystemPrompt = strings.Join([]string{
	"**You are a memory retrieval agent**",
	"",
	"Given a list of memories and a query, you MUST ONLY return the *summary* of the most relevant memories.",
	"Write the response in first person (these are YOUR memories) as if you are recalling information, for example:",
	" - I remember that ...",
	" - I don't recall anything about ...",
	" - I recall that ...",
	" - I can't remember ...",
	" - The only thing I remember is ...",
	"",
	"**NOTE**: do not just list the relevant memories",
}, "\n")

// MemoryAgent keeps an ordered list of remembered facts and produces
// first-person recall summaries through a sub-LLM. File persistence is a
// plain JSON notebook per instance.
type MemoryAgent struct {
	mu       sync.Mutex
	session  *llm.Session
	memories []MemoryItem
	file     string
}

// NewMemoryAgent creates an agent over the given client. file may be
// empty to disable persistence.
func NewMemoryAgent(client *llm.Client, file string) *MemoryAgent {
	session := llm.NewSession(client, llm.SessionOptions{})
	session.SetSystem(memorySystemPrompt)
	return &MemoryAgent{session: session, file: file}
}

// Load reads the notebook from disk. A missing or corrupt file starts
// empty with a warning, matching instance persistence semantics.
func (a *MemoryAgent) Load() {
	if a.file == "" {
		return
	}
	data, err := os.ReadFile(a.file)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Get(logging.CategoryAgents).Warn("failed to read memory notebook %s: %v", a.file, err)
		}
		return
	}

	var record struct {
		Memories []MemoryItem `json:"memories"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		logging.Get(logging.CategoryAgents).Warn("corrupt memory notebook %s, starting fresh: %v", a.file, err)
		return
	}

	a.mu.Lock()
	a.memories = record.Memories
	a.mu.Unlock()
}

// Save writes the notebook to disk.
func (a *MemoryAgent) Save() error {
	if a.file == "" {
		return nil
	}

	a.mu.Lock()
	record := struct {
		Memories []MemoryItem `json:"memories"`
	}{Memories: a.memories}
	a.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode memory notebook: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.file), 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}
	if err := os.WriteFile(a.file, data, 0644); err != nil {
		return fmt.Errorf("failed to write memory notebook: %w", err)
	}
	return nil
}

// Add remembers a fact.
func (a *MemoryAgent) Add(content string) MemoryItem {
	item := MemoryItem{Content: content, Time: float64(time.Now().UnixNano()) / 1e9}

	a.mu.Lock()
	a.memories = append(a.memories, item)
	a.mu.Unlock()

	logging.Agents("remembered: %s", content)
	return item
}

// Remove forgets the item with the given hash. Unknown hashes are a no-op.
func (a *MemoryAgent) Remove(hash string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.memories[:0]
	for _, m := range a.memories {
		if m.Hash() != hash {
			kept = append(kept, m)
		}
	}
	a.memories = kept
}

// Items returns a copy of the remembered facts in order.
func (a *MemoryAgent) Items() []MemoryItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]MemoryItem, len(a.memories))
	copy(out, a.memories)
	return out
}

// Recall summarizes the memories relevant to a query in first person.
func (a *MemoryAgent) Recall(ctx context.Context, query string) (string, error) {
	a.mu.Lock()
	lines := make([]string, 0, len(a.memories))
	for _, m := range a.memories {
		lines = append(lines, "- "+m.Content)
	}
	a.mu.Unlock()

	logging.AgentsDebug("recalling memories for query %q (%d stored)", query, len(lines))

	prompt := strings.Join([]string{
		fmt.Sprintf("Query: %s", query),
		"",
		"Memories:",
		strings.Join(lines, "\n"),
	}, "\n")

	reply, err := a.session.AskTemporal(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("memory agent: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
