// Package dataset stores named collections of reference documents, one
// zstd-compressed JSON file per entry, and serves keyword searches over
// them with <match>-marked snippets. Datasets are read-mostly knowledge
// drops (wiki dumps, documentation trees) the model can consult via the
// lookup tool.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/klauspost/compress/zstd"

	"banter/internal/logging"
)

// Entry is one stored document.
type Entry struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	ID      int    `json:"id"`
	Source  string `json:"source,omitempty"`
}

// QueryMatch is one search hit. Snippet surrounds each keyword occurrence
// with <match> markers and roughly ten words of context either side.
type QueryMatch struct {
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	ID         int    `json:"id"`
	NumMatches int    `json:"num_matches"`
	Source     string `json:"source,omitempty"`
}

// skipWords are too common to count as matches.
var skipWords = map[string]bool{
	"a": true, "an": true, "so": true, "is": true, "we": true, "us": true,
	"and": true, "the": true, "they": true, "that": true, "this": true,
	"these": true, "those": true,
}

// Dataset is one named in-memory document collection.
type Dataset struct {
	name    string
	entries map[int]Entry
}

// New creates an empty dataset.
func New(name string) *Dataset {
	return &Dataset{name: name, entries: make(map[int]Entry)}
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Len returns the number of entries.
func (d *Dataset) Len() int { return len(d.entries) }

// Add appends a document with the next free id. Empty content is ignored.
func (d *Dataset) Add(title, content, source string) {
	if content == "" {
		return
	}
	id := len(d.entries)
	d.entries[id] = Entry{Title: title, Content: content, ID: id, Source: source}
}

// Get returns the entry with the given id.
func (d *Dataset) Get(id int) (Entry, bool) {
	e, ok := d.entries[id]
	return e, ok
}

// Search finds entries containing the query's words, ranked by match
// count.
func (d *Dataset) Search(query string) []QueryMatch {
	queryWords := make(map[string]bool)
	for _, w := range splitWords(query) {
		w = strings.ToLower(w)
		if len(w) > 1 && !skipWords[w] {
			queryWords[w] = true
		}
	}
	if len(queryWords) == 0 {
		return nil
	}

	var matches []QueryMatch
	for _, entry := range d.entries {
		if m, ok := matchEntry(entry, queryWords); ok {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].NumMatches > matches[j].NumMatches
	})
	return matches
}

// matchEntry tokenizes the entry's content preserving separators, marks
// matched words, and builds a context snippet per hit.
func matchEntry(entry Entry, queryWords map[string]bool) (QueryMatch, bool) {
	tokens := tokenize(entry.Content)

	numMatches := 0
	var snippets []string
	for i, tok := range tokens {
		clean := strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if len(tok) <= 1 || !queryWords[clean] {
			continue
		}

		numMatches++
		lo := i - 10
		if lo < 0 {
			lo = 0
		}
		hi := i + 10
		if hi > len(tokens) {
			hi = len(tokens)
		}
		var sb strings.Builder
		for j := lo; j < hi; j++ {
			if j == i {
				sb.WriteString("<match>")
				sb.WriteString(tokens[j])
				sb.WriteString("</match>")
			} else {
				sb.WriteString(tokens[j])
			}
		}
		snippets = append(snippets, sb.String())
	}

	if numMatches == 0 {
		return QueryMatch{}, false
	}
	return QueryMatch{
		Title:      entry.Title,
		Snippet:    strings.Join(snippets, "\n"),
		ID:         entry.ID,
		NumMatches: numMatches,
		Source:     entry.Source,
	}, true
}

// tokenize splits text into alternating word and separator tokens so
// snippets rebuild with their original punctuation and spacing.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	currentIsWord := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
		if current.Len() > 0 && isWord != currentIsWord {
			flush()
		}
		currentIsWord = isWord
		current.WriteRune(r)
	}
	flush()
	return tokens
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// Store manages datasets on disk under a root directory, one subdirectory
// per dataset, one .zst file per entry.
type Store struct {
	root    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewStore opens a dataset store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("dataset directory required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Store{root: dir, encoder: encoder, decoder: decoder}, nil
}

// Names lists the datasets present on disk.
func (s *Store) Names() ([]string, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	var names []string
	for _, de := range dirents {
		if de.IsDir() {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads a whole dataset from disk. A missing directory yields an
// empty dataset; individual corrupt entries are skipped with a warning.
func (s *Store) Load(name string) (*Dataset, error) {
	ds := New(name)
	dir := filepath.Join(s.root, name)

	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ds, nil
		}
		return nil, fmt.Errorf("failed to read dataset %s: %w", name, err)
	}

	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".zst") {
			continue
		}
		path := filepath.Join(dir, de.Name())
		compressed, err := os.ReadFile(path)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to read dataset entry %s: %v", path, err)
			continue
		}
		raw, err := s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to decompress dataset entry %s: %v", path, err)
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to decode dataset entry %s: %v", path, err)
			continue
		}
		ds.entries[entry.ID] = entry
	}

	logging.StoreDebug("loaded dataset %s (%d entries)", name, ds.Len())
	return ds, nil
}

// Save writes every entry of the dataset under its directory. Filenames
// are content digests, so re-saving an unchanged dataset rewrites nothing
// new.
func (s *Store) Save(ds *Dataset) error {
	dir := filepath.Join(s.root, ds.name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	for _, entry := range ds.entries {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode dataset entry %d: %w", entry.ID, err)
		}

		sum := sha256.Sum256([]byte(fmt.Sprintf("%s%s%s%d", entry.Content, entry.Title, entry.Source, entry.ID)))
		path := filepath.Join(dir, hex.EncodeToString(sum[:])+".zst")

		compressed := s.encoder.EncodeAll(raw, nil)
		if err := os.WriteFile(path, compressed, 0644); err != nil {
			return fmt.Errorf("failed to write dataset entry: %w", err)
		}
	}
	return nil
}
