// Package archive keeps an append-only sqlite record of committed
// conversation turns. It backs the recall tool and the admin archive
// search endpoint; the instance transcript itself lives in the JSON save
// files, so losing the archive loses searchability, not conversations.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"banter/internal/chat"
	"banter/internal/logging"
)

// Entry is one archived turn.
type Entry struct {
	ID       int64     `json:"id"`
	Identity string    `json:"identity"`
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Created  time.Time `json:"created_at"`
}

// Match is one search hit, ranked by the number of keyword occurrences.
type Match struct {
	Entry
	Hits int `json:"hits"`
}

// Archive is a single-writer sqlite store.
type Archive struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the archive database at path, creating directories and
// schema as needed.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	a := &Archive{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("archive opened at %s", path)
	return a, nil
}

func (a *Archive) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_identity ON turns(identity);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}

// Append records one committed turn. Empty content (tool-call rounds) is
// skipped: the archive holds readable conversation, not wire framing.
func (a *Archive) Append(ctx context.Context, identity string, msg chat.Message) error {
	if msg.Content == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	when := msg.Time
	if when.IsZero() {
		when = time.Now()
	}
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO turns (identity, role, content, created_at) VALUES (?, ?, ?, ?)",
		identity, string(msg.Role), msg.Content, when.Unix())
	if err != nil {
		return fmt.Errorf("failed to archive turn: %w", err)
	}
	return nil
}

// AppendAll records a batch of turns in one transaction.
func (a *Archive) AppendAll(ctx context.Context, identity string, msgs []chat.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO turns (identity, role, content, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}
		when := msg.Time
		if when.IsZero() {
			when = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, identity, string(msg.Role), msg.Content, when.Unix()); err != nil {
			return fmt.Errorf("failed to archive turn: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns the newest n turns for an identity, oldest first.
func (a *Archive) Recent(ctx context.Context, identity string, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx,
		"SELECT id, identity, role, content, created_at FROM turns WHERE identity = ? ORDER BY id DESC LIMIT ?",
		identity, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Search finds turns containing the query's keywords, ranked by total hit
// count. An empty identity searches across all conversations.
func (a *Archive) Search(ctx context.Context, identity, query string, limit int) ([]Match, error) {
	keywords := splitKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var sb strings.Builder
	args := make([]any, 0, len(keywords)+2)
	sb.WriteString("SELECT id, identity, role, content, created_at FROM turns WHERE (")
	for i, kw := range keywords {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("content LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	sb.WriteString(")")
	if identity != "" {
		sb.WriteString(" AND identity = ?")
		args = append(args, identity)
	}
	sb.WriteString(" ORDER BY id DESC LIMIT 500")

	a.mu.Lock()
	rows, err := a.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("failed to search archive: %w", err)
	}
	entries, err := scanEntries(rows)
	rows.Close()
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		hits := 0
		lower := strings.ToLower(e.Content)
		for _, kw := range keywords {
			hits += strings.Count(lower, kw)
		}
		if hits > 0 {
			matches = append(matches, Match{Entry: e, Hits: hits})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Hits > matches[j].Hits })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Identity, &e.Role, &e.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		e.Created = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// splitKeywords lower-cases the query and drops short noise words.
func splitKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'.,!?()[]`)
		if len(f) > 1 {
			keywords = append(keywords, f)
		}
	}
	return keywords
}
