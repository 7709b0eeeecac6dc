// Package wikimedia is a client for MediaWiki installations (Wikipedia,
// game wikis), backing the wiki_search and wiki_page tools. Search
// snippets arrive as HTML fragments and are stripped to plain text.
package wikimedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"banter/internal/config"
	"banter/internal/logging"
)

// SearchResult is one page hit from generator=search.
type SearchResult struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	PageID      int    `json:"pageid,omitempty"`
}

// Client calls one wiki's api.php / index.php endpoints.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient builds a client for the wiki at cfg.BaseURL (the /w script
// directory, not the article path).
func NewClient(cfg config.WikimediaConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org/w"
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "banter/0.3"
	}
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, script string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+script+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create wiki request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wiki request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wiki returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read wiki response: %w", err)
	}
	return body, nil
}

// Search runs a generator=search query with intro extracts, returning up
// to five ranked pages.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("redirects", "resolve")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", "5")
	params.Set("gsrprop", "snippet")
	params.Set("prop", "extracts|info")
	params.Set("inprop", "url")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exchars", "500")
	params.Set("exlimit", "3")

	body, err := c.get(ctx, "api.php", params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Query struct {
			Pages []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
				Extract string `json:"extract"`
				PageID  int    `json:"pageid"`
				FullURL string `json:"fullurl"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode wiki search response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Query.Pages))
	for _, page := range parsed.Query.Pages {
		if page.Title == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:       page.Title,
			Snippet:     StripHTML(page.Snippet),
			Description: page.Extract,
			URL:         page.FullURL,
			PageID:      page.PageID,
		})
	}

	logging.ToolsDebug("wiki search %q returned %d results", query, len(results))
	return results, nil
}

// OpenSearch runs the opensearch suggestion endpoint.
func (c *Client) OpenSearch(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("format", "json")
	params.Set("search", query)

	body, err := c.get(ctx, "api.php", params)
	if err != nil {
		return nil, err
	}

	// Response shape: [query, [titles], [descriptions], [urls]]
	var parsed []json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed) < 4 {
		return nil, fmt.Errorf("unexpected opensearch response shape")
	}
	var titles, descriptions, urls []string
	if err := json.Unmarshal(parsed[1], &titles); err != nil {
		return nil, fmt.Errorf("failed to decode opensearch titles: %w", err)
	}
	_ = json.Unmarshal(parsed[2], &descriptions)
	_ = json.Unmarshal(parsed[3], &urls)

	results := make([]SearchResult, 0, len(titles))
	for i, title := range titles {
		r := SearchResult{Title: title}
		if i < len(descriptions) {
			r.Description = descriptions[i]
		}
		if i < len(urls) {
			r.URL = urls[i]
		}
		results = append(results, r)
	}
	return results, nil
}

// GetRaw fetches a page's raw wikitext via index.php?action=raw.
func (c *Client) GetRaw(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("title", title)
	params.Set("action", "raw")

	body, err := c.get(ctx, "index.php", params)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// StripHTML reduces an HTML fragment to its text content. MediaWiki search
// snippets wrap matched terms in span tags; the model only needs the text.
func StripHTML(fragment string) string {
	if fragment == "" || !strings.ContainsRune(fragment, '<') {
		return fragment
	}

	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
