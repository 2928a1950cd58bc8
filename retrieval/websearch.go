package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/tool"
)

// SearchResult is one entry returned by a web search backend.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Backend abstracts the web search provider so tests can substitute a fake
// and deployments can swap providers without touching the tool.
type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// WebSearchInput is the argument schema for the web_search tool.
type WebSearchInput struct {
	Query string `json:"query" description:"Search query"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of results"`
}

// WebSearchOutput is the result schema for the web_search tool.
type WebSearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// NewWebSearchTool builds the web_search descriptor over a backend.
func NewWebSearchTool(backend Backend, defaultLimit int) tool.Descriptor {
	if defaultLimit < 1 {
		defaultLimit = 5
	}

	return tool.Descriptor{
		Name:         "web_search",
		Description:  "Search the web and return result titles, snippets and links",
		InputSchema:  tool.SchemaFor(WebSearchInput{}),
		OutputSchema: tool.SchemaFor(WebSearchOutput{}),
		Capability: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			limit := defaultLimit
			if f, ok := args["limit"].(float64); ok && int(f) > 0 {
				limit = int(f)
			}

			results, err := backend.Search(ctx, query, limit)
			if err != nil {
				return nil, err
			}

			return WebSearchOutput{Query: query, Results: results}, nil
		},
	}
}

// DuckDuckGoOptions configures the DuckDuckGo backend.
type DuckDuckGoOptions struct {
	// HTTPClient used for requests. Defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	// BaseURL of the instant answer API. Overridable for tests.
	BaseURL string
}

// DuckDuckGo queries the DuckDuckGo instant answer API. It needs no API key,
// which keeps the default configuration runnable out of the box.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
}

// NewDuckDuckGo creates a DuckDuckGo backend.
func NewDuckDuckGo(optFns ...func(o *DuckDuckGoOptions)) *DuckDuckGo {
	opts := DuckDuckGoOptions{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    "https://api.duckduckgo.com",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &DuckDuckGo{client: opts.HTTPClient, baseURL: opts.BaseURL}
}

// Search implements Backend. Transport failures and upstream 5xx responses
// are transient; any other non-200 status is final.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	u := fmt.Sprintf("%s/?q=%s&format=json&no_html=1", d.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, core.NewToolTransientError("duckduckgo search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, core.NewToolTransientError("duckduckgo search",
			fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo search: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewToolTransientError("duckduckgo search", err)
	}

	return parseInstantAnswer(body, limit), nil
}

// parseInstantAnswer extracts the abstract and related topics. RelatedTopics
// mixes flat entries with nested category groups holding a Topics array.
func parseInstantAnswer(body []byte, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)

	doc := gjson.ParseBytes(body)

	if abstract := doc.Get("AbstractText").String(); abstract != "" {
		results = append(results, SearchResult{
			Title:   doc.Get("Heading").String(),
			Snippet: abstract,
			Link:    doc.Get("AbstractURL").String(),
		})
	}

	var collect func(topics gjson.Result)
	collect = func(topics gjson.Result) {
		topics.ForEach(func(_, topic gjson.Result) bool {
			if len(results) >= limit {
				return false
			}
			if nested := topic.Get("Topics"); nested.Exists() {
				collect(nested)
				return len(results) < limit
			}
			text := topic.Get("Text").String()
			if text == "" {
				return true
			}
			results = append(results, SearchResult{
				Title:   text,
				Snippet: text,
				Link:    topic.Get("FirstURL").String(),
			})
			return true
		})
	}
	collect(doc.Get("RelatedTopics"))

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
