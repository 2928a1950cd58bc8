package retrieval

import (
	"context"

	"github.com/hupe1980/crewmesh/tool"
	"github.com/hupe1980/crewmesh/vectorindex"
)

// TalkSearchInput is the argument schema for the talk_search tool.
type TalkSearchInput struct {
	Query string `json:"query" description:"Free-text description of the talk to find"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of results to return"`
}

// TalkHit is a single semantic search match.
type TalkHit struct {
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url,omitempty"`
	Score       float64 `json:"score"`
}

// TalkSearchOutput is the result schema for the talk_search tool.
type TalkSearchOutput struct {
	Query   string    `json:"query"`
	Results []TalkHit `json:"results"`
}

// NewTalkSearchTool builds the talk_search descriptor over a vector index.
// defaultLimit applies when the caller omits limit; values below 1 fall back
// to 5.
func NewTalkSearchTool(index vectorindex.Index, defaultLimit int) tool.Descriptor {
	if defaultLimit < 1 {
		defaultLimit = 5
	}

	return tool.Descriptor{
		Name:         "talk_search",
		Description:  "Search the talk corpus semantically and return the closest matches with slug, title and description",
		InputSchema:  tool.SchemaFor(TalkSearchInput{}),
		OutputSchema: tool.SchemaFor(TalkSearchOutput{}),
		Capability: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			limit := defaultLimit
			if f, ok := args["limit"].(float64); ok && int(f) > 0 {
				limit = int(f)
			}

			hits, err := index.Query(ctx, query, limit)
			if err != nil {
				return nil, err
			}

			results := make([]TalkHit, 0, len(hits))
			for _, h := range hits {
				results = append(results, TalkHit{
					Slug:        h.Record["slug"],
					Title:       h.Record["title"],
					Description: h.Record["description"],
					URL:         h.Record["url"],
					Score:       h.Score,
				})
			}

			return TalkSearchOutput{Query: query, Results: results}, nil
		},
	}
}
