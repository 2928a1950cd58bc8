package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/dataset"
	"github.com/hupe1980/crewmesh/tool"
)

// SlugInput is the argument schema for the talk_slug tool.
type SlugInput struct {
	Slug string `json:"slug" description:"URL slug identifying the talk"`
}

// SlugOutput is the full corpus record for a talk.
type SlugOutput struct {
	Slug   string            `json:"slug"`
	Record map[string]string `json:"record"`
}

// NewSlugTool builds the talk_slug descriptor: resolve a slug to its full
// corpus record. An unknown slug is a NotFoundError.
func NewSlugTool(table *dataset.Table) tool.Descriptor {
	return tool.Descriptor{
		Name:         "talk_slug",
		Description:  "Resolve a talk slug to the full corpus record for that talk",
		InputSchema:  tool.SchemaFor(SlugInput{}),
		OutputSchema: tool.SchemaFor(SlugOutput{}),
		Capability: func(_ context.Context, args map[string]any) (any, error) {
			slug, _ := args["slug"].(string)

			rec, ok := table.Lookup(slug)
			if !ok {
				return nil, core.NewNotFoundError("talk", slug)
			}

			return SlugOutput{Slug: slug, Record: rec}, nil
		},
	}
}

// TranscriptInput is the argument schema for the talk_transcript tool.
type TranscriptInput struct {
	Slug     string `json:"slug" description:"URL slug identifying the talk"`
	Language string `json:"language,omitempty" description:"Subtitle language code, defaults to en"`
}

// TranscriptOutput carries the fetched transcript text.
type TranscriptOutput struct {
	Slug       string `json:"slug"`
	Language   string `json:"language"`
	Transcript string `json:"transcript"`
}

// TranscriptOptions configures the transcript fetcher.
type TranscriptOptions struct {
	// HTTPClient used for requests. Defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	// BaseURL of the talk site. Overridable for tests.
	BaseURL string
}

// NewTranscriptTool builds the talk_transcript descriptor. A 404 from the
// talk site means the transcript does not exist (NotFoundError); transport
// failures and 5xx responses are transient.
func NewTranscriptTool(optFns ...func(o *TranscriptOptions)) tool.Descriptor {
	opts := TranscriptOptions{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    "https://www.ted.com",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.Descriptor{
		Name:         "talk_transcript",
		Description:  "Fetch the transcript of a talk by slug from the talk site",
		InputSchema:  tool.SchemaFor(TranscriptInput{}),
		OutputSchema: tool.SchemaFor(TranscriptOutput{}),
		Capability: func(ctx context.Context, args map[string]any) (any, error) {
			slug, _ := args["slug"].(string)

			lang, _ := args["language"].(string)
			if lang == "" {
				lang = "en"
			}

			u := fmt.Sprintf("%s/talks/%s/transcript?subtitle=%s",
				opts.BaseURL, url.PathEscape(slug), url.QueryEscape(lang))

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return nil, err
			}

			resp, err := opts.HTTPClient.Do(req)
			if err != nil {
				return nil, core.NewToolTransientError("transcript fetch", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return nil, core.NewNotFoundError("transcript", slug)
			case resp.StatusCode >= 500:
				return nil, core.NewToolTransientError("transcript fetch",
					fmt.Errorf("upstream status %d", resp.StatusCode))
			case resp.StatusCode != http.StatusOK:
				return nil, fmt.Errorf("transcript fetch: unexpected status %d", resp.StatusCode)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, core.NewToolTransientError("transcript fetch", err)
			}

			return TranscriptOutput{
				Slug:       slug,
				Language:   lang,
				Transcript: string(body),
			}, nil
		},
	}
}
