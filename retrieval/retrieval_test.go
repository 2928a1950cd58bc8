package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/dataset"
	"github.com/hupe1980/crewmesh/embedding"
	"github.com/hupe1980/crewmesh/tool"
	"github.com/hupe1980/crewmesh/vectorindex"
)

func newRegistry(t *testing.T, descriptors ...tool.Descriptor) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	for _, d := range descriptors {
		require.NoError(t, r.Register(d))
	}
	return r
}

func TestTalkSearchTool(t *testing.T) {
	csv := `slug,title,description,url
climate-tipping,The climate tipping points,Warming oceans and ecosystems,https://example.org/climate-tipping
ai-education,AI in the classroom,Machine learning and teaching,https://example.org/ai-education
rural-health,Health care for rural villages,Clinics for remote communities,https://example.org/rural-health
`
	table, err := dataset.Parse(strings.NewReader(csv), "slug")
	require.NoError(t, err)

	ix, err := vectorindex.NewInMemory(context.Background(), embedding.NewMockProvider(64), table, "title", "description")
	require.NoError(t, err)

	r := newRegistry(t, NewTalkSearchTool(ix, 2))

	result, err := r.Invoke(context.Background(), "talk_search", map[string]any{"query": "warming oceans"})
	require.NoError(t, err)

	out, ok := result.(TalkSearchOutput)
	require.True(t, ok)
	assert.Equal(t, "warming oceans", out.Query)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "climate-tipping", out.Results[0].Slug)
	assert.Equal(t, "https://example.org/climate-tipping", out.Results[0].URL)

	// Explicit limit overrides the default. JSON numbers arrive as float64.
	result, err = r.Invoke(context.Background(), "talk_search", map[string]any{"query": "health", "limit": float64(1)})
	require.NoError(t, err)
	assert.Len(t, result.(TalkSearchOutput).Results, 1)

	// Missing query is rejected before the index runs.
	_, err = r.Invoke(context.Background(), "talk_search", map[string]any{})
	var ierr *core.ToolInputError
	assert.ErrorAs(t, err, &ierr)
}

func TestIndicatorTool(t *testing.T) {
	csv := `code,goal,target,title,description,unit
13-1-1,13,13.1,Deaths from disasters,Number of deaths attributed to disasters per 100k population,per 100k
4-1-1,4,4.1,Reading proficiency,Proportion of children achieving minimum reading proficiency,percent
`
	table, err := dataset.Parse(strings.NewReader(csv), "code")
	require.NoError(t, err)

	r := newRegistry(t, NewIndicatorTool(table))

	result, err := r.Invoke(context.Background(), "indicator_lookup", map[string]any{"code": "13-1-1"})
	require.NoError(t, err)

	out, ok := result.(IndicatorOutput)
	require.True(t, ok)
	assert.Equal(t, "13", out.Goal)
	assert.Equal(t, "Deaths from disasters", out.Title)
	assert.Equal(t, map[string]string{"unit": "per 100k"}, out.Values)

	_, err = r.Invoke(context.Background(), "indicator_lookup", map[string]any{"code": "99-9-9"})
	require.Error(t, err)

	var nferr *core.NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "99-9-9", nferr.Key)
}

const instantAnswerJSON = `{
	"Heading": "Sustainable Development Goals",
	"AbstractText": "The SDGs are 17 global goals set by the United Nations.",
	"AbstractURL": "https://example.org/sdg",
	"RelatedTopics": [
		{"Text": "SDG 13 Climate action", "FirstURL": "https://example.org/sdg13"},
		{"Name": "Categories", "Topics": [
			{"Text": "SDG 4 Quality education", "FirstURL": "https://example.org/sdg4"}
		]}
	]
}`

func TestDuckDuckGoBackend(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(instantAnswerJSON))
	}))
	defer srv.Close()

	backend := NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	results, err := backend.Search(context.Background(), "sustainable development", 5)
	require.NoError(t, err)
	assert.Equal(t, "sustainable development", gotQuery)
	require.Len(t, results, 3)
	assert.Equal(t, "Sustainable Development Goals", results[0].Title)
	assert.Equal(t, "https://example.org/sdg13", results[1].Link)
	assert.Equal(t, "SDG 4 Quality education", results[2].Title)

	// Limit truncates, abstract first.
	results, err = backend.Search(context.Background(), "sdg", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.org/sdg", results[0].Link)
}

func TestDuckDuckGoServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	backend := NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	_, err := backend.Search(context.Background(), "anything", 3)
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}

func TestWebSearchTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(instantAnswerJSON))
	}))
	defer srv.Close()

	backend := NewDuckDuckGo(func(o *DuckDuckGoOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})

	r := newRegistry(t, NewWebSearchTool(backend, 2))

	result, err := r.Invoke(context.Background(), "web_search", map[string]any{"query": "sdg"})
	require.NoError(t, err)

	out, ok := result.(WebSearchOutput)
	require.True(t, ok)
	assert.Len(t, out.Results, 2)
}

func TestSlugTool(t *testing.T) {
	csv := `slug,title,description
climate-tipping,The climate tipping points,Warming oceans and ecosystems
`
	table, err := dataset.Parse(strings.NewReader(csv), "slug")
	require.NoError(t, err)

	r := newRegistry(t, NewSlugTool(table))

	result, err := r.Invoke(context.Background(), "talk_slug", map[string]any{"slug": "climate-tipping"})
	require.NoError(t, err)

	out, ok := result.(SlugOutput)
	require.True(t, ok)
	assert.Equal(t, "The climate tipping points", out.Record["title"])

	_, err = r.Invoke(context.Background(), "talk_slug", map[string]any{"slug": "nope"})
	var nferr *core.NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "talk", nferr.Kind)
}

func TestTranscriptTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/talks/climate-tipping/transcript":
			assert.Equal(t, "en", r.URL.Query().Get("subtitle"))
			w.Write([]byte("We are closer to the tipping points than we thought."))
		case "/talks/flaky/transcript":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := newRegistry(t, NewTranscriptTool(func(o *TranscriptOptions) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	}))

	result, err := r.Invoke(context.Background(), "talk_transcript", map[string]any{"slug": "climate-tipping"})
	require.NoError(t, err)

	out, ok := result.(TranscriptOutput)
	require.True(t, ok)
	assert.Equal(t, "en", out.Language)
	assert.Contains(t, out.Transcript, "tipping points")

	_, err = r.Invoke(context.Background(), "talk_transcript", map[string]any{"slug": "missing"})
	var nferr *core.NotFoundError
	assert.ErrorAs(t, err, &nferr)

	_, err = r.Invoke(context.Background(), "talk_transcript", map[string]any{"slug": "flaky"})
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}
