// Package crewmesh provides a high-level façade over the configuration
// loader, tool registry, agents and orchestrator, enabling construction of a
// complete task pipeline from declarative YAML. Most applications interact
// with this package by:
//  1. Loading a config.Config (config.Load or config.Parse)
//  2. Creating a Crew via New(), optionally overriding the model, the
//     embedding provider or the search backend
//  3. Running the pipeline with Kickoff()
//
// Defaults are safe for local development: the built-in tools read their
// datasets from the paths named in the tool configuration, web search uses
// DuckDuckGo and the model is selected by the configured provider.
package crewmesh

import (
	"context"
	"net/http"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/crewmesh/agent"
	"github.com/hupe1980/crewmesh/config"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/dataset"
	"github.com/hupe1980/crewmesh/embedding"
	"github.com/hupe1980/crewmesh/logging"
	"github.com/hupe1980/crewmesh/model"
	"github.com/hupe1980/crewmesh/model/anthropic"
	"github.com/hupe1980/crewmesh/model/openai"
	"github.com/hupe1980/crewmesh/orchestrator"
	"github.com/hupe1980/crewmesh/retrieval"
	"github.com/hupe1980/crewmesh/tool"
	"github.com/hupe1980/crewmesh/vectorindex"
)

// Options configures a Crew.
type Options struct {
	// Logger (defaults to a no-op logger)
	Logger logging.Logger

	// Model overrides the model selected from the configuration. Useful for
	// tests and for providers not known to the configuration layer.
	Model model.Model

	// Embedding overrides the provider used to build vector indexes.
	// Defaults to OpenAI embeddings.
	Embedding embedding.Provider

	// SearchBackend overrides the web search backend. Defaults to DuckDuckGo.
	SearchBackend retrieval.Backend

	// HTTPClient used by HTTP-backed tools when no override is given.
	HTTPClient *http.Client

	// Retry bounds transient tool-failure retries.
	Retry tool.RetryPolicy

	// MaxTurns bounds model round-trips per task.
	MaxTurns int
}

// Crew aggregates the registry, agents and orchestrator built from one
// configuration.
type Crew struct {
	cfg      *config.Config
	registry *tool.Registry
	orch     *orchestrator.Orchestrator
	logger   logging.Logger
}

// New builds a ready-to-run Crew from a validated configuration. Tool
// datasets are loaded and indexed here, so construction can take a provider
// round-trip per corpus row; pass a cancellable context for large corpora.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Crew, error) {
	opts := Options{
		Logger:   logging.NoOpLogger{},
		Retry:    tool.DefaultRetryPolicy(),
		MaxTurns: 8,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := tool.NewRegistry(func(o *tool.Options) {
		o.Logger = opts.Logger
		o.Retry = opts.Retry
	})

	if err := registerTools(ctx, cfg, registry, &opts); err != nil {
		return nil, err
	}

	m := opts.Model
	if m == nil {
		var err error
		if m, err = modelFromConfig(cfg.Model); err != nil {
			return nil, err
		}
	}

	executors := make(map[string]orchestrator.Executor, len(cfg.Agents))
	for _, spec := range cfg.Agents {
		agentModel := m
		if spec.Model != nil && opts.Model == nil {
			var err error
			if agentModel, err = modelFromConfig(*spec.Model); err != nil {
				return nil, err
			}
		}

		a, err := agent.New(spec, registry, agentModel, func(o *agent.Options) {
			o.Logger = opts.Logger
			o.MaxTurns = opts.MaxTurns
		})
		if err != nil {
			return nil, err
		}
		executors[spec.ID] = a
	}

	orch, err := orchestrator.New(cfg, executors, func(o *orchestrator.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &Crew{
		cfg:      cfg,
		registry: registry,
		orch:     orch,
		logger:   opts.Logger,
	}, nil
}

// Registry exposes the tool registry, mainly for registering custom tools
// before Kickoff.
func (c *Crew) Registry() *tool.Registry { return c.registry }

// Plan returns the task execution order.
func (c *Crew) Plan() []string { return c.orch.Plan() }

// Kickoff runs the full pipeline and returns the terminal task's result
// along with every intermediate result.
func (c *Crew) Kickoff(ctx context.Context) (*orchestrator.RunResult, error) {
	return c.orch.Run(ctx)
}

// registerTools wires each configured tool to its built-in capability.
// Dataset-backed tools share tables loaded from the same path.
func registerTools(ctx context.Context, cfg *config.Config, registry *tool.Registry, opts *Options) error {
	tables := map[string]*dataset.Table{}

	loadTable := func(ts config.ToolSpec, keyColumn string) (*dataset.Table, error) {
		path := ts.ConfigString("data")
		if path == "" {
			return nil, core.NewConfigurationError("tools."+ts.Name+".config.data", "data path is required")
		}
		if t, ok := tables[path]; ok {
			return t, nil
		}
		t, err := dataset.Load(path, keyColumn)
		if err != nil {
			return nil, core.NewConfigurationError("tools."+ts.Name+".config.data", "%v", err)
		}
		tables[path] = t
		return t, nil
	}

	for _, ts := range cfg.Tools {
		var d tool.Descriptor

		switch ts.Name {
		case "talk_search":
			table, err := loadTable(ts, "slug")
			if err != nil {
				return err
			}

			provider := opts.Embedding
			if provider == nil {
				provider = embedding.NewOpenAI()
			}

			index, err := vectorindex.NewInMemory(ctx, provider, table, "title", "description")
			if err != nil {
				return err
			}
			d = retrieval.NewTalkSearchTool(index, ts.ConfigInt("limit"))

		case "indicator_lookup":
			table, err := loadTable(ts, "code")
			if err != nil {
				return err
			}
			d = retrieval.NewIndicatorTool(table)

		case "web_search":
			backend := opts.SearchBackend
			if backend == nil {
				backend = retrieval.NewDuckDuckGo(func(o *retrieval.DuckDuckGoOptions) {
					if base := ts.ConfigString("base_url"); base != "" {
						o.BaseURL = base
					}
					if opts.HTTPClient != nil {
						o.HTTPClient = opts.HTTPClient
					}
				})
			}
			d = retrieval.NewWebSearchTool(backend, ts.ConfigInt("limit"))

		case "talk_slug":
			table, err := loadTable(ts, "slug")
			if err != nil {
				return err
			}
			d = retrieval.NewSlugTool(table)

		case "talk_transcript":
			d = retrieval.NewTranscriptTool(func(o *retrieval.TranscriptOptions) {
				if base := ts.ConfigString("base_url"); base != "" {
					o.BaseURL = base
				}
				if opts.HTTPClient != nil {
					o.HTTPClient = opts.HTTPClient
				}
			})

		default:
			return core.NewConfigurationError("tools."+ts.Name, "no built-in capability for this tool")
		}

		if ts.Description != "" {
			d.Description = ts.Description
		}

		if err := registry.Register(d); err != nil {
			return err
		}
	}

	return nil
}

// modelFromConfig selects a provider adapter from a model section.
func modelFromConfig(spec config.ModelSpec) (model.Model, error) {
	switch spec.Provider {
	case "openai", "":
		return openai.New(func(o *openai.Options) {
			if spec.Name != "" {
				o.Model = spec.Name
			}
			if spec.Temperature > 0 {
				o.Temperature = spec.Temperature
			}
			if spec.MaxTokens > 0 {
				o.MaxCompletionTokens = spec.MaxTokens
			}
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if spec.Name != "" {
				o.Model = anthropicsdk.Model(spec.Name)
			}
			if spec.Temperature > 0 {
				o.Temperature = spec.Temperature
			}
			if spec.MaxTokens > 0 {
				o.MaxTokens = spec.MaxTokens
			}
		}), nil
	case "mock":
		return model.NewMockModel(spec.Name), nil
	default:
		return nil, core.NewConfigurationError("model.provider", "unknown provider %q", spec.Provider)
	}
}
