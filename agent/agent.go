// Package agent implements the worker that executes a single task: it turns
// an agent definition into model system instructions, drives the model's
// tool-calling loop and routes every tool call through the shared registry.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/crewmesh/config"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
	"github.com/hupe1980/crewmesh/model"
	"github.com/hupe1980/crewmesh/tool"
)

// Options configures an Agent.
type Options struct {
	// Logger receives structured execution events. Defaults to a no-op logger.
	Logger logging.Logger
	// MaxTurns bounds the model round-trips per task. Defaults to 8.
	MaxTurns int
}

// Result is the outcome of a single task execution.
type Result struct {
	// Output is the agent's final answer text.
	Output string
	// Turns counts model round-trips taken.
	Turns int
	// ToolCalls counts tool invocations across all turns.
	ToolCalls int
}

// Agent binds an identity (role, goal, backstory) to a model and an
// authorized subset of registry tools. Agents are stateless across tasks;
// each Execute starts a fresh conversation.
type Agent struct {
	id        string
	role      string
	goal      string
	backstory string

	registry *tool.Registry
	model    model.Model
	tools    []model.ToolDefinition

	logger   logging.Logger
	maxTurns int
}

// New builds an Agent from its definition. Every tool name the definition
// lists must already be registered; an unknown name is a configuration error
// caught here rather than at execution time.
func New(spec config.AgentSpec, registry *tool.Registry, m model.Model, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Logger:   logging.NoOpLogger{},
		MaxTurns: 8,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	defs := make([]model.ToolDefinition, 0, len(spec.Tools))
	for _, name := range spec.Tools {
		d, err := registry.Get(name)
		if err != nil {
			return nil, core.NewConfigurationError(
				fmt.Sprintf("agents.%s.tools", spec.ID),
				"tool %q is not registered", name,
			)
		}
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		})
	}

	return &Agent{
		id:        spec.ID,
		role:      spec.Role,
		goal:      spec.Goal,
		backstory: spec.Backstory,
		registry:  registry,
		model:     m,
		tools:     defs,
		logger:    opts.Logger,
		maxTurns:  opts.MaxTurns,
	}, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// instructions renders the agent identity as system instructions.
func (a *Agent) instructions() string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.\n", a.role)
	fmt.Fprintf(&b, "Your goal: %s\n", a.goal)
	if a.backstory != "" {
		fmt.Fprintf(&b, "Background: %s\n", a.backstory)
	}
	if len(a.tools) > 0 {
		b.WriteString("Use the available tools to gather facts before answering. Answer with the final result only.\n")
	}

	return b.String()
}

// Execute runs the tool-calling loop for one task instruction until the
// model stops requesting tools or MaxTurns is reached.
//
// Tool failures the model can recover from (invalid arguments, missing
// records) are fed back into the conversation as error responses. Failures
// that indicate a broken setup or an exhausted backend (unknown tool,
// transient errors past the retry budget, malformed tool output) abort the
// task.
func (a *Agent) Execute(ctx context.Context, instruction string) (*Result, error) {
	contents := []core.Content{core.NewTextContent("user", instruction)}
	result := &Result{}

	for turn := 0; turn < a.maxTurns; turn++ {
		resp, err := a.generate(ctx, model.Request{
			Instructions: a.instructions(),
			Contents:     contents,
			Tools:        a.tools,
		})
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", a.id, err)
		}
		result.Turns++

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			result.Output = resp.Content.Text()
			return result, nil
		}

		contents = append(contents, resp.Content)

		responses := make([]core.Part, 0, len(calls))
		for _, fc := range calls {
			fr, err := a.invoke(ctx, fc)
			if err != nil {
				return nil, err
			}
			responses = append(responses, core.FunctionResponsePart{FunctionResponse: fr})
			result.ToolCalls++
		}
		contents = append(contents, core.Content{Role: "tool", Parts: responses})
	}

	return nil, fmt.Errorf("agent %q: no final answer after %d turns", a.id, a.maxTurns)
}

// generate drives one model round-trip and returns the final response.
func (a *Agent) generate(ctx context.Context, req model.Request) (*model.Response, error) {
	start := time.Now()

	respCh, errCh := a.model.Generate(ctx, req)

	var final *model.Response
	for resp := range respCh {
		if resp.Partial {
			continue
		}
		r := resp
		final = &r
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if final == nil {
		return nil, fmt.Errorf("model returned no response")
	}

	a.logger.Debug("agent.model.turn",
		"agent", a.id,
		"model", a.model.Info().Name,
		"finish_reason", final.FinishReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return final, nil
}

// invoke executes one tool call through the registry and classifies the
// outcome. The returned FunctionResponse is only valid when err is nil.
func (a *Agent) invoke(ctx context.Context, fc core.FunctionCall) (core.FunctionResponse, error) {
	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			// Malformed JSON from the model is recoverable: report it back.
			return core.FunctionResponse{
				ID:    fc.ID,
				Name:  fc.Name,
				Error: fmt.Sprintf("invalid arguments: %v", err),
			}, nil
		}
	}

	result, err := a.registry.Invoke(ctx, fc.Name, args)
	if err != nil {
		if recoverable(err) {
			a.logger.Warn("agent.tool.recoverable",
				"agent", a.id,
				"tool", fc.Name,
				"error", err.Error(),
			)
			return core.FunctionResponse{ID: fc.ID, Name: fc.Name, Error: err.Error()}, nil
		}
		return core.FunctionResponse{}, fmt.Errorf("agent %q: tool %q: %w", a.id, fc.Name, err)
	}

	text := result
	if _, ok := result.(string); !ok {
		if raw, merr := json.Marshal(result); merr == nil {
			text = string(raw)
		}
	}

	return core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: text}, nil
}

// recoverable reports whether a tool error should be surfaced to the model
// instead of aborting the task. Bad arguments and missing records are facts
// the model can act on; everything else means the setup or a backend is
// broken.
func recoverable(err error) bool {
	var ierr *core.ToolInputError
	var nferr *core.NotFoundError
	return errors.As(err, &ierr) || errors.As(err, &nferr)
}
