// Package orchestrator plans and runs a crew: it orders tasks by their
// prerequisites, resolves result references between them and dispatches each
// task to its agent, collecting results in an execution context.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/crewmesh/agent"
	"github.com/hupe1980/crewmesh/config"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
)

// Executor runs a single task instruction. *agent.Agent satisfies this;
// tests substitute scripted executors.
type Executor interface {
	ID() string
	Execute(ctx context.Context, instruction string) (*agent.Result, error)
}

// Options configures an Orchestrator.
type Options struct {
	// Logger receives structured run events. Defaults to a no-op logger.
	Logger logging.Logger
}

// RunResult is the outcome of one orchestration run.
type RunResult struct {
	// RunID uniquely identifies the run for log correlation.
	RunID string
	// Final is the terminal task's result.
	Final core.TaskResult
	// Results holds every completed task result keyed by task identifier.
	Results map[string]core.TaskResult
	// Order lists task identifiers in completion order.
	Order []string
}

// Orchestrator executes a validated crew definition strictly sequentially in
// topological order. Construction fails fast on configuration problems; when
// planning fails, no task executes.
type Orchestrator struct {
	cfg    *config.Config
	agents map[string]Executor
	plan   []string
	logger logging.Logger
}

// New validates the configuration, plans the execution order and binds each
// task to its executor.
func New(cfg *config.Config, agents map[string]Executor, optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan, err := config.TopologicalOrder(cfg.Tasks)
	if err != nil {
		return nil, err
	}

	for _, t := range cfg.Tasks {
		if _, ok := agents[t.Agent]; !ok {
			return nil, core.NewConfigurationError(
				fmt.Sprintf("tasks.%s.agent", t.ID),
				"no executor bound for agent %q", t.Agent,
			)
		}
	}

	return &Orchestrator{
		cfg:    cfg,
		agents: agents,
		plan:   plan,
		logger: opts.Logger,
	}, nil
}

// Plan returns the task execution order.
func (o *Orchestrator) Plan() []string {
	out := make([]string, len(o.plan))
	copy(out, o.plan)
	return out
}

// Run executes every task in plan order. A failing task ends the run with
// the partial results collected so far, unless the task is marked
// best-effort, in which case a failure sentinel is stored and the run
// continues. Unresolved references are always fatal.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.NewString()
	ec := core.NewExecutionContext()

	o.logger.Info("run.start", "run_id", runID, "tasks", len(o.plan))

	for _, taskID := range o.plan {
		task, _ := o.taskByID(taskID)
		exec := o.agents[task.Agent]

		instruction, err := o.resolve(task, ec)
		if err != nil {
			o.logger.Error("run.task.unresolved", "run_id", runID, "task", taskID, "error", err.Error())
			return o.result(runID, ec), err
		}

		start := time.Now()
		res, err := exec.Execute(ctx, instruction)
		if err != nil {
			if task.BestEffort {
				o.logger.Warn("run.task.best_effort_failed",
					"run_id", runID,
					"task", taskID,
					"agent", task.Agent,
					"error", err.Error(),
				)
				if perr := ec.Put(core.TaskResult{
					Task:   taskID,
					Agent:  task.Agent,
					Failed: true,
					Error:  err.Error(),
				}); perr != nil {
					return o.result(runID, ec), perr
				}
				continue
			}

			o.logger.Error("run.task.failed",
				"run_id", runID,
				"task", taskID,
				"agent", task.Agent,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err.Error(),
			)
			return o.result(runID, ec), fmt.Errorf("task %q: %w", taskID, err)
		}

		o.logger.Info("run.task.complete",
			"run_id", runID,
			"task", taskID,
			"agent", task.Agent,
			"tool_calls", res.ToolCalls,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		if err := ec.Put(taskResult(taskID, task.Agent, res.Output)); err != nil {
			return o.result(runID, ec), err
		}
	}

	out := o.result(runID, ec)

	terminal := o.terminalTask()
	if final, ok := ec.Get(terminal); ok {
		out.Final = final
	}

	o.logger.Info("run.complete", "run_id", runID, "terminal", terminal)

	return out, nil
}

func (o *Orchestrator) result(runID string, ec *core.ExecutionContext) *RunResult {
	return &RunResult{
		RunID:   runID,
		Results: ec.Snapshot(),
		Order:   ec.Order(),
	}
}

// terminalTask is the task flagged as output, falling back to the last task
// in plan order.
func (o *Orchestrator) terminalTask() string {
	if t := o.cfg.TerminalTask(); t != "" {
		return t
	}
	if len(o.plan) == 0 {
		return ""
	}
	return o.plan[len(o.plan)-1]
}

func (o *Orchestrator) taskByID(id string) (config.TaskSpec, bool) {
	for _, t := range o.cfg.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return config.TaskSpec{}, false
}

// resolve substitutes all result references in the task's instruction and
// appends the expected-output guidance. Substitution is all-or-nothing: any
// unresolvable reference fails the whole instruction rather than producing a
// half-substituted one.
func (o *Orchestrator) resolve(task config.TaskSpec, ec *core.ExecutionContext) (string, error) {
	refs := config.ParseReferences(task.Instruction)

	replacements := make([]string, 0, 2*len(refs))
	for _, ref := range refs {
		value, err := resolveReference(task.ID, ref, ec)
		if err != nil {
			return "", err
		}
		replacements = append(replacements, ref.Raw, value)
	}

	instruction := strings.NewReplacer(replacements...).Replace(task.Instruction)

	if task.ExpectedOutput != "" {
		instruction += "\n\nExpected output: " + task.ExpectedOutput
	}

	return instruction, nil
}

func resolveReference(taskID string, ref config.Reference, ec *core.ExecutionContext) (string, error) {
	name := ref.Task
	if ref.Path != "" {
		name += "." + ref.Path
	}

	res, ok := ec.Get(ref.Task)
	if !ok || res.Failed {
		return "", &core.UnresolvedReferenceError{Task: taskID, Reference: name}
	}

	if ref.Path == "" {
		return res.Output, nil
	}

	field := gjson.GetBytes(res.Raw, ref.Path)
	if !field.Exists() {
		return "", &core.UnresolvedReferenceError{Task: taskID, Reference: name}
	}
	return field.String(), nil
}

// taskResult wraps the agent output, keeping a structured copy when the
// output parses as JSON so later tasks can reference individual fields.
func taskResult(taskID, agentID, output string) core.TaskResult {
	res := core.TaskResult{
		Task:   taskID,
		Agent:  agentID,
		Output: output,
	}

	trimmed := strings.TrimSpace(output)
	if gjson.Valid(trimmed) && (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
		res.Raw = []byte(trimmed)
	}

	return res
}
