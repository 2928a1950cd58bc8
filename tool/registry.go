package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/internal/util"
	"github.com/hupe1980/crewmesh/logging"
)

// Options configures a Registry.
type Options struct {
	// Logger receives structured invocation events. Defaults to a no-op logger.
	Logger logging.Logger
	// Retry bounds transient-failure retries. Defaults to DefaultRetryPolicy.
	Retry RetryPolicy
}

// Registry is the single dispatch point for tool invocations. Agents never
// call capabilities directly; every call goes through Invoke so that input
// validation, retries and output validation apply uniformly.
//
// Registration is strict: a duplicate name is a configuration error, not a
// silent override. The registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Descriptor

	logger logging.Logger
	retry  RetryPolicy
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Retry:  DefaultRetryPolicy(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		tools:  make(map[string]*Descriptor),
		logger: opts.Logger,
		retry:  opts.Retry,
	}
}

// Register adds a descriptor. An empty name, a nil capability or a name that
// is already taken fails with a ConfigurationError.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return core.NewConfigurationError("tool.name", "tool name must not be empty")
	}
	if d.Capability == nil {
		return core.NewConfigurationError(d.Name, "tool has no capability")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return core.NewConfigurationError(d.Name, "tool already registered")
	}
	r.tools[d.Name] = &d

	r.logger.Debug("tool.registered", "tool", d.Name)

	return nil
}

// Get returns the descriptor for name or a ToolNotFoundError.
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	if !ok {
		return nil, &core.ToolNotFoundError{Tool: name}
	}
	return d, nil
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Invoke executes the named tool. The pipeline is:
//
//  1. lookup                     -> ToolNotFoundError
//  2. input schema validation    -> ToolInputError (capability never runs)
//  3. capability, with retries for transient errors only
//  4. output schema validation   -> ToolOutputError
//
// The raw capability result is returned unchanged; validation inspects a
// JSON-normalized copy.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	d, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	if d.InputSchema != nil {
		if err := util.ValidateParameters(args, d.InputSchema); err != nil {
			return nil, inputError(name, err)
		}
	}

	start := time.Now()
	result, attempts, err := r.callWithRetry(ctx, d, args)
	if err != nil {
		r.logger.Warn("tool.invoke.failed",
			"tool", name,
			"attempts", attempts,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return nil, err
	}

	if d.OutputSchema != nil {
		if err := validateOutput(name, result, d.OutputSchema); err != nil {
			return nil, err
		}
	}

	r.logger.Info("tool.invoke.success",
		"tool", name,
		"attempts", attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func (r *Registry) callWithRetry(ctx context.Context, d *Descriptor, args map[string]any) (any, int, error) {
	maxAttempts := r.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := r.retry.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := d.Capability(ctx, args)
		if err == nil {
			return result, attempt, nil
		}

		if !core.IsTransient(err) {
			return nil, attempt, err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		r.logger.Debug("tool.invoke.retry",
			"tool", d.Name,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)

		if werr := wait(ctx, delay); werr != nil {
			return nil, attempt, werr
		}
		delay = r.retry.next(delay)
	}

	return nil, maxAttempts, lastErr
}

// validateOutput round-trips result through JSON and checks the copy against
// the schema. Non-object results are only accepted when the schema does not
// declare object properties.
func validateOutput(tool string, result any, schema map[string]any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return &core.ToolOutputError{Tool: tool, Reason: "result is not JSON-serializable: " + err.Error()}
	}

	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return &core.ToolOutputError{Tool: tool, Reason: "result is not a JSON object"}
	}

	if err := util.ValidateParameters(normalized, schema); err != nil {
		var verr *util.ValidationError
		if errors.As(err, &verr) {
			return &core.ToolOutputError{Tool: tool, Field: verr.Field, Reason: verr.Message}
		}
		return &core.ToolOutputError{Tool: tool, Reason: err.Error()}
	}

	return nil
}

func inputError(tool string, err error) error {
	var verr *util.ValidationError
	if errors.As(err, &verr) {
		return &core.ToolInputError{Tool: tool, Field: verr.Field, Reason: verr.Message}
	}
	return &core.ToolInputError{Tool: tool, Reason: err.Error()}
}
