package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
)

func fastRetry(o *Options) {
	o.Retry = RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func echoDescriptor(name string) Descriptor {
	return Descriptor{
		Name:        name,
		Description: "Echo the input back",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Capability: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"text": args["text"]}, nil
		},
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(echoDescriptor("echo")))

	err := r.Register(echoDescriptor("echo"))
	require.Error(t, err)

	var cerr *core.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestRegistryRejectsInvalidDescriptor(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Descriptor{Name: "", Capability: func(context.Context, map[string]any) (any, error) { return nil, nil }})
	assert.Error(t, err)

	err = r.Register(Descriptor{Name: "no_capability"})
	assert.Error(t, err)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	require.Error(t, err)

	var nferr *core.ToolNotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "missing", nferr.Tool)

	_, err = r.Invoke(context.Background(), "missing", nil)
	assert.ErrorAs(t, err, &nferr)
}

func TestInvokeValidatesInputBeforeExecution(t *testing.T) {
	r := NewRegistry()

	calls := 0
	d := echoDescriptor("echo")
	d.Capability = func(_ context.Context, args map[string]any) (any, error) {
		calls++
		return map[string]any{"text": args["text"]}, nil
	}
	require.NoError(t, r.Register(d))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{})
	require.Error(t, err)

	var ierr *core.ToolInputError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "text", ierr.Field)
	assert.Zero(t, calls, "capability must not run on invalid input")

	_, err = r.Invoke(context.Background(), "echo", map[string]any{"text": 42})
	assert.ErrorAs(t, err, &ierr)
	assert.Zero(t, calls)
}

func TestInvokeRetriesTransientErrors(t *testing.T) {
	r := NewRegistry(fastRetry)

	calls := 0
	require.NoError(t, r.Register(Descriptor{
		Name:        "flaky",
		Description: "Succeeds on the third attempt",
		Capability: func(context.Context, map[string]any) (any, error) {
			calls++
			if calls < 3 {
				return nil, core.NewToolTransientError("backend", errors.New("connection reset"))
			}
			return map[string]any{"ok": true}, nil
		},
	}))

	result, err := r.Invoke(context.Background(), "flaky", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, map[string]any{"ok": true}, result)
}

func TestInvokeGivesUpAfterMaxAttempts(t *testing.T) {
	r := NewRegistry(fastRetry)

	calls := 0
	require.NoError(t, r.Register(Descriptor{
		Name:        "down",
		Description: "Always fails",
		Capability: func(context.Context, map[string]any) (any, error) {
			calls++
			return nil, core.NewToolTransientError("backend", errors.New("timeout"))
		},
	}))

	_, err := r.Invoke(context.Background(), "down", nil)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, core.IsTransient(err))
}

func TestInvokeDoesNotRetryFinalErrors(t *testing.T) {
	r := NewRegistry(fastRetry)

	calls := 0
	require.NoError(t, r.Register(Descriptor{
		Name:        "lookup",
		Description: "Never finds anything",
		Capability: func(context.Context, map[string]any) (any, error) {
			calls++
			return nil, core.NewNotFoundError("indicator", "99-9-9")
		},
	}))

	_, err := r.Invoke(context.Background(), "lookup", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var nferr *core.NotFoundError
	assert.ErrorAs(t, err, &nferr)
}

func TestInvokeValidatesOutput(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Descriptor{
		Name:        "broken",
		Description: "Returns a malformed result",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score": map[string]any{"type": "number"},
			},
			"required": []string{"score"},
		},
		Capability: func(context.Context, map[string]any) (any, error) {
			return map[string]any{"grade": "A"}, nil
		},
	}))

	_, err := r.Invoke(context.Background(), "broken", nil)
	require.Error(t, err)

	var oerr *core.ToolOutputError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "score", oerr.Field)
}

func TestInvokeReturnsRawResult(t *testing.T) {
	type out struct {
		Score float64 `json:"score"`
	}

	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name:        "score",
		Description: "Returns a typed struct",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score": map[string]any{"type": "number"},
			},
			"required": []string{"score"},
		},
		Capability: func(context.Context, map[string]any) (any, error) {
			return out{Score: 0.9}, nil
		},
	}))

	result, err := r.Invoke(context.Background(), "score", nil)
	require.NoError(t, err)

	// Validation inspects a JSON copy; the caller still gets the raw value.
	typed, ok := result.(out)
	require.True(t, ok)
	assert.Equal(t, 0.9, typed.Score)
}

func TestInvokeHonorsContextCancellation(t *testing.T) {
	r := NewRegistry(func(o *Options) {
		o.Retry = RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2.0}
	})

	require.NoError(t, r.Register(Descriptor{
		Name:        "slow",
		Description: "Transient failure with a long backoff",
		Capability: func(context.Context, map[string]any) (any, error) {
			return nil, core.NewToolTransientError("backend", errors.New("unavailable"))
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Invoke(ctx, "slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor("zeta")))
	require.NoError(t, r.Register(echoDescriptor("alpha")))

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}
