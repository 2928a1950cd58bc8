// Package tool implements the capability subsystem that lets agents invoke
// structured functions (dataset lookups, searches, HTTP fetches) with schema
// validated inputs and outputs, uniform error classification and bounded
// retries for transient backend failures.
package tool

import (
	"context"

	"github.com/hupe1980/crewmesh/internal/util"
)

// Capability is the function behind a tool. Arguments arrive already validated
// against the tool's input schema; the returned value must be JSON-serializable
// and, when an output schema is declared, conform to it.
//
// Implementations signal a retryable backend hiccup by returning (or wrapping)
// a *core.ToolTransientError; every other error is treated as final.
type Capability func(ctx context.Context, args map[string]any) (any, error)

// Descriptor bundles a tool's identity, its schemas and the capability that
// executes it. Descriptors are immutable after registration and safe for
// concurrent use.
type Descriptor struct {
	// Unique tool name (snake_case recommended)
	Name string
	// Human-readable description exposed to models
	Description string
	// JSON schema describing accepted arguments
	InputSchema map[string]any
	// Optional JSON schema the result must conform to; nil skips output validation
	OutputSchema map[string]any
	// The implementation
	Capability Capability
}

// ValidationError is the detailed schema mismatch reported by input and
// output validation.
type ValidationError = util.ValidationError

// SchemaFor derives a JSON-schema-like map from a struct via reflection.
// Fields tagged omitempty or declared as pointers are optional; a
// `description` tag becomes the property description.
func SchemaFor(structType any) map[string]any {
	return util.CreateSchema(structType)
}
