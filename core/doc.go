// Package core holds the shared contracts of the crewmesh engine: the error
// taxonomy used across config loading, tool invocation and task execution,
// the per-run ExecutionContext that accumulates task results, and the
// Content/Part union exchanged with reasoning models.
package core
