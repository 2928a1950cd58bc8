package config

import (
	"regexp"
	"strings"

	"github.com/hupe1980/crewmesh/core"
)

// Validate checks internal consistency of the loaded specs: unique non-empty
// identifiers, agent/tool cross-references that resolve, acyclic task
// prerequisites and at most one terminal task. It performs no I/O.
func (c *Config) Validate() error {
	toolNames := map[string]bool{}
	for _, t := range c.Tools {
		if t.Name == "" {
			return core.NewConfigurationError("tools", "tool with empty name")
		}
		if toolNames[t.Name] {
			return core.NewConfigurationError("tools."+t.Name, "duplicate tool name")
		}
		toolNames[t.Name] = true
	}

	agentIDs := map[string]bool{}
	for _, a := range c.Agents {
		if a.ID == "" {
			return core.NewConfigurationError("agents", "agent with empty id")
		}
		if agentIDs[a.ID] {
			return core.NewConfigurationError("agents."+a.ID, "duplicate agent id")
		}
		agentIDs[a.ID] = true
		if a.Role == "" {
			return core.NewConfigurationError("agents."+a.ID+".role", "role must not be empty")
		}
		if a.Goal == "" {
			return core.NewConfigurationError("agents."+a.ID+".goal", "goal must not be empty")
		}
		for _, name := range a.Tools {
			if !toolNames[name] {
				return core.NewConfigurationError("agents."+a.ID+".tools", "unknown tool %q", name)
			}
		}
	}

	taskIDs := map[string]bool{}
	for _, t := range c.Tasks {
		if t.ID == "" {
			return core.NewConfigurationError("tasks", "task with empty id")
		}
		if taskIDs[t.ID] {
			return core.NewConfigurationError("tasks."+t.ID, "duplicate task id")
		}
		taskIDs[t.ID] = true
	}

	terminal := ""
	for _, t := range c.Tasks {
		if !agentIDs[t.Agent] {
			return core.NewConfigurationError("tasks."+t.ID+".agent", "unknown agent %q", t.Agent)
		}
		if t.Instruction == "" {
			return core.NewConfigurationError("tasks."+t.ID+".instruction", "instruction must not be empty")
		}
		deps := map[string]bool{}
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return core.NewConfigurationError("tasks."+t.ID+".depends_on", "task depends on itself")
			}
			if !taskIDs[dep] {
				return core.NewConfigurationError("tasks."+t.ID+".depends_on", "unknown task %q", dep)
			}
			deps[dep] = true
		}
		for _, ref := range ParseReferences(t.Instruction) {
			if !deps[ref.Task] {
				return core.NewConfigurationError("tasks."+t.ID+".instruction",
					"reference %q does not name a declared prerequisite", ref.Raw)
			}
		}
		if t.Output {
			if terminal != "" {
				return core.NewConfigurationError("tasks."+t.ID+".output",
					"terminal task already declared by %q", terminal)
			}
			terminal = t.ID
		}
	}

	if _, err := TopologicalOrder(c.Tasks); err != nil {
		return err
	}

	return nil
}

// TopologicalOrder computes one valid execution order over the task set,
// breaking ties among independently-ready tasks by declaration order so
// planning is deterministic. A prerequisite cycle yields a
// ConfigurationError naming a participating task.
func TopologicalOrder(tasks []TaskSpec) ([]string, error) {
	done := map[string]bool{}
	order := make([]string, 0, len(tasks))

	for len(order) < len(tasks) {
		progressed := false
		for _, t := range tasks {
			if done[t.ID] {
				continue
			}
			ready := true
			for _, dep := range t.DependsOn {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				done[t.ID] = true
				order = append(order, t.ID)
				progressed = true
			}
		}
		if !progressed {
			for _, t := range tasks {
				if !done[t.ID] {
					return nil, core.NewConfigurationError("tasks."+t.ID+".depends_on",
						"prerequisite cycle involving task %q", t.ID)
				}
			}
		}
	}

	return order, nil
}

// Reference is a typed pointer from an instruction template to a prior
// task's result: the task identifier plus an optional field path into its
// structured payload.
type Reference struct {
	Task string // Referenced task identifier
	Path string // Dot-separated field path into the task's raw result, may be empty
	Raw  string // The full placeholder as written, e.g. "{{find_talk.results.0.slug}}"
}

var referencePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_-]*)((?:\.[a-zA-Z0-9_-]+)*)\s*\}\}`)

// ParseReferences extracts all task references from an instruction template.
func ParseReferences(instruction string) []Reference {
	matches := referencePattern.FindAllStringSubmatch(instruction, -1)
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Reference{
			Task: m[1],
			Path: strings.TrimPrefix(m[2], "."),
			Raw:  m[0],
		})
	}
	return refs
}
