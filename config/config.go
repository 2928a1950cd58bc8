// Package config loads the declarative crew definition: agents, tasks, tool
// bindings and model parameters. Loading is side-effect free; the returned
// specs are validated for internal consistency (unique identifiers, known
// cross-references, acyclic task prerequisites) and immutable thereafter.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/crewmesh/core"
)

// ModelSpec describes the reasoning backend and its parameters.
type ModelSpec struct {
	Provider    string  `yaml:"provider"` // "openai" or "anthropic"
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// AgentSpec declares a reasoning agent: its persona and the subset of
// registered tools it is authorized to invoke. Immutable once loaded.
type AgentSpec struct {
	ID        string     `yaml:"id"`
	Role      string     `yaml:"role"`
	Goal      string     `yaml:"goal"`
	Backstory string     `yaml:"backstory"`
	Tools     []string   `yaml:"tools"`
	Model     *ModelSpec `yaml:"model"` // Optional per-agent override
}

// TaskSpec declares one unit of work: the responsible agent, an instruction
// template that may reference prior task results, and prerequisite tasks.
type TaskSpec struct {
	ID             string   `yaml:"id"`
	Agent          string   `yaml:"agent"`
	Instruction    string   `yaml:"instruction"`
	ExpectedOutput string   `yaml:"expected_output"`
	DependsOn      []string `yaml:"depends_on"`
	BestEffort     bool     `yaml:"best_effort"` // Failure stores a sentinel result instead of ending the run
	Output         bool     `yaml:"output"`      // Marks the terminal task; at most one may be flagged
}

// ToolSpec binds a tool name to its description and adapter configuration
// (data paths, result bounds, endpoint overrides).
type ToolSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Config      map[string]any `yaml:"config"`
}

// Config aggregates the full declarative crew definition.
type Config struct {
	Agents []AgentSpec `yaml:"agents"`
	Tasks  []TaskSpec  `yaml:"tasks"`
	Tools  []ToolSpec  `yaml:"tools"`
	Model  ModelSpec   `yaml:"model"`
}

// configFiles are the per-concern files read by Load, mirroring the split
// most deployments use. A file may carry any subset of top-level keys.
var configFiles = []string{"agents.yaml", "tasks.yaml", "tools.yaml", "model.yaml"}

// Load reads the crew definition from a directory containing agents.yaml,
// tasks.yaml, tools.yaml and model.yaml, then validates it. Missing files
// are treated as empty sections; validation decides whether the combination
// is usable.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	for _, name := range configFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := cfg.merge(data, name); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a combined YAML document holding any of the agents, tasks,
// tools and model sections, then validates it.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := cfg.merge(data, "config"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte, source string) error {
	var part Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&part); err != nil {
		if err == io.EOF { // empty file
			return nil
		}
		return core.NewConfigurationError(source, "malformed yaml: %v", err)
	}
	c.Agents = append(c.Agents, part.Agents...)
	c.Tasks = append(c.Tasks, part.Tasks...)
	c.Tools = append(c.Tools, part.Tools...)
	if part.Model != (ModelSpec{}) {
		c.Model = part.Model
	}
	return nil
}

// AgentByID returns the agent spec with the given identifier.
func (c *Config) AgentByID(id string) (AgentSpec, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentSpec{}, false
}

// TerminalTask returns the identifier of the task whose result is the run
// output: the task flagged `output: true`, or the empty string when no task
// is flagged (the orchestrator then uses the last task in plan order).
func (c *Config) TerminalTask() string {
	for _, t := range c.Tasks {
		if t.Output {
			return t.ID
		}
	}
	return ""
}

// ConfigString reads a string entry from a tool config block.
func (t ToolSpec) ConfigString(key string) string {
	if v, ok := t.Config[key].(string); ok {
		return v
	}
	return ""
}

// ConfigInt reads an integer entry from a tool config block. YAML decodes
// small integers as int.
func (t ToolSpec) ConfigInt(key string) int {
	switch v := t.Config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
