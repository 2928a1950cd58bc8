package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
)

func validConfig() *Config {
	return &Config{
		Agents: []AgentSpec{
			{ID: "researcher", Role: "researcher", Goal: "find talks", Tools: []string{"talk_search"}},
			{ID: "scorer", Role: "scorer", Goal: "score impact"},
		},
		Tasks: []TaskSpec{
			{ID: "find_talk", Agent: "researcher", Instruction: "Find a talk."},
			{ID: "score_impact", Agent: "scorer", Instruction: "Score {{find_talk}}.", DependsOn: []string{"find_talk"}, Output: true},
		},
		Tools: []ToolSpec{
			{Name: "talk_search", Description: "search"},
		},
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
agents:
  - id: researcher
    role: researcher
    goal: find talks
    tools: [talk_search]
tasks:
  - id: find_talk
    agent: researcher
    instruction: Find a talk.
tools:
  - name: talk_search
    description: search
    config:
      data: talks.csv
      limit: 3
model:
  provider: openai
  name: gpt-4o-mini
  temperature: 0.2
`)

	cfg, err := Parse(data)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 0.2, cfg.Model.Temperature)

	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "talks.csv", cfg.Tools[0].ConfigString("data"))
	assert.Equal(t, 3, cfg.Tools[0].ConfigInt("limit"))
	assert.Zero(t, cfg.Tools[0].ConfigInt("missing"))
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("agents:\n  - id: a\n    persona: nope\n"))
	assert.Error(t, err)
}

func TestLoadMergesPerConcernFiles(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"agents.yaml": "agents:\n  - id: a\n    role: r\n    goal: g\n",
		"tasks.yaml":  "tasks:\n  - id: t\n    agent: a\n    instruction: x\n",
		"model.yaml":  "model:\n  provider: mock\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	// tools.yaml is absent; the section stays empty.
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Len(t, cfg.Agents, 1)
	assert.Len(t, cfg.Tasks, 1)
	assert.Empty(t, cfg.Tools)
	assert.Equal(t, "mock", cfg.Model.Provider)
	require.NoError(t, cfg.Validate())
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{
			name:   "duplicate agent id",
			mutate: func(c *Config) { c.Agents = append(c.Agents, AgentSpec{ID: "researcher", Role: "r", Goal: "g"}) },
			field:  "agents.researcher",
		},
		{
			name:   "empty role",
			mutate: func(c *Config) { c.Agents[0].Role = "" },
			field:  "agents.researcher.role",
		},
		{
			name:   "unknown tool",
			mutate: func(c *Config) { c.Agents[0].Tools = []string{"warp_drive"} },
			field:  "agents.researcher.tools",
		},
		{
			name:   "unknown agent",
			mutate: func(c *Config) { c.Tasks[0].Agent = "ghost" },
			field:  "tasks.find_talk.agent",
		},
		{
			name:   "self dependency",
			mutate: func(c *Config) { c.Tasks[0].DependsOn = []string{"find_talk"} },
			field:  "tasks.find_talk.depends_on",
		},
		{
			name:   "unknown dependency",
			mutate: func(c *Config) { c.Tasks[0].DependsOn = []string{"missing"} },
			field:  "tasks.find_talk.depends_on",
		},
		{
			name:   "reference without prerequisite",
			mutate: func(c *Config) { c.Tasks[1].DependsOn = nil },
			field:  "tasks.score_impact.instruction",
		},
		{
			name:   "second terminal task",
			mutate: func(c *Config) { c.Tasks[0].Output = true },
			field:  "tasks.score_impact.output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cerr *core.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestTopologicalOrderDeterministicTies(t *testing.T) {
	tasks := []TaskSpec{
		{ID: "c"},
		{ID: "a"},
		{ID: "b", DependsOn: []string{"c"}},
	}

	// Independent tasks keep declaration order.
	order, err := TopologicalOrder(tasks)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestTopologicalOrderCycle(t *testing.T) {
	tasks := []TaskSpec{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}

	_, err := TopologicalOrder(tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParseReferences(t *testing.T) {
	refs := ParseReferences("Use {{find_talk.results.0.slug}} and {{ align_goals }} here.")
	require.Len(t, refs, 2)

	assert.Equal(t, "find_talk", refs[0].Task)
	assert.Equal(t, "results.0.slug", refs[0].Path)
	assert.Equal(t, "{{find_talk.results.0.slug}}", refs[0].Raw)

	assert.Equal(t, "align_goals", refs[1].Task)
	assert.Empty(t, refs[1].Path)

	assert.Empty(t, ParseReferences("no references here"))
}

func TestTerminalTask(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "score_impact", cfg.TerminalTask())

	cfg.Tasks[1].Output = false
	assert.Empty(t, cfg.TerminalTask())
}
