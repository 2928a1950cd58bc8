package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchArgs struct {
	Query  string   `json:"query" description:"Free-text search query"`
	Limit  int      `json:"limit,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Score  float64  `json:"score"`
	Strict *bool    `json:"strict"`
	hidden string   `json:"hidden"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(searchArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, 5)

	query, ok := props["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Free-text search query", query["description"])

	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
	assert.Equal(t, "number", props["score"].(map[string]any)["type"])

	// omitempty and pointer fields are optional, the rest required.
	assert.ElementsMatch(t, []string{"query", "score"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(searchArgs{})

	err := ValidateParameters(map[string]any{"query": "talks", "score": 0.5}, schema)
	assert.NoError(t, err)

	// Missing required field.
	err = ValidateParameters(map[string]any{"query": "talks"}, schema)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "score", verr.Field)

	// Kind mismatch.
	err = ValidateParameters(map[string]any{"query": 42, "score": 0.5}, schema)
	require.Error(t, err)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	// Fields outside the schema pass through.
	err = ValidateParameters(map[string]any{"query": "q", "score": 1.0, "extra": true}, schema)
	assert.NoError(t, err)
}

func TestValidateParametersDecodedJSONRequired(t *testing.T) {
	// Schemas decoded from JSON carry required as []any.
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"slug": map[string]any{"type": "string"},
		},
		"required": []any{"slug"},
	}

	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"slug": "x"}, schema))
}
