package retrieval

import (
	"context"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/dataset"
	"github.com/hupe1980/crewmesh/tool"
)

// IndicatorInput is the argument schema for the indicator_lookup tool.
type IndicatorInput struct {
	Code string `json:"code" description:"SDG indicator code, e.g. 13-1-1"`
}

// IndicatorOutput describes a single SDG indicator record.
type IndicatorOutput struct {
	Code        string            `json:"code"`
	Goal        string            `json:"goal"`
	Target      string            `json:"target,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Values      map[string]string `json:"values,omitempty"`
}

// indicatorColumns are lifted into named output fields; everything else in
// the record lands in Values.
var indicatorColumns = map[string]bool{
	"code":        true,
	"goal":        true,
	"target":      true,
	"title":       true,
	"description": true,
}

// NewIndicatorTool builds the indicator_lookup descriptor over a table keyed
// by indicator code. An unknown code is a NotFoundError, not a transient
// failure.
func NewIndicatorTool(table *dataset.Table) tool.Descriptor {
	return tool.Descriptor{
		Name:         "indicator_lookup",
		Description:  "Look up an SDG indicator by its code and return goal, title and associated metadata",
		InputSchema:  tool.SchemaFor(IndicatorInput{}),
		OutputSchema: tool.SchemaFor(IndicatorOutput{}),
		Capability: func(_ context.Context, args map[string]any) (any, error) {
			code, _ := args["code"].(string)

			rec, ok := table.Lookup(code)
			if !ok {
				return nil, core.NewNotFoundError("indicator", code)
			}

			out := IndicatorOutput{
				Code:        rec["code"],
				Goal:        rec["goal"],
				Target:      rec["target"],
				Title:       rec["title"],
				Description: rec["description"],
			}

			for col, val := range rec {
				if indicatorColumns[col] || val == "" {
					continue
				}
				if out.Values == nil {
					out.Values = map[string]string{}
				}
				out.Values[col] = val
			}

			return out, nil
		},
	}
}
