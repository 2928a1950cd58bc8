package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hupe1980/crewmesh/dataset"
	"github.com/hupe1980/crewmesh/embedding"
)

// InMemory is a brute-force cosine index over the rows of a dataset table.
// All row vectors are computed once at construction; Query embeds only the
// query text. Read-only after construction and safe for concurrent use.
type InMemory struct {
	provider embedding.Provider
	table    *dataset.Table
	columns  []string
	vectors  [][]float32
}

// NewInMemory builds an index over table, embedding the concatenation of the
// given columns per row. Construction performs one provider call per row.
func NewInMemory(ctx context.Context, provider embedding.Provider, table *dataset.Table, columns ...string) (*InMemory, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("at least one text column is required")
	}

	ix := &InMemory{
		provider: provider,
		table:    table,
		columns:  columns,
		vectors:  make([][]float32, table.Len()),
	}

	for i := 0; i < table.Len(); i++ {
		vec, err := provider.Embed(ctx, ix.rowText(table.Row(i)))
		if err != nil {
			return nil, fmt.Errorf("embed row %d: %w", i, err)
		}
		ix.vectors[i] = normalize(vec)
	}

	return ix, nil
}

func (ix *InMemory) rowText(rec dataset.Record) string {
	parts := make([]string, 0, len(ix.columns))
	for _, col := range ix.columns {
		if v := rec[col]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Query implements Index. k larger than the corpus returns every row.
func (ix *InMemory) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	qv, err := ix.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	qv = normalize(qv)

	hits := make([]Hit, 0, ix.table.Len())
	for i, vec := range ix.vectors {
		hits = append(hits, Hit{
			Record: ix.table.Row(i),
			Row:    i,
			Score:  dot(qv, vec),
		})
	}

	// Stable sort keeps original row order for equal scores.
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
