// Package vectorindex provides semantic similarity search over dataset
// records. The engine treats the index as an external capability exposing
// Query(text, k); how vectors are produced or persisted is the
// implementation's concern.
package vectorindex

import (
	"context"

	"github.com/hupe1980/crewmesh/dataset"
)

// Hit is one scored search result: the matching record, its original row
// position and the similarity score in [0, 1] for normalized vectors.
type Hit struct {
	Record dataset.Record
	Row    int
	Score  float64
}

// Index answers similarity queries over an embedded corpus. Results are
// ordered by non-increasing score; equal scores keep original row order.
type Index interface {
	Query(ctx context.Context, text string, k int) ([]Hit, error)
}
