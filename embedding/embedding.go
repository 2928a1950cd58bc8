// Package embedding abstracts text-to-vector generation behind a Provider
// interface so the vector index does not depend on a concrete backend.
package embedding

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed creates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of vectors produced by this provider.
	Dimensions() int

	// Name returns the provider name (e.g. "openai", "mock").
	Name() string
}
