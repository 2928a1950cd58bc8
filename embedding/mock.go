package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockProvider is a deterministic in-process Provider for tests and
// examples. Each token is hashed into a fixed-size bag-of-words vector, so
// texts sharing vocabulary score high under cosine similarity without any
// external dependency.
type MockProvider struct {
	dims int
}

// NewMockProvider creates a MockProvider with the given dimensionality.
func NewMockProvider(dims int) *MockProvider {
	if dims <= 0 {
		dims = 64
	}
	return &MockProvider{dims: dims}
}

// Embed implements Provider; it never fails and ignores ctx.
func (p *MockProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?;:\"'()")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%p.dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dimensions implements Provider.
func (p *MockProvider) Dimensions() int { return p.dims }

// Name implements Provider.
func (p *MockProvider) Name() string { return "mock" }
