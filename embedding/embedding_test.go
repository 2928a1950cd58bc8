package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestMockProviderDeterministic(t *testing.T) {
	p := NewMockProvider(64)
	assert.Equal(t, 64, p.Dimensions())

	a, err := p.Embed(context.Background(), "warming oceans")
	require.NoError(t, err)
	require.Len(t, a, 64)

	b, err := p.Embed(context.Background(), "warming oceans")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMockProviderNormalized(t *testing.T) {
	p := NewMockProvider(32)

	v, err := p.Embed(context.Background(), "climate tipping points")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestMockProviderSimilarity(t *testing.T) {
	p := NewMockProvider(64)

	ocean1, err := p.Embed(context.Background(), "warming oceans and ecosystems")
	require.NoError(t, err)
	ocean2, err := p.Embed(context.Background(), "plastic in warming oceans")
	require.NoError(t, err)
	other, err := p.Embed(context.Background(), "machine learning in classrooms")
	require.NoError(t, err)

	// Shared vocabulary scores higher than disjoint vocabulary.
	assert.Greater(t, cosine(ocean1, ocean2), cosine(ocean1, other))
}
