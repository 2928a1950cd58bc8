package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/crewmesh/core"
)

// OpenAIOptions configure the OpenAI embedding provider.
type OpenAIOptions struct {
	Model      string
	Dimensions int
}

// OpenAIProvider implements Provider using the OpenAI embeddings API.
type OpenAIProvider struct {
	client openai.Client
	opts   OpenAIOptions
}

// NewOpenAI creates an OpenAI embedding provider using the default client
// (API key from the environment).
func NewOpenAI(optFns ...func(o *OpenAIOptions)) *OpenAIProvider {
	client := openai.NewClient()
	return NewOpenAIFromClient(client, optFns...)
}

// NewOpenAIFromClient creates an OpenAI embedding provider from an existing client.
func NewOpenAIFromClient(client openai.Client, optFns ...func(o *OpenAIOptions)) *OpenAIProvider {
	opts := OpenAIOptions{
		Model:      string(openai.EmbeddingModelTextEmbedding3Small),
		Dimensions: 1536,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OpenAIProvider{client: client, opts: opts}
}

// Embed implements Provider. API failures are surfaced as transient so the
// caller's retry policy applies.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text must not be empty")
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(p.opts.Model),
	})
	if err != nil {
		return nil, core.NewToolTransientError("openai embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}

	data := resp.Data[0].Embedding
	vec := make([]float32, len(data))
	for i, v := range data {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions implements Provider.
func (p *OpenAIProvider) Dimensions() int { return p.opts.Dimensions }

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }
