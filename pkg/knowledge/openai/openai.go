package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder implements knowledge.Embedder using OpenAI.
type Embedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
}

// NewEmbedder creates a new OpenAI Embedder.
func NewEmbedder(opts ...option.RequestOption) *Embedder {
	client := openai.NewClient(opts...)
	return &Embedder{
		client: &client,
		model:  openai.EmbeddingModelTextEmbedding3Small,
	}
}

// NewFromKey builds an Embedder for apiKey, or a configuration error when it is empty.
func NewFromKey(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, errs.New(errs.KindConfiguration, "embeddings", "embedding API key is missing: set EMBEDDING_API_KEY or OPENAI_API_KEY")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	e := NewEmbedder(opts...)
	if model != "" {
		e.model = openai.EmbeddingModel(model)
	}
	e.timeout = timeout
	return e, nil
}

// Embed generates embeddings for the given texts.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: e.model,
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			ue := errs.Upstream("embeddings", apiErr.StatusCode, err.Error())
			ue.Err = err
			return nil, ue
		}
		return nil, errs.Wrap(errs.KindUpstreamAPI, "embeddings", fmt.Errorf("failed to generate embeddings: %w", err))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		// Convert []float64 to []float32
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}

	return embeddings, nil
}
