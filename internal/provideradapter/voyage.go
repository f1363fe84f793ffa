package provideradapter

import (
	"context"
	"net/http"

	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/httpclient"
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

const voyageDefaultBaseURL = "https://api.voyageai.com/v1"

var voyageModels = map[string]string{
	"voyage/voyage-3-large": "voyage-3-large",
}

// voyage only serves the embedding modality. The chat surface exists to
// satisfy the adapter contract and rejects cleanly; modality checks in the
// pipeline prevent it from being reached.
type voyage struct {
	client  httpclient.HTTPClient
	baseURL string
	headers map[string]string
	modelID string
}

type voyageResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func newVoyage(_ context.Context, f *Factory, creds configstore.ProviderConfig, modelType string) (Adapter, error) {
	modelID, err := vendorModelID("voyage", modelType)
	if err != nil {
		return nil, err
	}
	if creds.APIKey == "" {
		return nil, openai.ServerError("voyage credentials missing api key", nil)
	}

	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = voyageDefaultBaseURL
	}

	return &voyage{
		client:  f.client,
		baseURL: baseURL,
		headers: map[string]string{"Authorization": "Bearer " + creds.APIKey},
		modelID: modelID,
	}, nil
}

func (v *voyage) Slug() string    { return "voyage" }
func (v *voyage) ModelID() string { return v.modelID }

func (v *voyage) TransformOptions(opts *llm.CallOptions) {}

func (v *voyage) TransformPrompt(msgs []llm.Message) []llm.Message { return msgs }

func (v *voyage) Complete(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (*llm.Result, error) {
	return nil, openai.InvalidRequestError("model does not support chat completions")
}

func (v *voyage) Stream(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (<-chan llm.Event, error) {
	return nil, openai.InvalidRequestError("model does not support chat completions")
}

func (v *voyage) Embed(ctx context.Context, inputs []string) (*llm.EmbeddingResult, error) {
	payload := map[string]interface{}{
		"model": v.modelID,
		"input": inputs,
	}

	var resp voyageResponse
	if err := httpclient.SendRequest(ctx, v.client, http.MethodPost, v.baseURL+"/embeddings", v.headers, payload, &resp); err != nil {
		return nil, mapUpstream(err)
	}

	vectors := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}
	return &llm.EmbeddingResult{
		Vectors: vectors,
		Usage: llm.Usage{
			PromptTokens: resp.Usage.TotalTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
