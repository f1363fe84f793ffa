package provideradapter

import (
	"context"

	"github.com/aperture-ai/gateway/internal/llm"
)

// Adapter binds one vendor to one model type: it knows the vendor-native
// model id, holds an authenticated client, and owns the vendor-specific
// option/prompt/result transforms. Instances are immutable after
// construction except for lazily-memoized sub-resources, and are shared
// across concurrent requests.
type Adapter interface {
	Slug() string
	ModelID() string

	// TransformOptions re-shapes the generic option bag into vendor
	// casing under the adapter's provider key.
	TransformOptions(opts *llm.CallOptions)

	// TransformPrompt converts wire-convention metadata on the prompt
	// into the vendor's native convention.
	TransformPrompt(msgs []llm.Message) []llm.Message

	Complete(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (*llm.Result, error)
	Stream(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (<-chan llm.Event, error)
}

// Embedder is implemented by adapters whose model type is an embedding
// modality.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) (*llm.EmbeddingResult, error)
}
