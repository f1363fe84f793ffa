package provideradapter

import (
	"context"

	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

const groqDefaultBaseURL = "https://api.groq.com/openai/v1"

var groqModels = map[string]string{
	"openai/gpt-oss-120b": "openai/gpt-oss-120b",
}

// groq speaks the OpenAI chat-completions protocol natively, so the adapter
// is a thin shell over the shared compat machinery.
type groq struct {
	compat  compatChat
	modelID string
}

func newGroq(_ context.Context, f *Factory, creds configstore.ProviderConfig, modelType string) (Adapter, error) {
	modelID, err := vendorModelID("groq", modelType)
	if err != nil {
		return nil, err
	}
	if creds.APIKey == "" {
		return nil, openai.ServerError("groq credentials missing api key", nil)
	}

	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = groqDefaultBaseURL
	}

	return &groq{
		compat: compatChat{
			client:  f.client,
			baseURL: baseURL,
			headers: map[string]string{"Authorization": "Bearer " + creds.APIKey},
		},
		modelID: modelID,
	}, nil
}

func (g *groq) Slug() string    { return "groq" }
func (g *groq) ModelID() string { return g.modelID }

// TransformOptions lowers the generic reasoning bag to groq's top-level
// reasoning_effort field.
func (g *groq) TransformOptions(opts *llm.CallOptions) {
	reasoning, ok := opts.ReasoningOption()
	if !ok {
		return
	}
	delete(opts.ProviderOptions, "reasoning")

	if effort, ok := reasoning["effort"].(string); ok && effort != "" {
		opts.SetProviderOption("groq", map[string]interface{}{
			"reasoning_effort": effort,
		})
	}
}

func (g *groq) TransformPrompt(msgs []llm.Message) []llm.Message {
	return msgs
}

func (g *groq) Complete(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (*llm.Result, error) {
	return g.compat.complete(ctx, g.payload(msgs, opts, false))
}

func (g *groq) Stream(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (<-chan llm.Event, error) {
	return g.compat.stream(ctx, g.payload(msgs, opts, true))
}

func (g *groq) payload(msgs []llm.Message, opts *llm.CallOptions, stream bool) map[string]interface{} {
	payload := g.compat.buildPayload(g.modelID, msgs, opts, stream)
	if vendor, ok := opts.ProviderOptions["groq"].(map[string]interface{}); ok {
		for k, v := range vendor {
			payload[k] = v
		}
	}
	return payload
}
