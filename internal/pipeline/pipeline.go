package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/internal/logger"
	"github.com/aperture-ai/gateway/internal/modeladapter"
	"github.com/aperture-ai/gateway/internal/provideradapter"
	"github.com/aperture-ai/gateway/internal/resolver"
	"github.com/aperture-ai/gateway/internal/stream"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// Pipeline orchestrates one inference request: resolve the alias, pick the
// model and provider adapters, convert the prompt, compose options through
// both transform chains, and invoke. Each request is independent; the
// pipeline holds no per-request state.
type Pipeline struct {
	resolver *resolver.Resolver
	models   *modeladapter.Registry
	factory  *provideradapter.Factory
}

func New(r *resolver.Resolver, models *modeladapter.Registry, factory *provideradapter.Factory) *Pipeline {
	return &Pipeline{resolver: r, models: models, factory: factory}
}

// prepared is the common outcome of the resolution and transform chain,
// shared by the streaming and blocking paths.
type prepared struct {
	provider provideradapter.Adapter
	messages []llm.Message
	opts     *llm.CallOptions
}

func (p *Pipeline) prepare(ctx context.Context, req *openai.ChatRequest) (*prepared, error) {
	res, err := p.resolver.Resolve(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	model, err := p.models.GetAdapter(res.Type)
	if err != nil {
		return nil, err
	}
	if model.Modality != llm.ModalityChat {
		return nil, openai.InvalidParamError(
			fmt.Sprintf("model %q does not support chat completions", req.Model), "model")
	}

	provider, err := p.selectProvider(ctx, res)
	if err != nil {
		return nil, err
	}

	messages, err := llm.FromOpenAI(req.Messages)
	if err != nil {
		return nil, openai.InvalidRequestError("messages could not be parsed: " + err.Error())
	}

	opts := buildOptions(req)
	if err := model.TransformOptions(composeReasoning(req), opts); err != nil {
		return nil, err
	}
	provider.TransformOptions(opts)

	messages = model.TransformPrompt(messages)
	messages = provider.TransformPrompt(messages)

	logger.Debug("Request prepared",
		zap.String("model_type", res.Type),
		zap.String("provider", provider.Slug()),
		zap.String("vendor_model", provider.ModelID()),
	)
	return &prepared{provider: provider, messages: messages, opts: opts}, nil
}

func (p *Pipeline) selectProvider(ctx context.Context, res *resolver.Resolution) (provideradapter.Adapter, error) {
	if slug := res.CustomProvider(); slug != "" {
		return p.factory.CreateCustom(ctx, res.Type, slug)
	}
	return p.factory.CreateDefault(ctx, res.Type)
}

// Complete runs a blocking chat completion and assembles the full response
// envelope.
func (p *Pipeline) Complete(ctx context.Context, req *openai.ChatRequest) (*openai.ChatResponse, error) {
	prep, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := prep.provider.Complete(ctx, prep.messages, prep.opts)
	if err != nil {
		return nil, err
	}

	message := &openai.ResponseMessage{
		Role:             "assistant",
		Content:          result.Text,
		ReasoningContent: result.Reasoning,
	}
	for _, tc := range result.ToolCalls {
		call := openai.ResponseToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		}
		if len(tc.Metadata) > 0 {
			call.ExtraContent = tc.Metadata
		}
		message.ToolCalls = append(message.ToolCalls, call)
	}

	finishReason := result.FinishReason
	if len(result.ToolCalls) > 0 && finishReason == "" {
		finishReason = "tool_calls"
	}

	return &openai.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []openai.Choice{{
			Message:      message,
			FinishReason: stream.NormalizeFinishReason(finishReason),
		}},
		Usage: stream.WireUsage(result.Usage),
	}, nil
}

// Stream starts a streaming completion. The returned translator is primed
// with the response identity; the caller drains events through it.
func (p *Pipeline) Stream(ctx context.Context, req *openai.ChatRequest) (<-chan llm.Event, *stream.Translator, error) {
	prep, err := p.prepare(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	events, err := prep.provider.Stream(ctx, prep.messages, prep.opts)
	if err != nil {
		return nil, nil, err
	}

	return events, stream.NewTranslator("chatcmpl-"+uuid.NewString(), req.Model), nil
}

// Embed runs the embedding pipeline: same resolution, inverted modality
// check, and an adapter that must implement the embedding surface.
func (p *Pipeline) Embed(ctx context.Context, req *openai.EmbeddingsRequest) (*openai.EmbeddingsResponse, error) {
	res, err := p.resolver.Resolve(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	model, err := p.models.GetAdapter(res.Type)
	if err != nil {
		return nil, err
	}
	if model.Modality != llm.ModalityEmbedding {
		return nil, openai.InvalidParamError(
			fmt.Sprintf("model %q does not support embeddings", req.Model), "model")
	}

	provider, err := p.selectProvider(ctx, res)
	if err != nil {
		return nil, err
	}
	embedder, ok := provider.(provideradapter.Embedder)
	if !ok {
		return nil, openai.ServerError(
			fmt.Sprintf("provider %s has no embedding surface", provider.Slug()), nil)
	}

	result, err := embedder.Embed(ctx, req.Input.Val)
	if err != nil {
		return nil, err
	}

	resp := &openai.EmbeddingsResponse{
		Object: "list",
		Model:  req.Model,
		Usage:  stream.WireUsage(result.Usage),
	}
	for i, vec := range result.Vectors {
		resp.Data = append(resp.Data, openai.Embedding{
			Object:    "embedding",
			Index:     i,
			Embedding: vec,
		})
	}
	return resp, nil
}

// buildOptions copies request-level sampling settings into call options.
func buildOptions(req *openai.ChatRequest) *llm.CallOptions {
	opts := &llm.CallOptions{MaxTokens: req.MaxTokens}
	if req.Temperature != 0 {
		t := req.Temperature
		opts.Temperature = &t
	}
	if req.TopP != 0 {
		tp := req.TopP
		opts.TopP = &tp
	}
	if req.Stop != nil {
		opts.Stop = req.Stop.Val
	}
	for _, t := range req.Tools {
		opts.Tools = append(opts.Tools, llm.ToolSpec{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	opts.ToolChoice = req.ToolChoice
	return opts
}

// composeReasoning merges the two reasoning surfaces. The structured form
// wins outright; the bare effort string is a shorthand for it.
func composeReasoning(req *openai.ChatRequest) *openai.Reasoning {
	if req.Reasoning != nil {
		return req.Reasoning
	}
	if req.ReasoningEffort != "" {
		return &openai.Reasoning{Effort: req.ReasoningEffort}
	}
	return nil
}
