package modeladapter

import (
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// ReasoningTransform maps the OpenAI-compatible reasoning hint into the
// generic reasoning entry of the call options, or rejects unsupported
// combinations.
type ReasoningTransform func(r *openai.Reasoning, opts *llm.CallOptions) error

// PromptTransform adjusts the internal prompt for a model family's
// continuation requirements. Identity when nil.
type PromptTransform func(msgs []llm.Message) []llm.Message

// Adapter bundles the vendor-agnostic behavior of one model type.
// Adapters are stateless and safe to share.
type Adapter struct {
	ID          string
	DisplayName string
	Modality    llm.Modality

	reasoning ReasoningTransform
	prompt    PromptTransform
}

// TransformOptions applies the family's reasoning rule. A nil hint leaves
// the options untouched.
func (a *Adapter) TransformOptions(r *openai.Reasoning, opts *llm.CallOptions) error {
	if r == nil || a.reasoning == nil {
		return nil
	}
	return a.reasoning(r, opts)
}

func (a *Adapter) TransformPrompt(msgs []llm.Message) []llm.Message {
	if a.prompt == nil {
		return msgs
	}
	return a.prompt(msgs)
}

// reasoningDisabled reports whether the hint switches reasoning off
// entirely, in which case no config is emitted at all.
func reasoningDisabled(r *openai.Reasoning) bool {
	if r.Effort == "none" {
		return true
	}
	return r.Enabled != nil && !*r.Enabled
}
