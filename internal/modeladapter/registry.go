package modeladapter

import (
	"fmt"

	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// Registry maps vendor-agnostic model types to adapter factories. It is
// constructed once at process start and never mutated afterwards.
type Registry struct {
	factories map[string]func() *Adapter
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]func() *Adapter{
		"openai/gpt-oss-120b": func() *Adapter {
			return &Adapter{
				ID:          "openai/gpt-oss-120b",
				DisplayName: "GPT-OSS 120B",
				Modality:    llm.ModalityChat,
				reasoning:   effortOnly(),
			}
		},
		"anthropic/claude-sonnet-4": func() *Adapter {
			return &Adapter{
				ID:          "anthropic/claude-sonnet-4",
				DisplayName: "Claude Sonnet 4",
				Modality:    llm.ModalityChat,
				reasoning:   budgetBased(64000),
				prompt:      reinsertReasoningBeforeToolCalls,
			}
		},
		"anthropic/claude-haiku-4": func() *Adapter {
			return &Adapter{
				ID:          "anthropic/claude-haiku-4",
				DisplayName: "Claude Haiku 4",
				Modality:    llm.ModalityChat,
				reasoning:   budgetBased(32000),
				prompt:      reinsertReasoningBeforeToolCalls,
			}
		},
		"google/gemini-3-pro": func() *Adapter {
			return &Adapter{
				ID:          "google/gemini-3-pro",
				DisplayName: "Gemini 3 Pro",
				Modality:    llm.ModalityChat,
				reasoning:   levelBased("medium", "high"),
			}
		},
		"google/gemini-3-flash": func() *Adapter {
			return &Adapter{
				ID:          "google/gemini-3-flash",
				DisplayName: "Gemini 3 Flash",
				Modality:    llm.ModalityChat,
				reasoning:   levelBased("low", "high"),
			}
		},
		"google/gemini-2.5-flash": func() *Adapter {
			return &Adapter{
				ID:          "google/gemini-2.5-flash",
				DisplayName: "Gemini 2.5 Flash",
				Modality:    llm.ModalityChat,
				reasoning:   thinkingBudget(),
			}
		},
		"voyage/voyage-3-large": func() *Adapter {
			return &Adapter{
				ID:          "voyage/voyage-3-large",
				DisplayName: "Voyage 3 Large",
				Modality:    llm.ModalityEmbedding,
				reasoning:   rejectReasoning(llm.ModalityEmbedding),
			}
		},
	}}
}

// GetAdapter returns the adapter for a model type, or an invalid-request
// error when the type is unknown.
func (r *Registry) GetAdapter(modelType string) (*Adapter, error) {
	factory, ok := r.factories[modelType]
	if !ok {
		return nil, openai.InvalidParamError(
			fmt.Sprintf("unsupported model type %q", modelType), "model")
	}
	return factory(), nil
}

// Types lists the registered model types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	return out
}
