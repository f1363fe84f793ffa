package modeladapter

import (
	"fmt"

	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// The four reasoning conventions upstream model lines use. Each family is
// one transform parameterized by a small per-model table rather than a
// subclass hierarchy.

// effortOnly models expose a qualitative effort enum and nothing else.
// Token budgets and thought exclusion have no control surface, so both are
// rejected rather than silently dropped.
func effortOnly() ReasoningTransform {
	return func(r *openai.Reasoning, opts *llm.CallOptions) error {
		if r.MaxTokens > 0 {
			return openai.InvalidParamError(
				"reasoning.max_tokens is not supported by this model", "reasoning.max_tokens")
		}
		if r.Exclude != nil {
			return openai.InvalidParamError(
				"reasoning.exclude is not supported by this model", "reasoning.exclude")
		}
		if reasoningDisabled(r) {
			return nil
		}

		effort := r.Effort
		if effort == "" {
			effort = "medium"
		}
		opts.SetProviderOption("reasoning", map[string]interface{}{
			"effort": effort,
		})
		return nil
	}
}

// effortBudgetPercent is the documented effort→share-of-ceiling table for
// budget-based models.
var effortBudgetPercent = map[string]float64{
	"minimal": 0.10,
	"low":     0.20,
	"medium":  0.50,
	"high":    0.80,
	"xhigh":   0.95,
}

const minBudgetTokens = 1024

// budgetBased models take an explicit thinking-token budget. Effort maps to
// a share of the model's fixed ceiling; an explicit max_tokens overrides the
// share; the result is floored at 1024 tokens.
func budgetBased(ceiling int) ReasoningTransform {
	return func(r *openai.Reasoning, opts *llm.CallOptions) error {
		if reasoningDisabled(r) {
			return nil
		}

		effort := r.Effort
		if effort == "" {
			effort = "medium"
		}

		budget := r.MaxTokens
		if budget <= 0 {
			budget = int(float64(ceiling) * effortBudgetPercent[effort])
		}
		if budget < minBudgetTokens {
			budget = minBudgetTokens
		}

		cfg := map[string]interface{}{"budgetTokens": budget}
		if r.Exclude != nil {
			cfg["excludeThoughts"] = *r.Exclude
		}
		opts.SetProviderOption("reasoning", cfg)
		return nil
	}
}

var levelOrder = map[string]int{
	"minimal": 0,
	"low":     1,
	"medium":  2,
	"high":    3,
}

// levelBased models expose a small thinking-level enum. Each variant
// declares its own default and ceiling; efforts above the ceiling clamp
// down (xhigh is always above it). Budgets are not a control surface.
func levelBased(defaultLevel, maxLevel string) ReasoningTransform {
	return func(r *openai.Reasoning, opts *llm.CallOptions) error {
		if r.MaxTokens > 0 {
			return openai.InvalidParamError(
				"reasoning.max_tokens is not supported by this model", "reasoning.max_tokens")
		}
		if reasoningDisabled(r) {
			return nil
		}

		level := r.Effort
		if level == "" {
			level = defaultLevel
		}
		if level == "xhigh" {
			level = maxLevel
		}
		if levelOrder[level] > levelOrder[maxLevel] {
			level = maxLevel
		}

		cfg := map[string]interface{}{"level": level}
		if r.Exclude != nil {
			cfg["excludeThoughts"] = *r.Exclude
		}
		opts.SetProviderOption("reasoning", cfg)
		return nil
	}
}

// effortThinkingBudget is the fixed effort→token table for the older
// thinking-budget convention.
var effortThinkingBudget = map[string]int{
	"minimal": 1024,
	"low":     1024,
	"medium":  8192,
	"high":    24576,
	"xhigh":   24576,
}

// thinkingBudget models take a fixed token budget per effort tier;
// max_tokens overrides it directly and exclude toggles thought visibility
// independent of the budget.
func thinkingBudget() ReasoningTransform {
	return func(r *openai.Reasoning, opts *llm.CallOptions) error {
		if reasoningDisabled(r) {
			return nil
		}

		effort := r.Effort
		if effort == "" {
			effort = "medium"
		}

		budget := r.MaxTokens
		if budget <= 0 {
			budget = effortThinkingBudget[effort]
		}

		include := true
		if r.Exclude != nil {
			include = !*r.Exclude
		}
		opts.SetProviderOption("reasoning", map[string]interface{}{
			"thinkingBudget":  budget,
			"includeThoughts": include,
		})
		return nil
	}
}

// rejectReasoning is used by non-chat modalities.
func rejectReasoning(modality llm.Modality) ReasoningTransform {
	return func(r *openai.Reasoning, opts *llm.CallOptions) error {
		return openai.InvalidRequestError(
			fmt.Sprintf("reasoning is not supported for %s models", modality))
	}
}

// reinsertReasoningBeforeToolCalls re-creates the hidden-reasoning block a
// continuation turn requires: when an assistant message carries a stored
// thought signature and a tool call but no reasoning part ahead of it, a
// reasoning part derived from the signature is inserted immediately before
// the first tool call. Applied per message.
func reinsertReasoningBeforeToolCalls(msgs []llm.Message) []llm.Message {
	for i, m := range msgs {
		if m.Role != llm.RoleAssistant {
			continue
		}
		idx := m.FirstToolCallIndex()
		if idx < 0 {
			continue
		}

		already := false
		for _, p := range m.Parts[:idx] {
			if p.Type == llm.PartReasoning {
				already = true
				break
			}
		}
		if already {
			continue
		}

		sig := signatureFor(m, idx)
		if sig == "" {
			continue
		}

		parts := make([]llm.Part, 0, len(m.Parts)+1)
		parts = append(parts, m.Parts[:idx]...)
		parts = append(parts, llm.Part{Type: llm.PartReasoning, Signature: sig})
		parts = append(parts, m.Parts[idx:]...)
		msgs[i].Parts = parts
	}
	return msgs
}

func signatureFor(m llm.Message, firstToolCall int) string {
	if sig, ok := m.ProviderOptions["reasoning_signature"].(string); ok && sig != "" {
		return sig
	}
	if sig, ok := m.Parts[firstToolCall].ProviderOptions["reasoning_signature"].(string); ok {
		return sig
	}
	return ""
}
