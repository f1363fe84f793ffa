package provideradapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aperture-ai/gateway/internal/llm"
)

func testVertex(family, endpoint string) *vertex {
	return &vertex{
		client:   http.DefaultClient,
		tokens:   oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
		endpoint: endpoint,
		modelID:  "test-model",
		family:   family,
	}
}

func TestVertexTransformOptionsAnthropic(t *testing.T) {
	v := testVertex("anthropic", "")
	opts := &llm.CallOptions{}
	opts.SetProviderOption("reasoning", map[string]interface{}{
		"budgetTokens":    8192,
		"excludeThoughts": true,
	})

	v.TransformOptions(opts)

	assert.NotContains(t, opts.ProviderOptions, "reasoning")
	vendor := opts.ProviderOptions["vertex"].(map[string]interface{})
	thinking := vendor["thinking"].(map[string]interface{})
	assert.Equal(t, "enabled", thinking["type"])
	assert.Equal(t, 8192, thinking["budget_tokens"])
	assert.NotContains(t, thinking, "exclude_thoughts")
}

func TestVertexTransformOptionsGemini(t *testing.T) {
	v := testVertex("google", "")

	t.Run("level is uppercased", func(t *testing.T) {
		opts := &llm.CallOptions{}
		opts.SetProviderOption("reasoning", map[string]interface{}{
			"level":           "high",
			"includeThoughts": true,
		})
		v.TransformOptions(opts)

		vendor := opts.ProviderOptions["vertex"].(map[string]interface{})
		cfg := vendor["thinkingConfig"].(map[string]interface{})
		assert.Equal(t, "HIGH", cfg["thinkingLevel"])
		assert.Equal(t, true, cfg["includeThoughts"])
	})

	t.Run("exclude flips include", func(t *testing.T) {
		opts := &llm.CallOptions{}
		opts.SetProviderOption("reasoning", map[string]interface{}{
			"thinkingBudget":  2048,
			"excludeThoughts": true,
		})
		v.TransformOptions(opts)

		vendor := opts.ProviderOptions["vertex"].(map[string]interface{})
		cfg := vendor["thinkingConfig"].(map[string]interface{})
		assert.Equal(t, 2048, cfg["thinkingBudget"])
		assert.Equal(t, false, cfg["includeThoughts"])
	})
}

func TestVertexTransformPromptCamelizesGeminiOnly(t *testing.T) {
	msgs := []llm.Message{{
		Role:            llm.RoleAssistant,
		ProviderOptions: map[string]interface{}{"reasoning_signature": "sig"},
		Parts: []llm.Part{{
			Type:            llm.PartToolCall,
			ProviderOptions: map[string]interface{}{"thought_signature": "sig2"},
		}},
	}}

	out := testVertex("google", "").TransformPrompt(msgs)
	assert.Contains(t, out[0].ProviderOptions, "reasoningSignature")
	assert.Contains(t, out[0].Parts[0].ProviderOptions, "thoughtSignature")

	msgs2 := []llm.Message{{
		Role:            llm.RoleAssistant,
		ProviderOptions: map[string]interface{}{"reasoning_signature": "sig"},
	}}
	out2 := testVertex("anthropic", "").TransformPrompt(msgs2)
	assert.Contains(t, out2[0].ProviderOptions, "reasoning_signature")
}

func TestGeminiComplete(t *testing.T) {
	var captured map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/model:generateContent", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		fmt.Fprint(w, `{
			"candidates": [{
				"content": {"parts": [
					{"text": "let me check", "thought": true},
					{"text": "the answer is "},
					{"functionCall": {"name": "lookup", "args": {"q": 1}}, "thoughtSignature": "sig-1"}
				]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 4,
				"totalTokenCount": 15, "thoughtsTokenCount": 3}
		}`)
	}))
	defer ts.Close()

	v := testVertex("google", ts.URL+"/model")
	opts := &llm.CallOptions{MaxTokens: 100}
	opts.SetProviderOption("vertex", map[string]interface{}{
		"thinkingConfig": map[string]interface{}{"thinkingLevel": "HIGH"},
	})

	result, err := v.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Parts: []llm.Part{llm.TextPart("be brief")}},
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart("hi")}},
	}, opts)
	require.NoError(t, err)

	require.Contains(t, captured, "systemInstruction")
	generation := captured["generationConfig"].(map[string]interface{})
	assert.Equal(t, float64(100), generation["maxOutputTokens"])
	assert.Contains(t, generation, "thinkingConfig")

	assert.Equal(t, "let me check", result.Reasoning)
	assert.Equal(t, "the answer is ", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "call_0", result.ToolCalls[0].ID)
	assert.Equal(t, "sig-1", result.ToolCalls[0].Metadata["thought_signature"])
	assert.Equal(t, "tool_calls", result.FinishReason)
	assert.Equal(t, 7, result.Usage.CompletionTokens)
	assert.Equal(t, 3, result.Usage.ReasoningTokens)
}

func TestGeminiStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"candidates":[{"content":{"parts":[{"text":"pondering","thought":true}]}}]}`,
			`{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`,
			`{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}],"usageMetadata":{"promptTokenCount":2,"candidatesTokenCount":3,"totalTokenCount":5}}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
	}))
	defer ts.Close()

	v := testVertex("google", ts.URL+"/model")
	ch, err := v.Stream(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart("hi")}},
	}, &llm.CallOptions{})
	require.NoError(t, err)

	events := drainEvents(ch)
	require.Len(t, events, 3)
	assert.Equal(t, llm.EventReasoningDelta, events[0].Type)
	assert.Equal(t, llm.EventTextDelta, events[1].Type)
	assert.Equal(t, llm.EventFinish, events[2].Type)
	assert.Equal(t, "length", events[2].FinishReason)
	require.NotNil(t, events[2].Usage)
	assert.Equal(t, 5, events[2].Usage.TotalTokens)
}

func TestAnthropicPayloadShape(t *testing.T) {
	v := testVertex("anthropic", "")
	opts := &llm.CallOptions{}
	opts.SetProviderOption("vertex", map[string]interface{}{
		"thinking": map[string]interface{}{"type": "enabled", "budget_tokens": 1024},
	})

	payload := v.anthropicPayload([]llm.Message{
		{Role: llm.RoleSystem, Parts: []llm.Part{llm.TextPart("be brief")}},
		{Role: llm.RoleAssistant, Parts: []llm.Part{
			{Type: llm.PartReasoning, Text: "hmm", Signature: "sig-a"},
			{Type: llm.PartToolCall, ToolCallID: "call_1", ToolName: "lookup", Input: map[string]interface{}{"q": 1}},
		}},
		{Role: llm.RoleTool, Parts: []llm.Part{
			{Type: llm.PartToolResult, ToolCallID: "call_1", Output: "found"},
		}},
	}, opts, false)

	assert.Equal(t, "vertex-2023-10-16", payload["anthropic_version"])
	assert.NotContains(t, payload, "model")
	assert.Equal(t, anthropicDefaultMaxTokens, payload["max_tokens"])
	assert.Equal(t, "be brief", payload["system"])
	assert.Contains(t, payload, "thinking")

	messages := payload["messages"].([]map[string]interface{})
	require.Len(t, messages, 2)

	assistant := messages[0]["content"].([]map[string]interface{})
	require.Len(t, assistant, 2)
	assert.Equal(t, "thinking", assistant[0]["type"])
	assert.Equal(t, "sig-a", assistant[0]["signature"])
	assert.Equal(t, "tool_use", assistant[1]["type"])

	toolTurn := messages[1]
	assert.Equal(t, "user", toolTurn["role"])
	blocks := toolTurn["content"].([]map[string]interface{})
	assert.Equal(t, "tool_result", blocks[0]["type"])
	assert.Equal(t, "call_1", blocks[0]["tool_use_id"])
}

func TestAnthropicComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/model:rawPredict", r.URL.Path)
		fmt.Fprint(w, `{
			"content": [
				{"type": "thinking", "thinking": "let me see", "signature": "sig-b"},
				{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": {"q": 2}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 6, "output_tokens": 9}
		}`)
	}))
	defer ts.Close()

	v := testVertex("anthropic", ts.URL+"/model")
	result, err := v.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart("hi")}},
	}, &llm.CallOptions{})
	require.NoError(t, err)

	assert.Equal(t, "let me see", result.Reasoning)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "toolu_1", result.ToolCalls[0].ID)
	assert.Equal(t, "sig-b", result.ToolCalls[0].Metadata["reasoning_signature"])
	assert.Equal(t, "tool_calls", result.FinishReason)
	assert.Equal(t, 15, result.Usage.TotalTokens)
}

func TestAnthropicStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/model:streamRawPredict", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":7}}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"hmm"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"sig-c"}}`,
			`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_2","name":"lookup"}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"3}"}}`,
			`{"type":"content_block_stop","index":1}`,
			`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":11}}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
	}))
	defer ts.Close()

	v := testVertex("anthropic", ts.URL+"/model")
	ch, err := v.Stream(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart("hi")}},
	}, &llm.CallOptions{})
	require.NoError(t, err)

	events := drainEvents(ch)
	require.Len(t, events, 3)

	assert.Equal(t, llm.EventReasoningDelta, events[0].Type)

	assert.Equal(t, llm.EventToolCall, events[1].Type)
	assert.Equal(t, "toolu_2", events[1].ToolCall.ID)
	assert.Equal(t, `{"q":3}`, events[1].ToolCall.Arguments)
	assert.Equal(t, "sig-c", events[1].ToolCall.Metadata["reasoning_signature"])

	assert.Equal(t, llm.EventFinish, events[2].Type)
	assert.Equal(t, "tool_calls", events[2].FinishReason)
	require.NotNil(t, events[2].Usage)
	assert.Equal(t, 18, events[2].Usage.TotalTokens)
}

func TestFinishReasonMappings(t *testing.T) {
	assert.Equal(t, "stop", geminiFinishReason("STOP", false))
	assert.Equal(t, "length", geminiFinishReason("MAX_TOKENS", false))
	assert.Equal(t, "tool_calls", geminiFinishReason("STOP", true))
	assert.Equal(t, "safety", geminiFinishReason("SAFETY", false))

	assert.Equal(t, "stop", anthropicStopReason("end_turn"))
	assert.Equal(t, "stop", anthropicStopReason("stop_sequence"))
	assert.Equal(t, "length", anthropicStopReason("max_tokens"))
	assert.Equal(t, "tool_calls", anthropicStopReason("tool_use"))
}
