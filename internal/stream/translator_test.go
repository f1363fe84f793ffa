package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

func TestTranslateRoleOnFirstFrameOnly(t *testing.T) {
	tr := NewTranslator("chatcmpl-1", "google/gemini-3-flash")

	first := tr.Translate(llm.Event{Type: llm.EventTextDelta, Text: "hel"})
	require.NotNil(t, first)
	assert.Equal(t, "chat.completion.chunk", first.Object)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Equal(t, "hel", first.Choices[0].Delta.Content)

	second := tr.Translate(llm.Event{Type: llm.EventTextDelta, Text: "lo"})
	assert.Empty(t, second.Choices[0].Delta.Role)
}

func TestTranslateReasoningDelta(t *testing.T) {
	tr := NewTranslator("chatcmpl-1", "m")

	chunk := tr.Translate(llm.Event{Type: llm.EventReasoningDelta, Text: "hmm"})
	assert.Equal(t, "hmm", chunk.Choices[0].Delta.ReasoningContent)
	assert.Equal(t, "assistant", chunk.Choices[0].Delta.Role)
}

func TestTranslateToolCallIndicesAreMonotone(t *testing.T) {
	tr := NewTranslator("chatcmpl-1", "m")

	for want := 0; want < 3; want++ {
		chunk := tr.Translate(llm.Event{Type: llm.EventToolCall, ToolCall: &llm.ToolCallData{
			ID:        "call_x",
			Name:      "lookup",
			Arguments: "{}",
			Metadata:  map[string]interface{}{"thought_signature": "sig"},
		}})
		require.Len(t, chunk.Choices[0].Delta.ToolCalls, 1)
		call := chunk.Choices[0].Delta.ToolCalls[0]
		require.NotNil(t, call.Index)
		assert.Equal(t, want, *call.Index)
		assert.Equal(t, "sig", call.ExtraContent["thought_signature"])
	}
}

func TestTranslateFinishCarriesUsage(t *testing.T) {
	tr := NewTranslator("chatcmpl-1", "m")

	chunk := tr.Translate(llm.Event{
		Type:         llm.EventFinish,
		FinishReason: "end-turn",
		Usage:        &llm.Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
	})
	assert.Equal(t, "end_turn", chunk.Choices[0].FinishReason)
	require.NotNil(t, chunk.Usage)
	assert.Equal(t, 12, chunk.Usage.TotalTokens)
	assert.Nil(t, chunk.Usage.CompletionTokensDetails)
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := map[string]string{
		"stop":       "stop",
		"":           "stop",
		"error":      "stop",
		"other":      "stop",
		"unknown":    "stop",
		"end-turn":   "end_turn",
		"tool_calls": "tool_calls",
		"length":     "length",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeFinishReason(in), "reason %q", in)
	}
}

func TestWireUsageDetails(t *testing.T) {
	out := WireUsage(llm.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3, ReasoningTokens: 9, CachedTokens: 4})
	require.NotNil(t, out.CompletionTokensDetails)
	assert.Equal(t, 9, out.CompletionTokensDetails.ReasoningTokens)
	require.NotNil(t, out.PromptTokensDetails)
	assert.Equal(t, 4, out.PromptTokensDetails.CachedTokens)
}

func TestTranslateErrorKeepsClientStatus(t *testing.T) {
	tr := NewTranslator("chatcmpl-1", "m")

	chunk := tr.Translate(llm.Event{
		Type:   llm.EventError,
		Err:    openai.UpstreamError(429, "rate limited", errors.New("429")),
		Status: 429,
	})
	require.NotNil(t, chunk.Error)
	assert.Equal(t, openai.TypeInvalidRequest, chunk.Error.Type)
	assert.Equal(t, "rate limited", chunk.Error.Message)
}

func TestTranslateErrorMasksServerFailures(t *testing.T) {
	tr := NewTranslator("chatcmpl-1", "m")

	chunk := tr.Translate(llm.Event{
		Type:   llm.EventError,
		Err:    openai.InvalidRequestError("leaky upstream detail"),
		Status: 502,
	})
	require.NotNil(t, chunk.Error)
	assert.Equal(t, openai.TypeServer, chunk.Error.Type)
}

func TestWriteTerminatesAfterError(t *testing.T) {
	events := make(chan llm.Event, 4)
	events <- llm.Event{Type: llm.EventTextDelta, Text: "partial"}
	events <- llm.Event{Type: llm.EventError, Err: errors.New("boom")}
	events <- llm.Event{Type: llm.EventTextDelta, Text: "never sent"}
	close(events)

	var buf bytes.Buffer
	Write(&buf, events, NewTranslator("chatcmpl-1", "m"))

	out := buf.String()
	frames := strings.Split(strings.TrimSpace(out), "\n\n")
	require.Len(t, frames, 3)
	assert.Equal(t, "data: [DONE]", frames[2])
	assert.NotContains(t, out, "never sent")

	var errChunk openai.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &errChunk))
	require.NotNil(t, errChunk.Error)
}

func TestWriteAlwaysEmitsDone(t *testing.T) {
	events := make(chan llm.Event)
	close(events)

	var buf bytes.Buffer
	Write(&buf, events, NewTranslator("chatcmpl-1", "m"))
	assert.Equal(t, "data: [DONE]\n\n", buf.String())
}
