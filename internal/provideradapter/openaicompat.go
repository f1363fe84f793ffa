package provideradapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/aperture-ai/gateway/internal/httpclient"
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// Shared machinery for vendors speaking the OpenAI chat-completions protocol
// (groq, bedrock's compatibility endpoint). Adapters own their base URL,
// auth headers and option shaping; the request/response plumbing is common.

type compatChat struct {
	client  httpclient.HTTPClient
	baseURL string
	headers map[string]string
}

type compatMessage map[string]interface{}

type compatResponse struct {
	Choices []struct {
		Message struct {
			Content          string            `json:"content"`
			ReasoningContent string            `json:"reasoning_content"`
			ToolCalls        []compatToolCall  `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage compatUsage `json:"usage"`
}

type compatToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (t *compatToolCall) UnmarshalJSON(data []byte) error {
	type plain compatToolCall
	if err := json.Unmarshal(data, (*plain)(t)); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "id")
	delete(raw, "type")
	delete(raw, "index")
	delete(raw, "function")
	if len(raw) > 0 {
		t.Extra = raw
	}
	return nil
}

type compatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	PromptTokensDetails struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

type compatChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *compatUsage `json:"usage"`
}

// buildMessages converts the internal prompt into the OpenAI wire shape.
// Provider-option extras on assistant turns pass through verbatim; they are
// already in the snake_case convention these vendors speak.
func (c *compatChat) buildMessages(msgs []llm.Message) []compatMessage {
	out := make([]compatMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, compatMessage{"role": "system", "content": m.Text()})

		case llm.RoleUser:
			out = append(out, compatMessage{"role": "user", "content": userContent(m)})

		case llm.RoleAssistant:
			out = append(out, c.assistantMessage(m))

		case llm.RoleTool:
			for _, p := range m.Parts {
				if p.Type != llm.PartToolResult {
					continue
				}
				out = append(out, compatMessage{
					"role":         "tool",
					"tool_call_id": p.ToolCallID,
					"content":      stringifyOutput(p.Output),
				})
			}
		}
	}
	return out
}

func userContent(m llm.Message) interface{} {
	plain := true
	for _, p := range m.Parts {
		if p.Type != llm.PartText {
			plain = false
			break
		}
	}
	if plain {
		return m.Text()
	}

	parts := make([]map[string]interface{}, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case llm.PartText:
			parts = append(parts, map[string]interface{}{"type": "text", "text": p.Text})
		case llm.PartImage, llm.PartFile:
			url := p.URL
			if url == "" {
				url = "data:" + p.MediaType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
			}
			parts = append(parts, map[string]interface{}{
				"type":      "image_url",
				"image_url": map[string]interface{}{"url": url},
			})
		}
	}
	return parts
}

func (c *compatChat) assistantMessage(m llm.Message) compatMessage {
	msg := compatMessage{"role": "assistant"}
	if text := m.Text(); text != "" {
		msg["content"] = text
	}

	var toolCalls []map[string]interface{}
	for _, p := range m.Parts {
		switch p.Type {
		case llm.PartReasoning:
			if p.Text != "" {
				msg["reasoning_content"] = p.Text
			}
			if p.Signature != "" {
				msg["reasoning_signature"] = p.Signature
			}
		case llm.PartToolCall:
			args, err := json.Marshal(p.Input)
			if err != nil {
				args = []byte("{}")
			}
			if raw, ok := p.Input.(string); ok {
				args = []byte(raw)
			}
			call := map[string]interface{}{
				"id":   p.ToolCallID,
				"type": "function",
				"function": map[string]interface{}{
					"name":      p.ToolName,
					"arguments": string(args),
				},
			}
			for k, v := range p.ProviderOptions {
				call[k] = v
			}
			toolCalls = append(toolCalls, call)
		}
	}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}

	for k, v := range m.ProviderOptions {
		msg[k] = v
	}
	return msg
}

func stringifyOutput(output interface{}) string {
	if s, ok := output.(string); ok {
		return s
	}
	data, err := json.Marshal(output)
	if err != nil {
		return ""
	}
	return string(data)
}

// buildPayload assembles the request body minus vendor-specific reasoning
// fields, which the owning adapter layers on top.
func (c *compatChat) buildPayload(modelID string, msgs []llm.Message, opts *llm.CallOptions, stream bool) map[string]interface{} {
	payload := map[string]interface{}{
		"model":    modelID,
		"messages": c.buildMessages(msgs),
	}
	if stream {
		payload["stream"] = true
		payload["stream_options"] = map[string]interface{}{"include_usage": true}
	}
	if opts.Temperature != nil {
		payload["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		payload["top_p"] = *opts.TopP
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		payload["stop"] = opts.Stop
	}
	if len(opts.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			tools = append(tools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		payload["tools"] = tools
	}
	if opts.ToolChoice != nil {
		payload["tool_choice"] = opts.ToolChoice
	}
	return payload
}

func (c *compatChat) complete(ctx context.Context, payload map[string]interface{}) (*llm.Result, error) {
	var resp compatResponse
	if err := httpclient.SendRequest(ctx, c.client, http.MethodPost, c.baseURL+"/chat/completions", c.headers, payload, &resp); err != nil {
		return nil, mapUpstream(err)
	}
	if len(resp.Choices) == 0 {
		return nil, openai.ServerError("upstream returned no choices", nil)
	}

	choice := resp.Choices[0]
	result := &llm.Result{
		Text:         choice.Message.Content,
		Reasoning:    choice.Message.ReasoningContent,
		FinishReason: choice.FinishReason,
		Usage:        fromCompatUsage(resp.Usage),
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, llm.ToolCallData{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
			Metadata:  decodeExtras(tc.Extra),
		})
	}
	return result, nil
}

// stream runs the SSE read on its own goroutine and translates chunks into
// internal events. Tool-call fragments accumulate per index and flush in
// index order when the vendor signals completion.
func (c *compatChat) stream(ctx context.Context, payload map[string]interface{}) (<-chan llm.Event, error) {
	events := make(chan llm.Event)

	go func() {
		defer close(events)

		type partialCall struct {
			id   string
			name string
			args string
		}
		calls := map[int]*partialCall{}
		var usage *llm.Usage
		finishReason := ""
		finished := false

		flushCalls := func() {
			indices := make([]int, 0, len(calls))
			for i := range calls {
				indices = append(indices, i)
			}
			sort.Ints(indices)
			for _, i := range indices {
				pc := calls[i]
				events <- llm.Event{Type: llm.EventToolCall, ToolCall: &llm.ToolCallData{
					ID:        pc.id,
					Name:      pc.name,
					Arguments: pc.args,
				}}
			}
			calls = map[int]*partialCall{}
		}

		err := httpclient.StreamSSE(ctx, c.client, http.MethodPost, c.baseURL+"/chat/completions", c.headers, payload, func(data string) error {
			var chunk compatChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return nil // tolerate unknown frames
			}
			if chunk.Usage != nil {
				u := fromCompatUsage(*chunk.Usage)
				usage = &u
			}
			if len(chunk.Choices) == 0 {
				return nil
			}

			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				events <- llm.Event{Type: llm.EventTextDelta, Text: choice.Delta.Content}
			}
			if choice.Delta.ReasoningContent != "" {
				events <- llm.Event{Type: llm.EventReasoningDelta, Text: choice.Delta.ReasoningContent}
			}
			for _, tc := range choice.Delta.ToolCalls {
				pc, ok := calls[tc.Index]
				if !ok {
					pc = &partialCall{}
					calls[tc.Index] = pc
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				pc.args += tc.Function.Arguments
			}
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finishReason = *choice.FinishReason
				finished = true
			}
			return nil
		})

		if err != nil {
			mapped := mapUpstream(err)
			status := 0
			var oaiErr *openai.Error
			if errors.As(mapped, &oaiErr) {
				status = oaiErr.Status
			}
			events <- llm.Event{Type: llm.EventError, Err: mapped, Status: status}
			return
		}

		flushCalls()
		if finished {
			events <- llm.Event{Type: llm.EventFinish, FinishReason: finishReason, Usage: usage}
		}
	}()

	return events, nil
}

func fromCompatUsage(u compatUsage) llm.Usage {
	return llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		ReasoningTokens:  u.CompletionTokensDetails.ReasoningTokens,
		CachedTokens:     u.PromptTokensDetails.CachedTokens,
	}
}

func decodeExtras(raw map[string]json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		out[k] = val
	}
	return out
}

// mapUpstream normalizes transport errors into the wire taxonomy. Vendor
// errors carrying a client status pass through; everything else is a 500.
func mapUpstream(err error) error {
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		msg := upstream.Message()
		if msg == "" {
			msg = "upstream request failed"
		}
		return openai.UpstreamError(upstream.StatusCode, msg, err)
	}
	return openai.ServerError("upstream request failed", err)
}
