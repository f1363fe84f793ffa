package provideradapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aperture-ai/gateway/internal/httpclient"
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// Anthropic models on the Vertex passthrough speak the Anthropic messages
// protocol with a fixed anthropic_version marker instead of a model field.

const (
	anthropicVersion          = "vertex-2023-10-16"
	anthropicDefaultMaxTokens = 4096
)

type anthropicResponse struct {
	Content []struct {
		Type      string                 `json:"type"`
		Text      string                 `json:"text"`
		Thinking  string                 `json:"thinking"`
		Signature string                 `json:"signature"`
		ID        string                 `json:"id"`
		Name      string                 `json:"name"`
		Input     map[string]interface{} `json:"input"`
	} `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      *anthropicUsage `json:"usage"`
}

type anthropicUsage struct {
	InputTokens          int `json:"input_tokens"`
	OutputTokens         int `json:"output_tokens"`
	CacheReadInputTokens int `json:"cache_read_input_tokens"`
}

func (v *vertex) anthropicPayload(msgs []llm.Message, opts *llm.CallOptions, stream bool) map[string]interface{} {
	var system string
	var messages []map[string]interface{}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system += m.Text()

		case llm.RoleUser, llm.RoleTool:
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": anthropicUserBlocks(m),
			})

		case llm.RoleAssistant:
			messages = append(messages, map[string]interface{}{
				"role":    "assistant",
				"content": anthropicAssistantBlocks(m),
			})
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	payload := map[string]interface{}{
		"anthropic_version": anthropicVersion,
		"max_tokens":        maxTokens,
		"messages":          messages,
	}
	if stream {
		payload["stream"] = true
	}
	if system != "" {
		payload["system"] = system
	}
	if opts.Temperature != nil {
		payload["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		payload["top_p"] = *opts.TopP
	}
	if len(opts.Stop) > 0 {
		payload["stop_sequences"] = opts.Stop
	}
	if len(opts.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			tools = append(tools, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		payload["tools"] = tools
	}
	if vendor, ok := opts.ProviderOptions["vertex"].(map[string]interface{}); ok {
		if thinking, ok := vendor["thinking"]; ok {
			payload["thinking"] = thinking
		}
	}
	return payload
}

func anthropicUserBlocks(m llm.Message) []map[string]interface{} {
	var blocks []map[string]interface{}
	for _, p := range m.Parts {
		switch p.Type {
		case llm.PartText:
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": p.Text})
		case llm.PartToolResult:
			blocks = append(blocks, map[string]interface{}{
				"type":        "tool_result",
				"tool_use_id": p.ToolCallID,
				"content":     stringifyOutput(p.Output),
			})
		case llm.PartImage:
			blocks = append(blocks, anthropicImageBlock(p))
		case llm.PartFile:
			blocks = append(blocks, map[string]interface{}{
				"type": "document",
				"source": map[string]interface{}{
					"type":       "base64",
					"media_type": p.MediaType,
					"data":       base64.StdEncoding.EncodeToString(p.Data),
				},
			})
		}
	}
	return blocks
}

func anthropicImageBlock(p llm.Part) map[string]interface{} {
	if p.URL != "" {
		return map[string]interface{}{
			"type":   "image",
			"source": map[string]interface{}{"type": "url", "url": p.URL},
		}
	}
	return map[string]interface{}{
		"type": "image",
		"source": map[string]interface{}{
			"type":       "base64",
			"media_type": p.MediaType,
			"data":       base64.StdEncoding.EncodeToString(p.Data),
		},
	}
}

func anthropicAssistantBlocks(m llm.Message) []map[string]interface{} {
	var blocks []map[string]interface{}
	for _, p := range m.Parts {
		switch p.Type {
		case llm.PartText:
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": p.Text})
		case llm.PartReasoning:
			block := map[string]interface{}{"type": "thinking", "thinking": p.Text}
			if p.Signature != "" {
				block["signature"] = p.Signature
			}
			blocks = append(blocks, block)
		case llm.PartToolCall:
			input, ok := p.Input.(map[string]interface{})
			if !ok {
				input = map[string]interface{}{}
			}
			blocks = append(blocks, map[string]interface{}{
				"type":  "tool_use",
				"id":    p.ToolCallID,
				"name":  p.ToolName,
				"input": input,
			})
		}
	}
	return blocks
}

func (v *vertex) anthropicComplete(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (*llm.Result, error) {
	headers, err := v.headers()
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := httpclient.SendRequest(ctx, v.client, http.MethodPost, v.endpoint+":rawPredict", headers, v.anthropicPayload(msgs, opts, false), &resp); err != nil {
		return nil, mapUpstream(err)
	}
	if len(resp.Content) == 0 && resp.StopReason == "" {
		return nil, openai.ServerError("upstream returned empty response", nil)
	}

	result := &llm.Result{FinishReason: anthropicStopReason(resp.StopReason)}
	signature := ""
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "thinking":
			result.Reasoning += block.Thinking
			signature = block.Signature
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			call := llm.ToolCallData{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			}
			if signature != "" {
				call.Metadata = map[string]interface{}{"reasoning_signature": signature}
				signature = ""
			}
			result.ToolCalls = append(result.ToolCalls, call)
		}
	}
	if resp.Usage != nil {
		result.Usage = fromAnthropicUsage(*resp.Usage)
	}
	return result, nil
}

type anthropicStreamFrame struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`

	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Thinking    string `json:"thinking"`
		PartialJSON string `json:"partial_json"`
		Signature   string `json:"signature"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`

	Message *struct {
		Usage *anthropicUsage `json:"usage"`
	} `json:"message"`
	Usage *anthropicUsage `json:"usage"`
}

func (v *vertex) anthropicStream(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (<-chan llm.Event, error) {
	headers, err := v.headers()
	if err != nil {
		return nil, err
	}

	events := make(chan llm.Event)
	payload := v.anthropicPayload(msgs, opts, true)

	go func() {
		defer close(events)

		type toolBlock struct {
			id   string
			name string
			args string
		}
		blocks := map[int]*toolBlock{}
		usage := llm.Usage{}
		stopReason := ""
		signature := ""

		err := httpclient.StreamSSE(ctx, v.client, http.MethodPost, v.endpoint+":streamRawPredict", headers, payload, func(data string) error {
			var frame anthropicStreamFrame
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				return nil
			}

			switch frame.Type {
			case "message_start":
				if frame.Message != nil && frame.Message.Usage != nil {
					usage.PromptTokens = frame.Message.Usage.InputTokens
					usage.CachedTokens = frame.Message.Usage.CacheReadInputTokens
				}

			case "content_block_start":
				if frame.ContentBlock != nil && frame.ContentBlock.Type == "tool_use" {
					blocks[frame.Index] = &toolBlock{
						id:   frame.ContentBlock.ID,
						name: frame.ContentBlock.Name,
					}
				}

			case "content_block_delta":
				if frame.Delta == nil {
					return nil
				}
				switch frame.Delta.Type {
				case "text_delta":
					events <- llm.Event{Type: llm.EventTextDelta, Text: frame.Delta.Text}
				case "thinking_delta":
					events <- llm.Event{Type: llm.EventReasoningDelta, Text: frame.Delta.Thinking}
				case "signature_delta":
					signature += frame.Delta.Signature
				case "input_json_delta":
					if b, ok := blocks[frame.Index]; ok {
						b.args += frame.Delta.PartialJSON
					}
				}

			case "content_block_stop":
				if b, ok := blocks[frame.Index]; ok {
					delete(blocks, frame.Index)
					args := b.args
					if args == "" {
						args = "{}"
					}
					call := &llm.ToolCallData{ID: b.id, Name: b.name, Arguments: args}
					if signature != "" {
						call.Metadata = map[string]interface{}{"reasoning_signature": signature}
						signature = ""
					}
					events <- llm.Event{Type: llm.EventToolCall, ToolCall: call}
				}

			case "message_delta":
				if frame.Delta != nil && frame.Delta.StopReason != "" {
					stopReason = frame.Delta.StopReason
				}
				if frame.Usage != nil {
					usage.CompletionTokens = frame.Usage.OutputTokens
					usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
				}
			}
			return nil
		})

		if err != nil {
			mapped := mapUpstream(err)
			events <- llm.Event{Type: llm.EventError, Err: mapped, Status: errorStatus(mapped)}
			return
		}

		u := usage
		events <- llm.Event{
			Type:         llm.EventFinish,
			FinishReason: anthropicStopReason(stopReason),
			Usage:        &u,
		}
	}()

	return events, nil
}

func anthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence", "":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}

func fromAnthropicUsage(u anthropicUsage) llm.Usage {
	return llm.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
		CachedTokens:     u.CacheReadInputTokens,
	}
}
