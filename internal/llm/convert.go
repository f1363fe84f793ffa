package llm

import (
	"encoding/base64"
	"encoding/json"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aperture-ai/gateway/pkg/openai"
)

// FromOpenAI converts OpenAI-compatible chat messages into the internal
// representation. Assistant turns with tool calls are followed by at most one
// synthetic tool turn bundling the matching results of that turn, in the
// original call order. Results belonging to a later assistant turn are never
// merged backwards, even when tool names repeat.
func FromOpenAI(msgs []openai.ChatMessage) ([]Message, error) {
	out := make([]Message, 0, len(msgs))
	consumed := make(map[int]bool)

	for i, msg := range msgs {
		if consumed[i] {
			continue
		}

		switch msg.Role {
		case "system":
			out = append(out, Message{
				Role:            RoleSystem,
				Parts:           []Part{TextPart(msg.Content.Text)},
				ProviderOptions: decodeExtra(msg.Extra),
			})

		case "user":
			parts, err := convertUserContent(msg.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, Message{
				Role:            RoleUser,
				Parts:           parts,
				ProviderOptions: decodeExtra(msg.Extra),
			})

		case "assistant":
			assistant := convertAssistant(msg)
			out = append(out, assistant)

			if len(msg.ToolCalls) == 0 {
				continue
			}

			// Bundle the contiguous run of tool results that belong to
			// this turn's calls into one synthetic tool message.
			callIDs := make(map[string]int, len(msg.ToolCalls))
			for order, tc := range msg.ToolCalls {
				callIDs[tc.ID] = order
			}

			results := make([]Part, len(msg.ToolCalls))
			found := 0
			for j := i + 1; j < len(msgs) && msgs[j].Role == "tool"; j++ {
				order, ok := callIDs[msgs[j].ToolCallID]
				if !ok || results[order].Type != "" {
					continue
				}
				results[order] = toolResultPart(msgs[j])
				consumed[j] = true
				found++
			}

			if found > 0 {
				toolTurn := Message{Role: RoleTool}
				for _, p := range results {
					if p.Type != "" {
						toolTurn.Parts = append(toolTurn.Parts, p)
					}
				}
				out = append(out, toolTurn)
			}

		case "tool":
			// A stray result with no preceding assistant turn in scope.
			out = append(out, Message{
				Role:  RoleTool,
				Parts: []Part{toolResultPart(msg)},
			})
		}
	}

	return out, nil
}

func convertAssistant(msg openai.ChatMessage) Message {
	m := Message{
		Role:            RoleAssistant,
		ProviderOptions: decodeExtra(msg.Extra),
	}

	if msg.ReasoningContent != "" {
		part := Part{Type: PartReasoning, Text: msg.ReasoningContent}
		if sig, ok := m.ProviderOptions["reasoning_signature"].(string); ok {
			part.Signature = sig
		}
		m.Parts = append(m.Parts, part)
	}

	if msg.Content.Text != "" {
		m.Parts = append(m.Parts, TextPart(msg.Content.Text))
	}
	for _, p := range msg.Content.Parts {
		if p.Type == "text" {
			m.Parts = append(m.Parts, TextPart(p.Text))
		}
	}

	for _, tc := range msg.ToolCalls {
		var input interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
			input = tc.Function.Arguments
		}
		m.Parts = append(m.Parts, Part{
			Type:            PartToolCall,
			ToolCallID:      tc.ID,
			ToolName:        tc.Function.Name,
			Input:           input,
			ProviderOptions: decodeExtra(tc.Extra),
		})
	}

	return m
}

func toolResultPart(msg openai.ChatMessage) Part {
	text := msg.Content.Text
	for _, p := range msg.Content.Parts {
		if p.Type == "text" {
			text += p.Text
		}
	}

	var output interface{}
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		output = text
	}

	return Part{
		Type:       PartToolResult,
		ToolCallID: msg.ToolCallID,
		ToolName:   msg.Name,
		Output:     output,
	}
}

func convertUserContent(content openai.Content) ([]Part, error) {
	if content.Parts == nil {
		return []Part{TextPart(content.Text)}, nil
	}

	parts := make([]Part, 0, len(content.Parts))
	for _, p := range content.Parts {
		switch p.Type {
		case "text":
			parts = append(parts, TextPart(p.Text))

		case "image_url":
			if p.ImageURL == nil {
				continue
			}
			part, err := binaryPart(p.ImageURL.URL, "", "image/png")
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)

		case "file":
			if p.File == nil {
				continue
			}
			fallback := "application/octet-stream"
			if p.File.Filename != "" {
				if byExt := mime.TypeByExtension(filepath.Ext(p.File.Filename)); byExt != "" {
					fallback = byExt
				}
			}
			part, err := binaryPart(p.File.FileData, p.File.Filename, fallback)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
	}
	return parts, nil
}

// binaryPart converts a URL-or-base64 payload into the internal binary/URL
// representation, inferring image vs generic file from the MIME type.
func binaryPart(raw, filename, fallbackMime string) (Part, error) {
	mediaType := fallbackMime
	part := Part{Filename: filename}

	switch {
	case strings.HasPrefix(raw, "data:"):
		meta, payload, _ := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
		if mt, _, _ := strings.Cut(meta, ";"); mt != "" {
			mediaType = mt
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return Part{}, err
		}
		part.Data = data

	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		part.URL = raw

	default:
		// Bare base64 with no data: envelope.
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Part{}, err
		}
		part.Data = data
	}

	part.MediaType = mediaType
	if strings.HasPrefix(mediaType, "image/") {
		part.Type = PartImage
	} else {
		part.Type = PartFile
	}
	return part, nil
}

func decodeExtra(extra map[string]json.RawMessage) map[string]interface{} {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(extra))
	for k, v := range extra {
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			val = string(v)
		}
		out[k] = val
	}
	return out
}
