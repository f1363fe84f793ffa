package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// Translator converts internal stream events into OpenAI
// chat.completion.chunk frames. One instance serves one response; it is not
// goroutine-safe and does not need to be.
type Translator struct {
	id      string
	model   string
	created int64

	sentRole      bool
	nextToolIndex int
}

func NewTranslator(id, model string) *Translator {
	return &Translator{id: id, model: model, created: time.Now().Unix()}
}

// Translate maps one event to a wire chunk. Events that carry nothing for
// the client return nil.
func (t *Translator) Translate(ev llm.Event) *openai.ChatResponse {
	switch ev.Type {
	case llm.EventTextDelta:
		return t.chunk(openai.Choice{Delta: t.delta(&openai.Delta{Content: ev.Text})}, nil)

	case llm.EventReasoningDelta:
		return t.chunk(openai.Choice{Delta: t.delta(&openai.Delta{ReasoningContent: ev.Text})}, nil)

	case llm.EventToolCall:
		if ev.ToolCall == nil {
			return nil
		}
		index := t.nextToolIndex
		t.nextToolIndex++

		call := openai.ResponseToolCall{
			Index: &index,
			ID:    ev.ToolCall.ID,
			Type:  "function",
			Function: openai.FunctionCall{
				Name:      ev.ToolCall.Name,
				Arguments: ev.ToolCall.Arguments,
			},
		}
		if len(ev.ToolCall.Metadata) > 0 {
			call.ExtraContent = ev.ToolCall.Metadata
		}
		return t.chunk(openai.Choice{Delta: t.delta(&openai.Delta{
			ToolCalls: []openai.ResponseToolCall{call},
		})}, nil)

	case llm.EventFinish:
		var usage *openai.Usage
		if ev.Usage != nil {
			usage = WireUsage(*ev.Usage)
		}
		return t.chunk(openai.Choice{
			Delta:        &openai.Delta{},
			FinishReason: NormalizeFinishReason(ev.FinishReason),
		}, usage)

	case llm.EventError:
		apiErr := openai.FromError(ev.Err)
		if ev.Status >= 500 || ev.Status == 0 && apiErr.Status >= 500 {
			apiErr = openai.ServerError(apiErr.Message, apiErr.Log)
		}
		detail := apiErr.Envelope().Error
		resp := t.chunk(openai.Choice{Delta: &openai.Delta{}}, nil)
		resp.Error = &detail
		return resp
	}
	return nil
}

func (t *Translator) chunk(choice openai.Choice, usage *openai.Usage) *openai.ChatResponse {
	return &openai.ChatResponse{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []openai.Choice{choice},
		Usage:   usage,
	}
}

// delta stamps the assistant role onto the first content-bearing frame.
func (t *Translator) delta(d *openai.Delta) *openai.Delta {
	if !t.sentRole {
		d.Role = "assistant"
		t.sentRole = true
	}
	return d
}

// NormalizeFinishReason maps vendor-native reasons onto the wire enum:
// hyphens become underscores, and reasons with no client meaning collapse
// to "stop".
func NormalizeFinishReason(reason string) string {
	reason = strings.ReplaceAll(reason, "-", "_")
	switch reason {
	case "", "error", "other", "unknown":
		return "stop"
	default:
		return reason
	}
}

// WireUsage converts internal usage counters to the wire shape, attaching
// the detail blocks only when the vendor reported them.
func WireUsage(u llm.Usage) *openai.Usage {
	out := &openai.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.ReasoningTokens > 0 {
		out.CompletionTokensDetails = &openai.CompletionTokensDetails{ReasoningTokens: u.ReasoningTokens}
	}
	if u.CachedTokens > 0 {
		out.PromptTokensDetails = &openai.PromptTokensDetails{CachedTokens: u.CachedTokens}
	}
	return out
}

// Write drains the event stream into w as server-sent events. The [DONE]
// terminator is written unconditionally, including after a mid-stream error
// chunk, so clients always observe a closed stream.
func Write(w io.Writer, events <-chan llm.Event, t *Translator) {
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	for ev := range events {
		chunk := t.Translate(ev)
		if chunk == nil {
			continue
		}

		data, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flush()

		if ev.Type == llm.EventError {
			break
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flush()
}
