package provideradapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/httpclient"
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

const vertexScope = "https://www.googleapis.com/auth/cloud-platform"

var vertexModels = map[string]string{
	"google/gemini-3-pro":       "gemini-3-pro",
	"google/gemini-3-flash":     "gemini-3-flash",
	"google/gemini-2.5-flash":   "gemini-2.5-flash",
	"anthropic/claude-sonnet-4": "claude-sonnet-4@20250514",
	"anthropic/claude-haiku-4":  "claude-haiku-4@20250815",
}

// vertex serves two publisher families behind one endpoint shape: Google's
// own Gemini line via generateContent, and Anthropic models via the
// rawPredict passthrough. Auth is a service-account token source built once
// at construction; the oauth2 machinery refreshes under the hood.
type vertex struct {
	client   httpclient.HTTPClient
	tokens   oauth2.TokenSource
	endpoint string
	modelID  string
	family   string // "google" or "anthropic"
}

func newVertex(ctx context.Context, f *Factory, creds configstore.ProviderConfig, modelType string) (Adapter, error) {
	modelID, err := vendorModelID("vertex", modelType)
	if err != nil {
		return nil, err
	}
	if creds.ServiceAccountJSON == "" || creds.Project == "" || creds.Location == "" {
		return nil, openai.ServerError("vertex credentials incomplete", nil)
	}

	gcreds, err := google.CredentialsFromJSON(ctx, []byte(creds.ServiceAccountJSON), vertexScope)
	if err != nil {
		return nil, openai.ServerError("vertex service account rejected", err)
	}

	family := "google"
	if strings.HasPrefix(modelType, "anthropic/") {
		family = "anthropic"
	}

	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com", creds.Location)
	}
	endpoint := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/%s/models/%s",
		baseURL, creds.Project, creds.Location, family, modelID)

	return &vertex{
		client:   f.client,
		tokens:   gcreds.TokenSource,
		endpoint: endpoint,
		modelID:  modelID,
		family:   family,
	}, nil
}

func (v *vertex) Slug() string    { return "vertex" }
func (v *vertex) ModelID() string { return v.modelID }

func (v *vertex) headers() (map[string]string, error) {
	tok, err := v.tokens.Token()
	if err != nil {
		return nil, openai.ServerError("vertex token exchange failed", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok.AccessToken}, nil
}

// TransformOptions lowers the generic reasoning bag into the family's
// native config shape.
func (v *vertex) TransformOptions(opts *llm.CallOptions) {
	reasoning, ok := opts.ReasoningOption()
	if !ok {
		return
	}
	delete(opts.ProviderOptions, "reasoning")

	if v.family == "anthropic" {
		thinking := map[string]interface{}{"type": "enabled"}
		for k, val := range toSnakeKeys(reasoning) {
			if k == "exclude_thoughts" {
				continue // anthropic has no visibility toggle
			}
			thinking[k] = val
		}
		opts.SetProviderOption("vertex", map[string]interface{}{"thinking": thinking})
		return
	}

	thinkingConfig := map[string]interface{}{}
	if level, ok := reasoning["level"].(string); ok {
		thinkingConfig["thinkingLevel"] = strings.ToUpper(level)
	}
	if budget, ok := reasoning["thinkingBudget"]; ok {
		thinkingConfig["thinkingBudget"] = budget
	}
	if include, ok := reasoning["includeThoughts"]; ok {
		thinkingConfig["includeThoughts"] = include
	}
	if exclude, ok := reasoning["excludeThoughts"].(bool); ok {
		thinkingConfig["includeThoughts"] = !exclude
	}
	opts.SetProviderOption("vertex", map[string]interface{}{"thinkingConfig": thinkingConfig})
}

// TransformPrompt converts wire snake_case continuation metadata into the
// vendor's camelCase convention. Only the Gemini family carries metadata
// this way; Anthropic signatures live on the reasoning part itself.
func (v *vertex) TransformPrompt(msgs []llm.Message) []llm.Message {
	if v.family != "google" {
		return msgs
	}
	for i, m := range msgs {
		if len(m.ProviderOptions) > 0 {
			msgs[i].ProviderOptions = toCamelKeys(m.ProviderOptions)
		}
		for j, p := range m.Parts {
			if len(p.ProviderOptions) > 0 {
				msgs[i].Parts[j].ProviderOptions = toCamelKeys(p.ProviderOptions)
			}
		}
	}
	return msgs
}

func (v *vertex) Complete(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (*llm.Result, error) {
	if v.family == "anthropic" {
		return v.anthropicComplete(ctx, msgs, opts)
	}
	return v.geminiComplete(ctx, msgs, opts)
}

func (v *vertex) Stream(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (<-chan llm.Event, error) {
	if v.family == "anthropic" {
		return v.anthropicStream(ctx, msgs, opts)
	}
	return v.geminiStream(ctx, msgs, opts)
}

// --- Gemini family ---

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

type geminiPart struct {
	Text             string                 `json:"text,omitempty"`
	Thought          bool                   `json:"thought,omitempty"`
	ThoughtSignature string                 `json:"thoughtSignature,omitempty"`
	FunctionCall     *geminiFunctionCall    `json:"functionCall,omitempty"`
	FunctionResponse map[string]interface{} `json:"functionResponse,omitempty"`
	InlineData       *geminiBlob            `json:"inlineData,omitempty"`
	FileData         map[string]interface{} `json:"fileData,omitempty"`
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiUsage struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
}

func (v *vertex) geminiPayload(msgs []llm.Message, opts *llm.CallOptions) map[string]interface{} {
	var system string
	var contents []map[string]interface{}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system += m.Text()
			continue

		case llm.RoleTool:
			var parts []geminiPart
			for _, p := range m.Parts {
				if p.Type != llm.PartToolResult {
					continue
				}
				parts = append(parts, geminiPart{FunctionResponse: map[string]interface{}{
					"name":     p.ToolName,
					"response": map[string]interface{}{"result": p.Output},
				}})
			}
			contents = append(contents, map[string]interface{}{"role": "user", "parts": parts})
			continue
		}

		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		var parts []geminiPart
		for _, p := range m.Parts {
			switch p.Type {
			case llm.PartText:
				parts = append(parts, geminiPart{Text: p.Text})
			case llm.PartReasoning:
				parts = append(parts, geminiPart{Text: p.Text, Thought: true, ThoughtSignature: p.Signature})
			case llm.PartToolCall:
				args, _ := p.Input.(map[string]interface{})
				gp := geminiPart{FunctionCall: &geminiFunctionCall{Name: p.ToolName, Args: args}}
				if sig, ok := p.ProviderOptions["thoughtSignature"].(string); ok {
					gp.ThoughtSignature = sig
				}
				parts = append(parts, gp)
			case llm.PartImage, llm.PartFile:
				if p.URL != "" {
					parts = append(parts, geminiPart{FileData: map[string]interface{}{
						"mimeType": p.MediaType,
						"fileUri":  p.URL,
					}})
					continue
				}
				parts = append(parts, geminiPart{InlineData: &geminiBlob{
					MimeType: p.MediaType,
					Data:     base64.StdEncoding.EncodeToString(p.Data),
				}})
			}
		}
		contents = append(contents, map[string]interface{}{"role": role, "parts": parts})
	}

	payload := map[string]interface{}{"contents": contents}
	if system != "" {
		payload["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": system}},
		}
	}

	generation := map[string]interface{}{}
	if opts.Temperature != nil {
		generation["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		generation["topP"] = *opts.TopP
	}
	if opts.MaxTokens > 0 {
		generation["maxOutputTokens"] = opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		generation["stopSequences"] = opts.Stop
	}
	if vendor, ok := opts.ProviderOptions["vertex"].(map[string]interface{}); ok {
		if tc, ok := vendor["thinkingConfig"]; ok {
			generation["thinkingConfig"] = tc
		}
	}
	if len(generation) > 0 {
		payload["generationConfig"] = generation
	}

	if len(opts.Tools) > 0 {
		decls := make([]map[string]interface{}, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			decls = append(decls, map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		payload["tools"] = []map[string]interface{}{{"functionDeclarations": decls}}
	}
	return payload
}

func (v *vertex) geminiComplete(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (*llm.Result, error) {
	headers, err := v.headers()
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := httpclient.SendRequest(ctx, v.client, http.MethodPost, v.endpoint+":generateContent", headers, v.geminiPayload(msgs, opts), &resp); err != nil {
		return nil, mapUpstream(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, openai.ServerError("upstream returned no candidates", nil)
	}

	result := &llm.Result{}
	for _, p := range resp.Candidates[0].Content.Parts {
		switch {
		case p.FunctionCall != nil:
			args, _ := json.Marshal(p.FunctionCall.Args)
			call := llm.ToolCallData{
				ID:        syntheticCallID(len(result.ToolCalls)),
				Name:      p.FunctionCall.Name,
				Arguments: string(args),
			}
			if p.ThoughtSignature != "" {
				call.Metadata = toSnakeKeys(map[string]interface{}{"thoughtSignature": p.ThoughtSignature})
			}
			result.ToolCalls = append(result.ToolCalls, call)
		case p.Thought:
			result.Reasoning += p.Text
		default:
			result.Text += p.Text
		}
	}

	result.FinishReason = geminiFinishReason(resp.Candidates[0].FinishReason, len(result.ToolCalls) > 0)
	if resp.UsageMetadata != nil {
		result.Usage = fromGeminiUsage(*resp.UsageMetadata)
	}
	return result, nil
}

func (v *vertex) geminiStream(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (<-chan llm.Event, error) {
	headers, err := v.headers()
	if err != nil {
		return nil, err
	}

	events := make(chan llm.Event)
	payload := v.geminiPayload(msgs, opts)

	go func() {
		defer close(events)

		var usage *llm.Usage
		finishReason := ""
		sawToolCall := false
		callIndex := 0

		err := httpclient.StreamSSE(ctx, v.client, http.MethodPost, v.endpoint+":streamGenerateContent?alt=sse", headers, payload, func(data string) error {
			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return nil
			}
			if chunk.UsageMetadata != nil {
				u := fromGeminiUsage(*chunk.UsageMetadata)
				usage = &u
			}
			if len(chunk.Candidates) == 0 {
				return nil
			}

			cand := chunk.Candidates[0]
			for _, p := range cand.Content.Parts {
				switch {
				case p.FunctionCall != nil:
					args, _ := json.Marshal(p.FunctionCall.Args)
					call := &llm.ToolCallData{
						ID:        syntheticCallID(callIndex),
						Name:      p.FunctionCall.Name,
						Arguments: string(args),
					}
					if p.ThoughtSignature != "" {
						call.Metadata = toSnakeKeys(map[string]interface{}{"thoughtSignature": p.ThoughtSignature})
					}
					callIndex++
					sawToolCall = true
					events <- llm.Event{Type: llm.EventToolCall, ToolCall: call}
				case p.Thought:
					events <- llm.Event{Type: llm.EventReasoningDelta, Text: p.Text}
				case p.Text != "":
					events <- llm.Event{Type: llm.EventTextDelta, Text: p.Text}
				}
			}
			if cand.FinishReason != "" {
				finishReason = cand.FinishReason
			}
			return nil
		})

		if err != nil {
			mapped := mapUpstream(err)
			events <- llm.Event{Type: llm.EventError, Err: mapped, Status: errorStatus(mapped)}
			return
		}

		events <- llm.Event{
			Type:         llm.EventFinish,
			FinishReason: geminiFinishReason(finishReason, sawToolCall),
			Usage:        usage,
		}
	}()

	return events, nil
}

func geminiFinishReason(reason string, sawToolCall bool) string {
	if sawToolCall {
		return "tool_calls"
	}
	switch reason {
	case "STOP", "":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	default:
		return strings.ToLower(reason)
	}
}

func fromGeminiUsage(u geminiUsage) llm.Usage {
	return llm.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount + u.ThoughtsTokenCount,
		TotalTokens:      u.TotalTokenCount,
		ReasoningTokens:  u.ThoughtsTokenCount,
		CachedTokens:     u.CachedContentTokenCount,
	}
}

// syntheticCallID labels tool calls from vendors that do not assign ids.
func syntheticCallID(index int) string {
	return fmt.Sprintf("call_%d", index)
}

func errorStatus(err error) int {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.Status
	}
	return 0
}
