package openai

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"` // "chat.completion" or "chat.completion.chunk"
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

type Choice struct {
	Index        int              `json:"index"`
	Message      *ResponseMessage `json:"message,omitempty"` // non-streaming
	Delta        *Delta           `json:"delta,omitempty"`   // streaming
	FinishReason string           `json:"finish_reason,omitempty"`
}

type ResponseMessage struct {
	Role             string             `json:"role"`
	Content          string             `json:"content"`
	ReasoningContent string             `json:"reasoning_content,omitempty"`
	ToolCalls        []ResponseToolCall `json:"tool_calls,omitempty"`
}

type Delta struct {
	Role             string             `json:"role,omitempty"`
	Content          string             `json:"content,omitempty"`
	ReasoningContent string             `json:"reasoning_content,omitempty"`
	ToolCalls        []ResponseToolCall `json:"tool_calls,omitempty"`
}

// ResponseToolCall carries Index for streaming deltas; ExtraContent holds
// vendor continuation metadata in the wire-format snake_case convention.
type ResponseToolCall struct {
	Index        *int                   `json:"index,omitempty"`
	ID           string                 `json:"id,omitempty"`
	Type         string                 `json:"type,omitempty"`
	Function     FunctionCall           `json:"function"`
	ExtraContent map[string]interface{} `json:"extra_content,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	PromptTokensDetails     *PromptTokensDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`
}

type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

type CompletionTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

// Model listing shapes for GET /models and /models/:author/:slug/endpoints.
type ModelList struct {
	Object string  `json:"object"` // "list"
	Data   []Model `json:"data"`
}

type Model struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Created      int64           `json:"created"`
	OwnedBy      string          `json:"owned_by"`
	Architecture Architecture    `json:"architecture"`
	Pricing      Pricing         `json:"pricing"`
	Endpoints    []ModelEndpoint `json:"endpoints,omitempty"`
}

type Architecture struct {
	OutputModalities []string `json:"output_modalities"`
}

type Pricing struct {
	MonthlyFreeTokens int64 `json:"monthly_free_tokens"`
}

type ModelEndpoint struct {
	Tag string `json:"tag"`
}

type EmbeddingsResponse struct {
	Object string      `json:"object"` // "list"
	Model  string      `json:"model"`
	Data   []Embedding `json:"data"`
	Usage  *Usage      `json:"usage,omitempty"`
}

type Embedding struct {
	Object    string    `json:"object"` // "embedding"
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}
