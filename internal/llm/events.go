package llm

// EventType discriminates vendor stream events after adapter translation.
type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventToolCall       EventType = "tool-call"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"
)

// Event is one element of a vendor's translated async stream.
type Event struct {
	Type EventType

	// Text carries the delta for text-delta and reasoning-delta events.
	Text string

	ToolCall *ToolCallData

	// FinishReason is the vendor-native reason on finish events.
	FinishReason string
	Usage        *Usage

	// Err and Status describe error events. Status is the client-facing
	// HTTP status when the vendor attached one, 0 otherwise.
	Err    error
	Status int
}

// ToolCallData is one completed tool invocation request from the model.
// Metadata holds vendor continuation fields already normalized to the wire
// snake_case convention by the provider adapter.
type ToolCallData struct {
	ID        string
	Name      string
	Arguments string // JSON string
	Metadata  map[string]interface{}
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ReasoningTokens  int
	CachedTokens     int
}

// Result is a complete non-streaming vendor response.
type Result struct {
	Text         string
	Reasoning    string
	ToolCalls    []ToolCallData
	FinishReason string
	Usage        Usage
}

// EmbeddingResult is a complete embedding vendor response.
type EmbeddingResult struct {
	Vectors [][]float64
	Usage   Usage
}
