package llm

// Role of one internal message turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Modality of a model type.
type Modality string

const (
	ModalityChat      Modality = "chat"
	ModalityEmbedding Modality = "embedding"
)

// Message is one turn in the internal prompt representation. Provider
// adapters translate it to vendor-native shapes in both directions.
type Message struct {
	Role  Role
	Parts []Part

	// ProviderOptions carries vendor continuation metadata merged from
	// `extra_`-prefixed wire fields, keys with the prefix stripped.
	ProviderOptions map[string]interface{}
}

// PartType discriminates the Part union.
type PartType string

const (
	PartText       PartType = "text"
	PartImage      PartType = "image"
	PartFile       PartType = "file"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
	PartReasoning  PartType = "reasoning"
)

// Part is one content element of a message.
type Part struct {
	Type PartType

	// Text for text and reasoning parts.
	Text string
	// Signature is the vendor-opaque continuation token on reasoning parts.
	Signature string

	// Binary/URL content for image and file parts.
	MediaType string
	URL       string
	Data      []byte
	Filename  string

	// Tool linkage.
	ToolCallID string
	ToolName   string
	Input      interface{} // parsed JSON input, or the raw string when parsing failed
	Output     interface{} // parsed JSON result, or plain text

	ProviderOptions map[string]interface{}
}

func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// FirstToolCallIndex returns the index of the first tool-call part, or -1.
func (m Message) FirstToolCallIndex() int {
	for i, p := range m.Parts {
		if p.Type == PartToolCall {
			return i
		}
	}
	return -1
}

// Text concatenates the text parts of a message.
func (m Message) Text() string {
	out := ""
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}
