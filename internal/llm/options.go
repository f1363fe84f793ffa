package llm

// ToolSpec describes one callable tool in vendor-agnostic form.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// CallOptions is the vendor-agnostic invocation shape the transform chain
// operates on. Model adapters write generic camelCase entries into
// ProviderOptions; provider adapters then re-shape them into vendor casing.
type CallOptions struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   int
	Stop        []string

	Tools      []ToolSpec
	ToolChoice interface{}

	ProviderOptions map[string]interface{}
}

// SetProviderOption writes one entry, allocating the bag on first use.
func (o *CallOptions) SetProviderOption(key string, value interface{}) {
	if o.ProviderOptions == nil {
		o.ProviderOptions = make(map[string]interface{})
	}
	o.ProviderOptions[key] = value
}

// ReasoningOption returns the generic reasoning config emitted by a model
// adapter, or nil when reasoning is disabled.
func (o *CallOptions) ReasoningOption() (map[string]interface{}, bool) {
	if o.ProviderOptions == nil {
		return nil, false
	}
	v, ok := o.ProviderOptions["reasoning"].(map[string]interface{})
	return v, ok
}
