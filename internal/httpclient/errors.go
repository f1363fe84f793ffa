package httpclient

import (
	"encoding/json"
	"fmt"
)

// UpstreamError represents a non-2xx reply from an upstream service.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// Message extracts the human-readable message from the vendor error body.
// Handles both the nested `{"error":{"message":...}}` shape and a flat
// `{"message":...}`; returns "" when neither parses.
func (e *UpstreamError) Message() string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Body, &nested); err != nil {
		return ""
	}
	if nested.Error.Message != "" {
		return nested.Error.Message
	}
	return nested.Message
}
