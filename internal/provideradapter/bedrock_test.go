package provideradapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperture-ai/gateway/internal/llm"
)

func TestBedrockTransformOptionsEffortShorthand(t *testing.T) {
	b := &bedrock{}
	opts := &llm.CallOptions{}
	opts.SetProviderOption("reasoning", map[string]interface{}{"effort": "low"})

	b.TransformOptions(opts)

	assert.NotContains(t, opts.ProviderOptions, "reasoning")
	vendor := opts.ProviderOptions["bedrock"].(map[string]interface{})
	assert.Equal(t, "low", vendor["reasoning_effort"])
	assert.NotContains(t, vendor, "reasoning_config")
}

func TestBedrockTransformOptionsBudgetConfig(t *testing.T) {
	b := &bedrock{}
	opts := &llm.CallOptions{}
	opts.SetProviderOption("reasoning", map[string]interface{}{
		"effort":       "high",
		"budgetTokens": 8192,
	})

	b.TransformOptions(opts)

	vendor := opts.ProviderOptions["bedrock"].(map[string]interface{})
	cfg := vendor["reasoning_config"].(map[string]interface{})
	assert.Equal(t, "high", cfg["effort"])
	assert.Equal(t, 8192, cfg["budget_tokens"])
}

func TestBedrockInvokesResolvedProfile(t *testing.T) {
	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inference-profiles", r.URL.Path)
		switch r.URL.Query().Get("nextToken") {
		case "":
			fmt.Fprint(w, `{
				"inferenceProfileSummaries": [{
					"inferenceProfileId": "other-profile",
					"models": [{"modelArn": "arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-sonnet-4-20250514-v1:0"}]
				}],
				"nextToken": "page2"
			}`)
		case "page2":
			fmt.Fprint(w, `{
				"inferenceProfileSummaries": [{
					"inferenceProfileId": "us.openai.gpt-oss-120b-1:0",
					"models": [{"modelArn": "arn:aws:bedrock:us-east-1::foundation-model/openai.gpt-oss-120b-1:0"}]
				}]
			}`)
		}
	}))
	defer control.Close()

	var invokedModel string
	runtime := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		invokedModel = payload["model"].(string)
		fmt.Fprint(w, `{"choices": [{"message": {"content": "ok"}, "finish_reason": "stop"}], "usage": {}}`)
	}))
	defer runtime.Close()

	b := &bedrock{
		compat: compatChat{
			client:  http.DefaultClient,
			baseURL: runtime.URL,
			headers: map[string]string{"Authorization": "Bearer bk"},
		},
		modelID:    "openai.gpt-oss-120b-1:0",
		controlURL: control.URL,
	}

	_, err := b.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart("hi")}},
	}, &llm.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "us.openai.gpt-oss-120b-1:0", invokedModel)
}

func TestBedrockFallsBackToStaticIDWhenLookupFails(t *testing.T) {
	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer control.Close()

	b := &bedrock{
		compat:     compatChat{client: http.DefaultClient},
		modelID:    "openai.gpt-oss-120b-1:0",
		controlURL: control.URL,
	}

	assert.Equal(t, "openai.gpt-oss-120b-1:0", b.invokeID(context.Background()))
}

func TestBedrockProfileResolutionRunsOnce(t *testing.T) {
	calls := 0
	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"inferenceProfileSummaries": []}`)
	}))
	defer control.Close()

	b := &bedrock{
		compat:     compatChat{client: http.DefaultClient},
		modelID:    "openai.gpt-oss-120b-1:0",
		controlURL: control.URL,
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, "openai.gpt-oss-120b-1:0", b.invokeID(context.Background()))
	}
	assert.Equal(t, 1, calls)
}
