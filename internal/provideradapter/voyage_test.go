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

	"github.com/aperture-ai/gateway/internal/config"
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/pkg/openai"
)

func voyageAdapter(t *testing.T, baseURL string) Adapter {
	t.Helper()
	f := NewFactory(&fakeStore{}, testSecrets(), testConfig(map[string]config.ProviderDefault{
		"voyage": {APIKeySecret: "TEST_VOYAGE_KEY", BaseURL: baseURL},
	}))
	adapter, err := f.CreateDefault(context.Background(), "voyage/voyage-3-large")
	require.NoError(t, err)
	return adapter
}

func TestVoyageEmbed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer vk", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "voyage-3-large", payload["model"])

		// Vectors come back out of order; placement goes by index.
		fmt.Fprint(w, `{
			"data": [
				{"index": 1, "embedding": [0.4, 0.5]},
				{"index": 0, "embedding": [0.1, 0.2]}
			],
			"usage": {"total_tokens": 12}
		}`)
	}))
	defer ts.Close()

	adapter := voyageAdapter(t, ts.URL)
	embedder, ok := adapter.(Embedder)
	require.True(t, ok)

	result, err := embedder.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, result.Vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2}, result.Vectors[0])
	assert.Equal(t, []float64{0.4, 0.5}, result.Vectors[1])
	assert.Equal(t, 12, result.Usage.TotalTokens)
}

func TestVoyageRejectsChat(t *testing.T) {
	adapter := voyageAdapter(t, "http://unused")

	_, err := adapter.Complete(context.Background(), nil, &llm.CallOptions{})
	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)

	_, err = adapter.Stream(context.Background(), nil, &llm.CallOptions{})
	require.ErrorAs(t, err, &apiErr)
}
