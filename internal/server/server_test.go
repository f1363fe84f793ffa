package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperture-ai/gateway/internal/cache"
	"github.com/aperture-ai/gateway/internal/config"
	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/logger"
	"github.com/aperture-ai/gateway/internal/modeladapter"
	"github.com/aperture-ai/gateway/internal/pipeline"
	"github.com/aperture-ai/gateway/internal/provideradapter"
	"github.com/aperture-ai/gateway/internal/resolver"
	"github.com/aperture-ai/gateway/internal/secrets"
	"github.com/aperture-ai/gateway/pkg/openai"
)

type memStore struct {
	models map[string]configstore.BranchModels
}

func (s *memStore) GetModelConfig(ctx context.Context, agent, branch string) (*configstore.BranchModels, error) {
	if models, ok := s.models[agent+"/"+branch]; ok {
		return &models, nil
	}
	return nil, configstore.ErrNotFound
}

func (s *memStore) GetUnredactedProviderConfig(ctx context.Context, slug string) (*configstore.ProviderConfig, error) {
	return nil, configstore.ErrNotFound
}

// mockVendor answers both the chat and embedding surfaces of the
// OpenAI-compatible protocol.
func mockVendor(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			if stream, _ := payload["stream"].(bool); stream {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"streamed\"}}]}\n\n")
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
				fmt.Fprint(w, "data: [DONE]\n\n")
				return
			}
			fmt.Fprint(w, `{"choices": [{"message": {"content": "mocked reply"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 3, "completion_tokens": 5, "total_tokens": 8}}`)
		case "/embeddings":
			fmt.Fprint(w, `{"data": [{"index": 0, "embedding": [0.1, 0.2]}], "usage": {"total_tokens": 4}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestServer(t *testing.T, vendorURL string) *Server {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Env:      "production",
			BasePath: "/v1",
			APIKeys:  []string{"test-key"},
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Cache: config.CacheConfig{
			ResolutionTTL:  time.Minute,
			ClientTTL:      time.Minute,
			ClientCapacity: 16,
		},
		Upstream: config.UpstreamConfig{Timeout: time.Minute},
		Providers: map[string]config.ProviderDefault{
			"groq":   {APIKeySecret: "GW_GROQ_KEY", BaseURL: vendorURL},
			"voyage": {APIKeySecret: "GW_VOYAGE_KEY", BaseURL: vendorURL},
		},
	}

	store := &memStore{models: map[string]configstore.BranchModels{
		"acme/main": {Models: []configstore.ModelConfig{
			{Alias: "fast", Type: "openai/gpt-oss-120b"},
			{Alias: "embed", Type: "voyage/voyage-3-large"},
		}},
	}}

	sec := secrets.Static{"GW_GROQ_KEY": "gk", "GW_VOYAGE_KEY": "vk"}
	registry := modeladapter.NewRegistry()
	factory := provideradapter.NewFactory(store, sec, cfg)
	res := resolver.New(store, cache.NewMemory(), cfg.Cache.ResolutionTTL)
	p := pipeline.New(res, registry, factory)

	return New(cfg, logger.Get(), p, registry)
}

// closeNotifyRecorder adds the http.CloseNotifier surface that gin's
// Context.Stream requires; httptest.ResponseRecorder does not provide it.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func do(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(&closeNotifyRecorder{rec, make(chan bool, 1)}, req)
	return rec
}

func authed() map[string]string {
	return map[string]string{"Authorization": "Bearer test-key"}
}

func TestHealth(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	rec := do(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestListModelsIsPublic(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	rec := do(s, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Object string `json:"object"`
		Data   []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	assert.NotEmpty(t, resp.Data)
}

func TestChatRequiresAuth(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	rec := do(s, http.MethodPost, "/v1/chat/completions", `{}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope openai.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, openai.TypeAuthentication, envelope.Error.Type)

	rec = do(s, http.MethodPost, "/v1/chat/completions", `{}`,
		map[string]string{"Authorization": "Bearer wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatValidation(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	rec := do(s, http.MethodPost, "/v1/chat/completions", `{"model": "acme/main/fast"}`, authed())
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope openai.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, openai.TypeInvalidRequest, envelope.Error.Type)
	assert.Contains(t, envelope.Error.Message, "messages")
}

func TestChatCompletion(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	body := `{"model": "acme/main/fast", "messages": [{"role": "user", "content": "hi"}]}`
	rec := do(s, http.MethodPost, "/v1/chat/completions", body, authed())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp openai.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Equal(t, "acme/main/fast", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "mocked reply", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestChatCompletionStreaming(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	body := `{"model": "acme/main/fast", "stream": true, "messages": [{"role": "user", "content": "hi"}]}`
	rec := do(s, http.MethodPost, "/v1/chat/completions", body, authed())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	out := rec.Body.String()
	assert.Contains(t, out, `"streamed"`)
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
}

func TestChatUnknownAlias(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	body := `{"model": "acme/main/ghost", "messages": [{"role": "user", "content": "hi"}]}`
	rec := do(s, http.MethodPost, "/v1/chat/completions", body, authed())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmbeddings(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	body := `{"model": "acme/main/embed", "input": "hello world"}`
	rec := do(s, http.MethodPost, "/v1/embeddings", body, authed())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp openai.EmbeddingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, []float64{0.1, 0.2}, resp.Data[0].Embedding)
}

func TestEmbeddingsRejectsChatModel(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	body := `{"model": "acme/main/fast", "input": "hello"}`
	rec := do(s, http.MethodPost, "/v1/embeddings", body, authed())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	vendor := mockVendor(t)
	defer vendor.Close()
	s := newTestServer(t, vendor.URL)

	rec := do(s, http.MethodOptions, "/v1/chat/completions", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
