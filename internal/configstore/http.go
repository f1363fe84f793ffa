package configstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aperture-ai/gateway/internal/httpclient"
	"github.com/aperture-ai/gateway/internal/tenant"
)

// HTTPStore reaches the platform's config service through its generic CRUD
// API. The service owns agents, branches, models and provider credentials;
// the gateway only issues scoped reads.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPStore) headers(ctx context.Context) map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + s.token,
	}
	if id := tenant.FromContext(ctx); id != "" {
		h["X-Tenant-ID"] = id
	}
	return h
}

func (s *HTTPStore) GetModelConfig(ctx context.Context, agentSlug, branchSlug string) (*BranchModels, error) {
	url := fmt.Sprintf("%s/agents/%s/branches/%s/models", s.baseURL, agentSlug, branchSlug)

	var out BranchModels
	if err := httpclient.SendRequest(ctx, s.client, http.MethodGet, url, s.headers(ctx), nil, &out); err != nil {
		return nil, mapStoreError(err)
	}
	return &out, nil
}

func (s *HTTPStore) GetUnredactedProviderConfig(ctx context.Context, providerSlug string) (*ProviderConfig, error) {
	url := fmt.Sprintf("%s/providers/%s/unredacted", s.baseURL, providerSlug)

	var out struct {
		Value ProviderConfig `json:"value"`
	}
	if err := httpclient.SendRequest(ctx, s.client, http.MethodGet, url, s.headers(ctx), nil, &out); err != nil {
		return nil, mapStoreError(err)
	}
	return &out.Value, nil
}

func mapStoreError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}
