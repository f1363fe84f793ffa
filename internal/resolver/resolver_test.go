package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperture-ai/gateway/internal/cache"
	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/pkg/openai"
)

type fakeStore struct {
	lookups int64
	delay   time.Duration
	models  map[string]configstore.BranchModels
}

func (f *fakeStore) GetModelConfig(ctx context.Context, agent, branch string) (*configstore.BranchModels, error) {
	atomic.AddInt64(&f.lookups, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if models, ok := f.models[agent+"/"+branch]; ok {
		return &models, nil
	}
	return nil, configstore.ErrNotFound
}

func (f *fakeStore) GetUnredactedProviderConfig(ctx context.Context, slug string) (*configstore.ProviderConfig, error) {
	return nil, configstore.ErrNotFound
}

func newFakeStore() *fakeStore {
	return &fakeStore{models: map[string]configstore.BranchModels{
		"acme/main": {Models: []configstore.ModelConfig{
			{Alias: "fast", Type: "google/gemini-3-flash"},
			{Alias: "pinned", Type: "openai/gpt-oss-120b",
				Routing: &configstore.Routing{Only: []string{"groq"}}},
		}},
	}}
}

func TestResolveAliasPath(t *testing.T) {
	r := New(newFakeStore(), cache.NewMemory(), time.Minute)

	res, err := r.Resolve(context.Background(), "acme/main/fast")
	require.NoError(t, err)
	assert.Equal(t, "google/gemini-3-flash", res.Type)
	assert.Empty(t, res.CustomProvider())
}

func TestResolveRoutingOnly(t *testing.T) {
	r := New(newFakeStore(), cache.NewMemory(), time.Minute)

	res, err := r.Resolve(context.Background(), "acme/main/pinned")
	require.NoError(t, err)
	assert.Equal(t, "groq", res.CustomProvider())
}

func TestResolveMalformedPaths(t *testing.T) {
	r := New(newFakeStore(), cache.NewMemory(), time.Minute)

	for _, path := range []string{"fast", "acme/fast", "acme/main/fast/extra", "acme//fast", ""} {
		_, err := r.Resolve(context.Background(), path)
		var apiErr *openai.Error
		require.ErrorAs(t, err, &apiErr, "path %q", path)
		assert.Equal(t, 400, apiErr.Status)
	}
}

func TestResolveUnknownAlias(t *testing.T) {
	r := New(newFakeStore(), cache.NewMemory(), time.Minute)

	_, err := r.Resolve(context.Background(), "acme/main/nope")
	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)

	_, err = r.Resolve(context.Background(), "ghost/main/fast")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestResolveCaches(t *testing.T) {
	store := newFakeStore()
	r := New(store, cache.NewMemory(), time.Minute)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "acme/main/fast")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&store.lookups))
}

func TestResolveCoalescesConcurrentLookups(t *testing.T) {
	store := newFakeStore()
	store.delay = 30 * time.Millisecond
	r := New(store, cache.NewMemory(), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), "acme/main/fast")
			assert.NoError(t, err)
			assert.Equal(t, "google/gemini-3-flash", res.Type)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&store.lookups))
}
