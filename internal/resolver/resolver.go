package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aperture-ai/gateway/internal/cache"
	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/logger"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// Resolution is the outcome of mapping a client-facing alias path to a
// vendor-agnostic model type.
type Resolution struct {
	Agent  string   `json:"agent"`
	Branch string   `json:"branch"`
	Alias  string   `json:"alias"`
	Type   string   `json:"type"`
	Only   []string `json:"only,omitempty"`
}

// CustomProvider returns the forced provider slug when routing restricts
// selection, "" otherwise. Only the first entry is honored.
func (r Resolution) CustomProvider() string {
	if len(r.Only) == 0 {
		return ""
	}
	return r.Only[0]
}

// Resolver maps `{agent}/{branch}/{alias}` model paths to model types via
// the config store, with a TTL cache in front. Concurrent resolutions of
// the same key coalesce into a single store lookup.
type Resolver struct {
	store configstore.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

func New(store configstore.Store, c cache.Cache, ttl time.Duration) *Resolver {
	return &Resolver{store: store, cache: c, ttl: ttl}
}

// Resolve parses and resolves an alias path. Paths with anything other than
// exactly three non-empty segments are rejected before any lookup.
func (r *Resolver) Resolve(ctx context.Context, aliasPath string) (*Resolution, error) {
	segments := strings.Split(aliasPath, "/")
	if len(segments) != 3 || segments[0] == "" || segments[1] == "" || segments[2] == "" {
		return nil, openai.InvalidParamError(
			fmt.Sprintf("model must be an agent/branch/alias path, got %q", aliasPath), "model")
	}
	agent, branch, alias := segments[0], segments[1], segments[2]

	key := "resolve:" + aliasPath
	var cached Resolution
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("Resolution cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.lookup(ctx, agent, branch, alias, key)
	})
	if err != nil {
		return nil, err
	}
	res := v.(Resolution)
	return &res, nil
}

func (r *Resolver) lookup(ctx context.Context, agent, branch, alias, key string) (interface{}, error) {
	models, err := r.store.GetModelConfig(ctx, agent, branch)
	if err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			return nil, openai.NotFoundError(
				fmt.Sprintf("no models configured for %s/%s", agent, branch))
		}
		return nil, openai.ServerError("model config lookup failed", err)
	}

	for _, m := range models.Models {
		if m.Alias != alias {
			continue
		}
		res := Resolution{Agent: agent, Branch: branch, Alias: alias, Type: m.Type}
		if m.Routing != nil {
			res.Only = m.Routing.Only
		}
		if err := r.cache.Set(ctx, key, res, r.ttl); err != nil {
			logger.Warn("Resolution cache write failed", zap.String("key", key), zap.Error(err))
		}
		return res, nil
	}

	return nil, openai.NotFoundError(
		fmt.Sprintf("model alias %q not found on %s/%s", alias, agent, branch))
}
