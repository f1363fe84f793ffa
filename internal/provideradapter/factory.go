package provideradapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aperture-ai/gateway/internal/cache"
	"github.com/aperture-ai/gateway/internal/config"
	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/logger"
	"github.com/aperture-ai/gateway/internal/secrets"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// DefaultOrder is the documented fallback precedence when a model type is
// served by more than one vendor: the first adapter whose support table
// contains the type wins. Precedence is a deliberate, explicit list here,
// not registration order. Whether selection should instead be capability-
// or cost-based is an open product question.
var DefaultOrder = []string{"bedrock", "voyage", "groq", "vertex"}

type constructor func(ctx context.Context, f *Factory, creds configstore.ProviderConfig, modelType string) (Adapter, error)

var constructors = map[string]constructor{
	"bedrock": newBedrock,
	"voyage":  newVoyage,
	"groq":    newGroq,
	"vertex":  newVertex,
}

// supportTables maps each provider slug to its static modelType→vendorID
// table, declared next to the adapter that owns it.
var supportTables = map[string]map[string]string{
	"bedrock": bedrockModels,
	"voyage":  voyageModels,
	"groq":    groqModels,
	"vertex":  vertexModels,
}

// Factory builds and memoizes provider adapters. Client construction is
// expensive (role assumption, service-account token exchange), so instances
// are cached process-wide and reused across requests: by `slug:modelType`
// for platform defaults, by `slug:<config hash>:modelType` for tenant
// credentials so rotated or tenant-specific payloads never collide.
type Factory struct {
	store    configstore.Store
	secrets  secrets.Store
	defaults map[string]config.ProviderDefault
	client   *http.Client
	adapters *cache.Objects[Adapter]
}

func NewFactory(store configstore.Store, sec secrets.Store, cfg *config.Config) *Factory {
	return &Factory{
		store:    store,
		secrets:  sec,
		defaults: cfg.Providers,
		client:   &http.Client{Timeout: cfg.Upstream.Timeout},
		adapters: cache.NewObjects[Adapter](cfg.Cache.ClientCapacity, cfg.Cache.ClientTTL),
	}
}

// errNoDefaults marks a provider the platform carries no credentials for.
// Selection falls through to the next provider in precedence order.
var errNoDefaults = errors.New("no platform defaults")

// CreateDefault walks the ordered precedence list and returns the first
// configured provider that supports the model type, authenticated with the
// platform's own credentials.
func (f *Factory) CreateDefault(ctx context.Context, modelType string) (Adapter, error) {
	for _, slug := range DefaultOrder {
		if _, ok := supportTables[slug][modelType]; !ok {
			continue
		}

		key := slug + ":" + modelType
		if adapter, ok := f.adapters.Get(key); ok {
			return adapter, nil
		}

		creds, err := f.defaultCredentials(ctx, slug)
		if err != nil {
			if errors.Is(err, errNoDefaults) {
				continue
			}
			return nil, openai.ServerError(
				fmt.Sprintf("provider %s is not configured", slug), err)
		}

		return f.build(ctx, key, slug, *creds, modelType)
	}

	return nil, openai.InvalidParamError(
		fmt.Sprintf("no configured provider supports model type %q", modelType), "model")
}

// CreateCustom builds an adapter for an explicitly routed provider using
// the tenant's stored credentials.
func (f *Factory) CreateCustom(ctx context.Context, modelType, providerSlug string) (Adapter, error) {
	if _, ok := supportTables[providerSlug][modelType]; !ok {
		return nil, openai.InvalidParamError(
			fmt.Sprintf("model type %q is not supported by provider %q", modelType, providerSlug), "model")
	}

	creds, err := f.store.GetUnredactedProviderConfig(ctx, providerSlug)
	if err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			return nil, openai.NotFoundError(
				fmt.Sprintf("no provider config for slug %q", providerSlug))
		}
		return nil, openai.ServerError("provider config lookup failed", err)
	}

	key := providerSlug + ":" + creds.Hash() + ":" + modelType
	if adapter, ok := f.adapters.Get(key); ok {
		return adapter, nil
	}

	return f.build(ctx, key, providerSlug, *creds, modelType)
}

func (f *Factory) build(ctx context.Context, key, slug string, creds configstore.ProviderConfig, modelType string) (Adapter, error) {
	construct, ok := constructors[slug]
	if !ok {
		return nil, openai.InvalidParamError(
			fmt.Sprintf("unknown provider %q", slug), "model")
	}

	start := time.Now()
	adapter, err := construct(ctx, f, creds, modelType)
	if err != nil {
		return nil, err
	}

	f.adapters.Set(key, adapter)
	logger.Debug("Provider adapter constructed",
		zap.String("provider", slug),
		zap.String("model_type", modelType),
		zap.Duration("took", time.Since(start)),
	)
	return adapter, nil
}

// defaultCredentials assembles the platform-owned credential payload for a
// provider from config references and the secret store.
func (f *Factory) defaultCredentials(ctx context.Context, slug string) (*configstore.ProviderConfig, error) {
	def, ok := f.defaults[slug]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", slug, errNoDefaults)
	}

	creds := &configstore.ProviderConfig{
		Provider: slug,
		Region:   def.Region,
		RoleARN:  def.RoleARN,
		Project:  def.Project,
		Location: def.Location,
		BaseURL:  def.BaseURL,
	}

	if def.APIKeySecret != "" {
		key, err := f.secrets.GetSecret(ctx, def.APIKeySecret)
		if err != nil {
			return nil, err
		}
		creds.APIKey = key
	}
	if def.ServiceAccountSecret != "" {
		sa, err := f.secrets.GetSecret(ctx, def.ServiceAccountSecret)
		if err != nil {
			return nil, err
		}
		creds.ServiceAccountJSON = sa
	}

	return creds, nil
}

// ProvidersFor lists the provider slugs able to serve a model type, in
// precedence order. Used by the model listing endpoints.
func ProvidersFor(modelType string) []string {
	var out []string
	for _, slug := range DefaultOrder {
		if _, ok := supportTables[slug][modelType]; ok {
			out = append(out, slug)
		}
	}
	return out
}

// vendorModelID resolves the vendor-native id for a model type from the
// provider's static table.
func vendorModelID(slug, modelType string) (string, error) {
	id, ok := supportTables[slug][modelType]
	if !ok {
		return "", openai.InvalidParamError(
			fmt.Sprintf("model type %q is not supported by provider %q", modelType, slug), "model")
	}
	return id, nil
}
