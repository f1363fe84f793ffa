package configstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("configstore: not found")

// ModelConfig binds a client-facing alias to a vendor-agnostic model type.
type ModelConfig struct {
	Alias   string   `json:"alias"`
	Type    string   `json:"type"`
	Routing *Routing `json:"routing,omitempty"`
}

// Routing restricts provider selection. Only the first entry of Only is
// honored; a single custom provider per model is the supported shape.
type Routing struct {
	Only []string `json:"only,omitempty"`
}

// BranchModels is the model list declared on one agent branch.
type BranchModels struct {
	Models []ModelConfig `json:"models"`
}

// ProviderConfig is the credential payload for one provider, a discriminated
// union keyed by the provider slug: API-key form (groq, voyage, bedrock
// bearer keys), role/region form (bedrock IAM), service-account form (vertex).
// Never log this unredacted.
type ProviderConfig struct {
	Provider string `json:"provider"`

	APIKey string `json:"api_key,omitempty"`

	Region  string `json:"region,omitempty"`
	RoleARN string `json:"role_arn,omitempty"`

	Project            string `json:"project,omitempty"`
	Location           string `json:"location,omitempty"`
	ServiceAccountJSON string `json:"service_account_json,omitempty"`

	BaseURL string `json:"base_url,omitempty"`
}

// Hash returns a digest of the full credential payload. Provider-client
// cache keys incorporate it so rotated or tenant-specific credentials never
// collide with another tenant's cached client.
func (p ProviderConfig) Hash() string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Redacted returns a copy safe for logging.
func (p ProviderConfig) Redacted() ProviderConfig {
	out := p
	if out.APIKey != "" {
		out.APIKey = "[redacted]"
	}
	if out.ServiceAccountJSON != "" {
		out.ServiceAccountJSON = "[redacted]"
	}
	return out
}

// Store is the narrow interface the gateway consumes. Agents, branches and
// provider credentials are owned elsewhere; the core only reads them.
type Store interface {
	// GetModelConfig returns the models declared on (agentSlug, branchSlug).
	GetModelConfig(ctx context.Context, agentSlug, branchSlug string) (*BranchModels, error)

	// GetUnredactedProviderConfig returns the stored credentials for a
	// provider slug, scoped to the tenant on the context.
	GetUnredactedProviderConfig(ctx context.Context, providerSlug string) (*ProviderConfig, error)
}
