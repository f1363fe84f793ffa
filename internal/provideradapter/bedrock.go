package provideradapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/httpclient"
	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/internal/logger"
	"github.com/aperture-ai/gateway/pkg/openai"
)

var bedrockModels = map[string]string{
	"openai/gpt-oss-120b":       "openai.gpt-oss-120b-1:0",
	"anthropic/claude-sonnet-4": "anthropic.claude-sonnet-4-20250514-v1:0",
	"anthropic/claude-haiku-4":  "anthropic.claude-haiku-4-20250815-v1:0",
}

// bedrock talks to the OpenAI-compatibility endpoint of the runtime plane
// with a bearer API key. Some accounts front models with provisioned
// inference profiles; those are resolved against the control plane on first
// use and memoized on the adapter for its cached lifetime.
type bedrock struct {
	compat     compatChat
	modelID    string
	controlURL string

	mu       sync.Mutex
	resolved bool
	invoke   string
}

type bedrockProfilePage struct {
	Summaries []struct {
		ProfileID string `json:"inferenceProfileId"`
		Models    []struct {
			ModelARN string `json:"modelArn"`
		} `json:"models"`
	} `json:"inferenceProfileSummaries"`
	NextToken string `json:"nextToken"`
}

func newBedrock(_ context.Context, f *Factory, creds configstore.ProviderConfig, modelType string) (Adapter, error) {
	modelID, err := vendorModelID("bedrock", modelType)
	if err != nil {
		return nil, err
	}
	if creds.APIKey == "" {
		return nil, openai.ServerError("bedrock credentials missing api key", nil)
	}

	region := creds.Region
	if region == "" {
		region = "us-east-1"
	}
	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/openai/v1", region)
	}

	return &bedrock{
		compat: compatChat{
			client:  f.client,
			baseURL: baseURL,
			headers: map[string]string{"Authorization": "Bearer " + creds.APIKey},
		},
		modelID:    modelID,
		controlURL: fmt.Sprintf("https://bedrock.%s.amazonaws.com", region),
	}, nil
}

func (b *bedrock) Slug() string    { return "bedrock" }
func (b *bedrock) ModelID() string { return b.modelID }

// TransformOptions lowers the generic reasoning bag. Effort-only models use
// the protocol's reasoning_effort field; budgeted models get the config
// object in the endpoint's snake_case convention.
func (b *bedrock) TransformOptions(opts *llm.CallOptions) {
	reasoning, ok := opts.ReasoningOption()
	if !ok {
		return
	}
	delete(opts.ProviderOptions, "reasoning")

	vendor := map[string]interface{}{}
	if effort, ok := reasoning["effort"].(string); ok && len(reasoning) == 1 {
		vendor["reasoning_effort"] = effort
	} else {
		vendor["reasoning_config"] = toSnakeKeys(reasoning)
	}
	opts.SetProviderOption("bedrock", vendor)
}

func (b *bedrock) TransformPrompt(msgs []llm.Message) []llm.Message {
	return msgs
}

func (b *bedrock) Complete(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (*llm.Result, error) {
	return b.compat.complete(ctx, b.payload(ctx, msgs, opts, false))
}

func (b *bedrock) Stream(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions) (<-chan llm.Event, error) {
	return b.compat.stream(ctx, b.payload(ctx, msgs, opts, true))
}

func (b *bedrock) payload(ctx context.Context, msgs []llm.Message, opts *llm.CallOptions, stream bool) map[string]interface{} {
	payload := b.compat.buildPayload(b.invokeID(ctx), msgs, opts, stream)
	if vendor, ok := opts.ProviderOptions["bedrock"].(map[string]interface{}); ok {
		for k, v := range vendor {
			payload[k] = v
		}
	}
	return payload
}

// invokeID returns the id to invoke with: the matching inference profile
// when one exists, the static model id otherwise. Resolution runs once per
// adapter; lookup failures fall back silently so a control-plane outage
// never blocks inference.
func (b *bedrock) invokeID(ctx context.Context) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resolved {
		return b.invoke
	}

	b.resolved = true
	b.invoke = b.modelID

	profile, err := b.findProfile(ctx)
	if err != nil {
		logger.Warn("Inference profile lookup failed, using static model id",
			zap.String("model_id", b.modelID),
			zap.Error(err),
		)
		return b.invoke
	}
	if profile != "" {
		b.invoke = profile
	}
	return b.invoke
}

func (b *bedrock) findProfile(ctx context.Context) (string, error) {
	token := ""
	for {
		query := url.Values{"maxResults": {"100"}}
		if token != "" {
			query.Set("nextToken", token)
		}

		var page bedrockProfilePage
		err := httpclient.GetJSON(ctx, b.compat.client, b.controlURL+"/inference-profiles", b.compat.headers, query, &page)
		if err != nil {
			return "", err
		}

		for _, s := range page.Summaries {
			for _, m := range s.Models {
				if strings.HasSuffix(m.ModelARN, "/"+b.modelID) {
					return s.ProfileID, nil
				}
			}
		}

		if page.NextToken == "" {
			return "", nil
		}
		token = page.NextToken
	}
}
