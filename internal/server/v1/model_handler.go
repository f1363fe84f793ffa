package v1

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aperture-ai/gateway/internal/llm"
	"github.com/aperture-ai/gateway/internal/modeladapter"
	"github.com/aperture-ai/gateway/internal/provideradapter"
	"github.com/aperture-ai/gateway/pkg/openai"
)

// catalogEntry carries the listing metadata the registry itself does not
// own: release date and free-tier allowance.
type catalogEntry struct {
	Created           int64
	MonthlyFreeTokens int64
}

var catalog = map[string]catalogEntry{
	"openai/gpt-oss-120b":       {Created: 1722902400, MonthlyFreeTokens: 0},
	"anthropic/claude-sonnet-4": {Created: 1747094400, MonthlyFreeTokens: 0},
	"anthropic/claude-haiku-4":  {Created: 1755216000, MonthlyFreeTokens: 0},
	"google/gemini-3-pro":       {Created: 1765324800, MonthlyFreeTokens: 0},
	"google/gemini-3-flash":     {Created: 1765324800, MonthlyFreeTokens: 1000000},
	"google/gemini-2.5-flash":   {Created: 1742342400, MonthlyFreeTokens: 1000000},
	"voyage/voyage-3-large":     {Created: 1736208000, MonthlyFreeTokens: 0},
}

type ModelHandler struct {
	registry *modeladapter.Registry
}

func NewModelHandler(registry *modeladapter.Registry) *ModelHandler {
	return &ModelHandler{registry: registry}
}

// ListModels returns the platform model catalog. Public by design: clients
// browse before authenticating.
func (h *ModelHandler) ListModels(c *gin.Context) {
	types := h.registry.Types()
	sort.Strings(types)

	list := openai.ModelList{Object: "list", Data: make([]openai.Model, 0, len(types))}
	for _, t := range types {
		model, err := h.buildModel(t, false)
		if err != nil {
			continue
		}
		list.Data = append(list.Data, *model)
	}

	c.JSON(http.StatusOK, list)
}

// GetModelEndpoints returns one model with its serving endpoints expanded.
func (h *ModelHandler) GetModelEndpoints(c *gin.Context) {
	modelType := c.Param("author") + "/" + c.Param("slug")

	model, err := h.buildModel(modelType, true)
	if err != nil {
		apiErr := openai.NotFoundError("model " + modelType + " not found")
		c.JSON(apiErr.Status, apiErr.Envelope())
		return
	}

	c.JSON(http.StatusOK, model)
}

func (h *ModelHandler) buildModel(modelType string, withEndpoints bool) (*openai.Model, error) {
	adapter, err := h.registry.GetAdapter(modelType)
	if err != nil {
		return nil, err
	}

	entry := catalog[modelType]
	modality := "text"
	if adapter.Modality == llm.ModalityEmbedding {
		modality = "embedding"
	}

	author, _, _ := strings.Cut(modelType, "/")

	model := &openai.Model{
		ID:      modelType,
		Name:    adapter.DisplayName,
		Created: entry.Created,
		OwnedBy: author,
		Architecture: openai.Architecture{
			OutputModalities: []string{modality},
		},
		Pricing: openai.Pricing{MonthlyFreeTokens: entry.MonthlyFreeTokens},
	}

	if withEndpoints {
		for _, slug := range provideradapter.ProvidersFor(modelType) {
			model.Endpoints = append(model.Endpoints, openai.ModelEndpoint{Tag: slug})
		}
	}
	return model, nil
}
