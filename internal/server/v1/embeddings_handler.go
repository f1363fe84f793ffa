package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aperture-ai/gateway/internal/pipeline"
	"github.com/aperture-ai/gateway/internal/server/validator"
	"github.com/aperture-ai/gateway/pkg/openai"
)

type EmbeddingsHandler struct {
	pipeline *pipeline.Pipeline
}

func NewEmbeddingsHandler(p *pipeline.Pipeline) *EmbeddingsHandler {
	return &EmbeddingsHandler{pipeline: p}
}

func (h *EmbeddingsHandler) CreateEmbeddings(c *gin.Context) {
	var req openai.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(openai.InvalidRequestError(validator.ParseError(err)))
		return
	}
	if len(req.Input.Val) == 0 {
		_ = c.Error(openai.InvalidParamError("input must not be empty", "input"))
		return
	}

	resp, err := h.pipeline.Embed(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
