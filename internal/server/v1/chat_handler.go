package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aperture-ai/gateway/internal/pipeline"
	"github.com/aperture-ai/gateway/internal/server/validator"
	"github.com/aperture-ai/gateway/internal/stream"
	"github.com/aperture-ai/gateway/pkg/openai"
)

type ChatHandler struct {
	pipeline *pipeline.Pipeline
}

func NewChatHandler(p *pipeline.Pipeline) *ChatHandler {
	return &ChatHandler{pipeline: p}
}

func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req openai.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(openai.InvalidRequestError(validator.ParseError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	resp, err := h.pipeline.Complete(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) handleStream(c *gin.Context, req *openai.ChatRequest) {
	events, translator, err := h.pipeline.Stream(c.Request.Context(), req)
	if err != nil {
		// Pre-stream failures are plain JSON errors; the SSE contract only
		// starts once headers are written.
		apiErr := openai.FromError(err)
		c.JSON(apiErr.Status, apiErr.Envelope())
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	done := false
	c.Stream(func(w io.Writer) bool {
		if done {
			return false
		}
		stream.Write(c.Writer, events, translator)
		done = true
		return false
	})
}
