package server

import (
	"github.com/aperture-ai/gateway/internal/server/middleware"
	v1 "github.com/aperture-ai/gateway/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Tracing("gateway"))
	s.router.Use(middleware.ErrorHandler())

	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group(s.config.Server.BasePath)

	// Model discovery is public; clients browse before authenticating.
	modelHandler := v1.NewModelHandler(s.models)
	api.GET("/models", modelHandler.ListModels)
	api.GET("/models/:author/:slug/endpoints", modelHandler.GetModelEndpoints)

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)

	authed := api.Group("")
	authed.Use(middleware.Auth(s.config.Server.APIKeys))
	authed.Use(limiter.Middleware())
	{
		chatHandler := v1.NewChatHandler(s.pipeline)
		authed.POST("/chat/completions", chatHandler.CreateCompletion)

		embeddingsHandler := v1.NewEmbeddingsHandler(s.pipeline)
		authed.POST("/embeddings", embeddingsHandler.CreateEmbeddings)
	}
}
