package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aperture-ai/gateway/internal/config"
	"github.com/aperture-ai/gateway/internal/modeladapter"
	"github.com/aperture-ai/gateway/internal/pipeline"
	"github.com/aperture-ai/gateway/internal/server/middleware"
	"github.com/aperture-ai/gateway/internal/server/validator"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	models   *modeladapter.Registry
}

func New(cfg *config.Config, logger *zap.Logger, p *pipeline.Pipeline, models *modeladapter.Registry) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.Init()

	engine := gin.New()
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Logger(logger))

	s := &Server{
		router:   engine,
		config:   cfg,
		logger:   logger,
		pipeline: p,
		models:   models,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
