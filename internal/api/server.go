// internal/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"kiro-assistant/internal/assistant"
	"kiro-assistant/internal/common/config"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/models"
	"kiro-assistant/internal/research/pipeline"
)

// ChatService answers a chat message, streaming raw deltas.
type ChatService interface {
	Stream(ctx context.Context, history []models.ConversationTurn, message string, onDelta func(string) error) (*assistant.Answer, error)
}

// ResearchRunner runs the patient research pipeline.
type ResearchRunner interface {
	Run(ctx context.Context, requestID string, req *models.ResearchRequest) (*pipeline.Result, error)
}

// KnowledgeBase reports how many documents are loaded.
type KnowledgeBase interface {
	Len() int
}

// Status describes the service for GET /api/patient-research.
type Status struct {
	Version              string
	EmailProvider        string
	EmailEnabled         bool
	GenerationConfigured bool
}

type Dependencies struct {
	Chat      ChatService
	Research  ResearchRunner
	Knowledge KnowledgeBase
	Status    Status
}

type Server struct {
	echo   *echo.Echo
	cfg    config.ServerConfig
	deps   Dependencies
	logger logger.Logger
}

func NewServer(cfg config.ServerConfig, deps Dependencies, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, cfg: cfg, deps: deps, logger: log}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(s.requestLogger())
	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType},
		}))
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/ready", s.ready)
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler()))

	api := s.echo.Group("/api")
	api.POST("/kiro-ki", s.chat)
	api.POST("/patient-research", s.research)
	api.GET("/patient-research", s.researchStatus)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.echo,
		ReadTimeout:  config.GetDuration(s.cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(s.cfg.WriteTimeout),
	}
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.cfg.Address})
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := map[string]interface{}{
				"method":    v.Method,
				"path":      v.URI,
				"status":    v.Status,
				"latencyMs": v.Latency.Milliseconds(),
				"requestId": v.RequestID,
			}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
				s.logger.Warn("request failed", fields)
				return nil
			}
			s.logger.Info("request", fields)
			return nil
		},
	})
}

// handleError renders every error as {"error": "..."}. Non-HTTP errors never leak their text.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	} else {
		s.logger.Error("unhandled error", map[string]interface{}{
			"error":     err.Error(),
			"requestId": requestID(c),
		})
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
