package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"charstudio/internal/payload"
	"charstudio/internal/sdapi"
	"charstudio/internal/tts"
)

const maxUploadBytes = 25 << 20

type Generator interface {
	Generate(ctx context.Context, baseURL string, mode payload.Mode, req payload.Request) (sdapi.Result, error)
	Ping(ctx context.Context, baseURL string) error
}

type Speaker interface {
	Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error)
}

type Options struct {
	Generator Generator
	Speech    Speaker
	Logger    *slog.Logger

	DefaultModel   string
	RequestTimeout time.Duration
}

type Server struct {
	Echo *echo.Echo

	gen          Generator
	speech       Speaker
	logger       *slog.Logger
	defaultModel string
	timeout      time.Duration
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 240 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("25M"))
	e.Use(requestLogger(logger))

	s := &Server{
		Echo:         e,
		gen:          opts.Generator,
		speech:       opts.Speech,
		logger:       logger,
		defaultModel: opts.DefaultModel,
		timeout:      timeout,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.GET("/options", s.handleGetOptions)
	api.POST("/prompt", s.handlePostPrompt)
	api.POST("/payload", s.handlePostPayload)
	api.POST("/generate", s.handlePostGenerate)
	api.POST("/export", s.handlePostExport)
	api.GET("/schema/animation", s.handleGetAnimationSchema)
	api.GET("/backend/ping", s.handleGetPing)
	api.POST("/tts", s.handlePostTTS)
}

func (s *Server) Start(addr string) error {
	s.logger.Info("web started", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("dur_ms", v.Latency.Milliseconds()),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "http", attrs...)
			return nil
		},
	})
}

type apiError struct {
	Error string `json:"error"`
}

func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, apiError{Error: msg})
}

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "character studio",
		"status":  "ok",
	})
}
