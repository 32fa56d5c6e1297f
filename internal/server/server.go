package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Research is the set of operations the HTTP boundary exposes.
type Research interface {
	EnsureSession(ctx context.Context, id string) (string, error)
	Chat(ctx context.Context, id, message, mode string) (string, error)
	SearchPapers(ctx context.Context, id, query string, maxResults int) ([]models.Paper, error)
	AnalyzePaper(ctx context.Context, id string, p models.Paper) (models.Extraction, error)
	AnalyzeText(ctx context.Context, id, text string) (models.Extraction, error)
	GetTopics(ctx context.Context, id string) ([]string, error)
	GetCitations(ctx context.Context, id string) ([]models.Citation, error)
	GetFindings(ctx context.Context, id string) ([]models.Finding, error)
	GetPapers(ctx context.Context, id string, limit int) ([]models.Paper, error)
	GetContext(ctx context.Context, id string) (models.Snapshot, error)
	GetSummary(ctx context.Context, id string) (string, error)
	GenerateLiteratureReview(ctx context.Context, id, topic string) (string, error)
	ClearContext(ctx context.Context, id string) error
}

// Options configures the HTTP boundary.
type Options struct {
	Logger  *zap.Logger
	Metrics *telemetry.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// CookieMaxAge is the lifetime of the session cookie.
	CookieMaxAge time.Duration
	// AllowOrigins lists CORS origins; empty allows any.
	AllowOrigins []string
}

// New builds the echo instance with every route registered.
func New(research Research, opts Options) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(metricsMiddleware(opts.Metrics))

	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, SessionHeader},
		ExposeHeaders:    []string{SessionHeader},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	h := &ResearchHandler{Research: research}
	api := e.Group("/api")
	api.Use(sessionMiddleware(research, opts.CookieMaxAge))
	h.Register(api)
	return e
}

// Run serves e on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
