package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tipflow/internal/api"
	"tipflow/internal/config"
	"tipflow/internal/logging"
	"tipflow/internal/queue"
	"tipflow/internal/services"
)

// maxEventBytes bounds a single event submission.
const maxEventBytes = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	echo   *echo.Echo

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "api", "configure", "api.bind is empty", nil)
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
		daemon: d,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = srv.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(srv.requestLogger())

	e.GET("/healthz", srv.handleHealth)
	if cfg.Metrics.Enabled && d.metrics != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(d.metrics.Handler()))
	}

	group := e.Group("/api", jwtMiddleware(cfg.API.JWTSecret, cfg.API.JWTIssuer))
	group.POST("/events", srv.handleEvent)
	group.GET("/runs", srv.handleRuns)
	group.GET("/runs/:id", srv.handleRun)
	group.POST("/runs/:id/retry", srv.handleRetry)
	group.GET("/status", srv.handleStatus)

	srv.echo = e
	srv.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []logging.Attr{
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
				logging.String(logging.FieldCorrelationID, v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, logging.Error(v.Error))
			}
			s.logger.Debug("api request", logging.Args(attrs...)...)
			return nil
		},
	})
}

func (s *apiServer) handleHealth(c echo.Context) error {
	if !s.daemon.running.Load() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "stopped"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleEvent(c echo.Context) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxEventBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("event body exceeds %d bytes", tooLarge.Limit))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
	}
	run, err := s.daemon.SubmitEvent(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, api.EventAcceptedResponse{RunID: run.ID, Status: string(run.Status)})
}

func (s *apiServer) handleRuns(c echo.Context) error {
	var statuses []queue.Status
	for _, value := range c.QueryParams()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := queue.ParseStatus(part)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			statuses = append(statuses, status)
		}
	}
	runs, err := s.daemon.ListRuns(c.Request().Context(), statuses)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.RunListResponse{Runs: api.FromRuns(runs)})
}

func (s *apiServer) handleRun(c echo.Context) error {
	run, steps, err := s.daemon.DescribeRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if run == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, api.RunDetailResponse{Run: api.FromRun(run), Steps: api.FromSteps(steps)})
}

func (s *apiServer) handleRetry(c echo.Context) error {
	updated, err := s.daemon.RetryRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if updated == 0 {
		return echo.NewHTTPError(http.StatusConflict, "run not found or not failed")
	}
	return c.JSON(http.StatusOK, api.RetryResponse{Updated: updated})
}

func (s *apiServer) handleStatus(c echo.Context) error {
	status := s.daemon.Status(c.Request().Context())
	return c.JSON(http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		DatabasePath:  status.DatabasePath,
		LockFilePath:  status.LockFilePath,
		BrokerEnabled: status.BrokerEnabled,
		Workflow:      api.FromStatusSummary(status.Workflow),
	})
}

// handleError renders every failure as an api.ErrorResponse. Classified
// service errors map onto HTTP status codes; anything else is a 500.
func (s *apiServer) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	body := api.ErrorResponse{Error: err.Error()}

	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		body.Error = fmt.Sprint(httpErr.Message)
	case errors.Is(err, services.ErrValidation), errors.Is(err, queue.ErrAmbiguousID):
		code = http.StatusBadRequest
		body.Kind = services.Details(err).Kind
	case errors.Is(err, services.ErrNotFound):
		code = http.StatusNotFound
		body.Kind = services.Details(err).Kind
	default:
		s.logger.Error("api request failed",
			logging.Error(err),
			logging.String("uri", c.Request().RequestURI),
			logging.String(logging.FieldEventType, "api_error"),
		)
		body.Error = "internal error"
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
