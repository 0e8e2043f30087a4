package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/ajay443/smart-social-distancing/internal/api/models"
	"github.com/ajay443/smart-social-distancing/internal/cameras"
	"github.com/ajay443/smart-social-distancing/internal/events"
	"github.com/ajay443/smart-social-distancing/internal/logging"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
	"github.com/ajay443/smart-social-distancing/internal/mjpeg"
	"github.com/ajay443/smart-social-distancing/internal/version"
	"github.com/ajay443/smart-social-distancing/ui"
)

// CameraService is the camera surface the API serves.
type CameraService interface {
	mjpeg.FeedProvider
	List() []*cameras.Feed
	Count() int
}

// Options wires the server to the rest of the node.
type Options struct {
	CameraService CameraService
	EventBus      *events.Bus
	Stream        mjpeg.Config // MJPEG route tuning
	Prometheus    http.Handler // /metrics handler, nil disables the route
}

// Server is the Huma v2 API server plus the raw streaming routes.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	cameras    CameraService
	eventBus   *events.Bus
	logger     *slog.Logger

	// baseCtx parents every request context so Stop can end the
	// open-ended MJPEG and SSE responses.
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	cors := NewCORS(DefaultCORSConfig())
	cors.Register(mux)

	config := huma.DefaultConfig("Smart Social Distancing API", version.Get().Version)
	config.Info.Description = "Live annotated camera feeds and distancing telemetry"
	// Empty servers list makes OpenAPI use relative paths, working with any host.
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	server := &Server{
		api:        api,
		mux:        mux,
		cameras:    opts.CameraService,
		eventBus:   opts.EventBus,
		logger:     logging.GetLogger("api"),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}

	api.UseMiddleware(cors.Middleware)
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.Prometheus != nil {
		mux.Handle("GET /metrics", opts.Prometheus)
	}

	// MJPEG and snapshot routes bypass Huma: they stream multipart
	// responses for as long as the client stays connected.
	mjpeg.NewHandler(opts.CameraService, opts.Stream).Register(mux)

	server.registerRoutes()

	// The panel is served at the root; unmatched /api paths stay 404s.
	if panel, err := ui.Handler(); err == nil {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			panel.ServeHTTP(w, r)
		})
	}

	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves HTTP on addr and blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
		BaseContext: func(net.Listener) context.Context {
			return s.baseCtx
		},
	}

	return s.httpServer.ListenAndServe()
}

// Stop drains the server. Cancelling the base context ends the streaming
// sessions so Shutdown can finish within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")

	s.baseCancel()
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check service health and feed counts",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		clients := 0
		for _, stats := range metrics.GetAllFeedStats() {
			clients += stats.Clients
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Cameras: s.cameras.Count(),
				Clients: clients,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerCameraRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}
