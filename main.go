package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/ajay443/smart-social-distancing/cmd"
	"github.com/ajay443/smart-social-distancing/internal/api"
	"github.com/ajay443/smart-social-distancing/internal/cameras"
	"github.com/ajay443/smart-social-distancing/internal/config"
	"github.com/ajay443/smart-social-distancing/internal/events"
	"github.com/ajay443/smart-social-distancing/internal/logging"
	"github.com/ajay443/smart-social-distancing/internal/metrics/exporters"
	"github.com/ajay443/smart-social-distancing/internal/mjpeg"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Host string `help:"Host to bind" default:"0.0.0.0" toml:"server.host" env:"SERVER_HOST"`
	Port int    `help:"Port to listen on" short:"p" default:"8000" toml:"server.port" env:"SERVER_PORT"`

	// Distancing settings
	DistThreshold int `help:"Violation distance between people in pixels" default:"150" toml:"app.dist_threshold" env:"APP_DIST_THRESHOLD"`

	// Stream settings
	StreamQuality         int `help:"JPEG quality for served frames (1-100)" default:"80" toml:"stream.quality" env:"STREAM_QUALITY"`
	StreamFrameIntervalMs int `help:"Serve cadence per client in milliseconds (0 = as fast as writes drain)" default:"50" toml:"stream.frame_interval_ms" env:"STREAM_FRAME_INTERVAL_MS"`
	StreamMaxClients      int `help:"Concurrent stream clients (0 = unbounded)" default:"0" toml:"stream.max_clients" env:"STREAM_MAX_CLIENTS"`

	// Cameras settings
	CamerasConfig string `help:"Camera definitions file" default:"cameras.toml" toml:"cameras.config" env:"CAMERAS_CONFIG"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingCameras   string `help:"Camera lifecycle logging level" default:"info" toml:"logging.cameras" env:"LOGGING_CAMERAS"`
	LoggingIngest    string `help:"Engine ingest logging level" default:"info" toml:"logging.ingest" env:"LOGGING_INGEST"`
	LoggingMJPEG     string `help:"Stream handler logging level" default:"info" toml:"logging.mjpeg" env:"LOGGING_MJPEG"`
	LoggingPublisher string `help:"Frame publisher logging level" default:"info" toml:"logging.publisher" env:"LOGGING_PUBLISHER"`
}

func main() {
	var rootCmd *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.Load(opts, rootCmd); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"api":       opts.LoggingAPI,
				"cameras":   opts.LoggingCameras,
				"ingest":    opts.LoggingIngest,
				"mjpeg":     opts.LoggingMJPEG,
				"publisher": opts.LoggingPublisher,
			},
		})

		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Bridge log entries onto the bus for the /api/logs/stream SSE
		// clients.
		logging.SetCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		cameraService := cameras.NewService(eventBus, float64(opts.DistThreshold), nil)

		watcher := config.NewWatcher(opts.CamerasConfig, cameras.LoadSpecs, logging.GetLogger("config"))
		watcher.OnChange(func(specs map[string]cameras.CameraSpec) {
			if applyErr := cameraService.Apply(specs); applyErr != nil {
				logger.Warn("Camera reload applied with errors", "error", applyErr)
			}
		})

		telemetryExporter := exporters.NewTelemetryExporter(eventBus)

		server := api.NewServer(&api.Options{
			CameraService: cameraService,
			EventBus:      eventBus,
			Stream: mjpeg.Config{
				Quality:       opts.StreamQuality,
				FrameInterval: time.Duration(opts.StreamFrameIntervalMs) * time.Millisecond,
				MaxClients:    opts.StreamMaxClients,
			},
			Prometheus: exporters.HTTPHandler(),
		})

		hooks.OnStart(func() {
			cameraService.Start(context.Background())

			// A missing or broken cameras file should not keep the API
			// down; feeds arrive on the next successful reload.
			if specs, specErr := cameras.LoadSpecs(opts.CamerasConfig); specErr != nil {
				logger.Warn("Failed to load camera definitions", "path", opts.CamerasConfig, "error", specErr)
			} else if applyErr := cameraService.Apply(specs); applyErr != nil {
				logger.Warn("Some camera feeds failed to start", "error", applyErr)
			}

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Camera config watching disabled", "error", watchErr)
			}

			telemetryExporter.Start(context.Background())

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			logger.Info("Starting HTTP server", "addr", addr)
			if startErr := server.Start(addr); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			telemetryExporter.Stop()
			cameraService.Stop()
		})
	})

	rootCmd = cli.Root()
	rootCmd.Use = "distancing"
	rootCmd.AddCommand(cmd.CreateCheckConfigCmd())
	rootCmd.AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
