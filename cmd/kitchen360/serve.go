package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kitchen360/catalog/internal/api"
	"github.com/kitchen360/catalog/internal/cache"
	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/hotspot"
	"github.com/kitchen360/catalog/internal/influx"
	"github.com/kitchen360/catalog/internal/logging"
	intOtel "github.com/kitchen360/catalog/internal/otel"
	"github.com/kitchen360/catalog/internal/storage"
)

// runtime holds what every command that touches storage directly needs.
type runtime struct {
	logs     *logging.SlogManager
	logger   *slog.Logger
	dbLogger zerolog.Logger
	otel     *intOtel.Provider
	logFile  *os.File
	backend  storage.Backend
}

// newRuntime loads config, sets up logging into the logs directory and opens the
// configured storage backend.
// provider, if set, adds attributes to every slog record.
func newRuntime(opts *rootOptions, withLogFile bool, provider logging.ContextProvider) (*runtime, error) {
	if err := loadConfig(opts.configDir); err != nil {
		return nil, err
	}
	rt := &runtime{logs: logging.NewSlogManager()}
	level := viper.GetString("logLevel")

	if withLogFile {
		logsDir := viper.GetString("logsDir")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("create logs directory: %w", err)
		}
		path := logging.LogFilePath(logsDir, logging.ServiceName, time.Now())
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		rt.logFile = f
	}

	var logWriter io.Writer
	if rt.logFile != nil {
		logWriter = rt.logFile
	}
	otelProvider, err := intOtel.New(config.GetOTelConfig(), logWriter)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init OTel: %w", err)
	}
	rt.otel = otelProvider

	if provider != nil {
		rt.logs.SetContext(provider)
	}
	if rt.logFile != nil {
		rt.logs.Setup(rt.logFile, level, otelProvider.LoggerProvider())
		rt.dbLogger = logging.NewZerolog(rt.logFile, level, nil)
	} else {
		rt.logs.Setup(nil, level, otelProvider.LoggerProvider())
		rt.dbLogger = logging.NewZerolog(nil, level, nil)
	}
	rt.logger = rt.logs.Logger()
	slog.SetDefault(rt.logger)

	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, rt.logs.Component("storage"), rt.dbLogger)
	if err != nil {
		rt.close()
		return nil, err
	}
	if err := backend.Init(); err != nil {
		rt.close()
		return nil, fmt.Errorf("init %s storage: %w", storageCfg.Type, err)
	}
	rt.backend = backend
	rt.logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return rt, nil
}

func (rt *runtime) close() {
	if rt.backend != nil {
		if err := rt.backend.Close(); err != nil {
			rt.logger.Error("Storage close failed", "err", err)
		}
	}
	if rt.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.otel.Shutdown(ctx); err != nil && rt.logger != nil {
			rt.logger.Error("OTel shutdown failed", "err", err)
		}
	}
	if rt.logFile != nil {
		rt.logFile.Close()
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog server",
		Long: `Starts the HTTP API and the WebSocket viewer endpoint.

Storage, logging, OpenTelemetry and the InfluxDB activity sink are configured
in ` + config.FileName + ` or through KITCHEN360_* environment variables.`,
		Example: `  # Start with the config in the current directory
  kitchen360 serve

  # Override the listen address
  kitchen360 serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var current atomic.Pointer[api.Server]
			rt, err := newRuntime(opts, true, func() []slog.Attr {
				srv := current.Load()
				if srv == nil {
					return nil
				}
				attrs := []slog.Attr{slog.Int("sessions", srv.ActiveSessions())}
				return append(attrs, srv.RecentSelection().LogAttrs()...)
			})
			if err != nil {
				return err
			}
			defer rt.close()

			serverCfg := config.GetServerConfig()
			if addr != "" {
				serverCfg.Addr = addr
			}

			var activity hotspot.ActivityRecorder
			if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
				im := influx.NewManager(influxCfg, rt.dbLogger.With().Str("component", "influx").Logger())
				if err := im.Connect(cmd.Context()); err != nil {
					rt.logger.Warn("Activity sink unavailable", "err", err)
				} else {
					activity = im
				}
				defer im.Close()
			}

			srv := api.NewServer(cmd.Context(), api.Deps{
				Backend:  rt.backend,
				Server:   serverCfg,
				Viewer:   config.GetViewerConfig(),
				Images:   cache.NewImageCache(),
				Activity: activity,
				Logger:   rt.logger,
				Meter:    rt.otel.Meter("github.com/kitchen360/catalog/internal/api"),
			})
			current.Store(srv)

			server := &http.Server{
				Addr:              serverCfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				rt.logger.Info("Catalog available", "addr", serverCfg.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				rt.logger.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					rt.logger.Error("Server shutdown failed", "err", err)
					return err
				}
				rt.logger.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")
	return cmd
}
