package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamgate/streamgate/internal/config"
	"github.com/streamgate/streamgate/internal/gateway"
	internalhttp "github.com/streamgate/streamgate/internal/http"
	"github.com/streamgate/streamgate/internal/observability"
	"github.com/streamgate/streamgate/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streamgate server",
	Long: `Start the streamgate HTTP server.

The server provides:
- POST /stream and /stream-yt to submit sources
- HLS playback at /hls/:id/ and direct byte-range playback at /stream/:id
- Session status, seek, and subtitle endpoints
- Health and resource introspection`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Session folders never survive a restart; sweep leftovers before the
	// registry starts handing out ids.
	if removed, err := gateway.CleanupOrphanedFolders(cfg.Storage.StreamDir, logger); err != nil {
		logger.Warn("orphaned folder sweep failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("removed orphaned session folders", slog.Int("count", removed))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := internalhttp.NewServer(internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, logger, version.Short())
	server.RegisterRoutes(gw, version.Short())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		// Bind failure or fatal server error.
		gw.Close()
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	// Stop accepting requests, give in-flight responses a drain window,
	// then close every session.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.DrainTimeout+cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", slog.String("error", err.Error()))
	}

	cancel()
	gw.Close()

	// Give watcher goroutines a moment to observe cancellation.
	time.Sleep(100 * time.Millisecond)
	logger.Info("shutdown complete")
	return nil
}
