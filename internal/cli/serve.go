package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/muza/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	rt.engine.Graph.Start(cfg.Graph.EvolveInterval)
	rt.engine.StartReflection(cfg.Graph.ReflectInterval)

	srv := server.New(rt.engine, VersionString(),
		server.WithLogger(logger.Named("http")),
		server.WithMetrics(rt.metrics),
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
		server.WithFrameInterval(cfg.Graph.FrameInterval),
	)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("muza serving",
			zap.String("addr", addr),
			zap.String("db", rt.where),
			zap.String("key", cfg.Graph.StorageKey),
			zap.String("llm", rt.provider()),
			zap.Int("nodes", rt.engine.Graph.Len()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
