package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/api"
)

const shutdownGrace = 10 * time.Second

// newServeCmd creates the 'serve' subcommand exposing the snapshot
// over HTTP alongside health and metrics endpoints.
func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the snapshot over HTTP",
		Long: `Starts a read-only HTTP server over the persisted snapshot with
health, readiness, and Prometheus metrics endpoints. The server shuts
down gracefully on SIGINT or SIGTERM.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cfg := appInstance.Config()
			if cmd.Flags().Changed("port") {
				cfg.Serve.Port = port
			}

			return runServe(cmd.Context(), appInstance, cfg.Serve.Port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides serve.port)")

	return cmd
}

func runServe(ctx context.Context, appInstance App, port int) error {
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(appInstance.Store(), logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("snapshot server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve snapshot: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down snapshot server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown snapshot server: %w", err)
	}
	return nil
}
