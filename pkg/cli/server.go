package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mchmarny/cipherbench/pkg/metrics"
	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080

	portFlagName    = "port"
	addressFlagName = "address"
)

func newServerCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP server with the scoring API and Prometheus metrics",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			&urfave.IntFlag{
				Name:  portFlagName,
				Usage: "Port on which the server will listen",
				Value: serverPortDefault,
			},
			&urfave.StringFlag{
				Name:  addressFlagName,
				Usage: "Interface on which the server will listen",
				Value: "127.0.0.1",
			},
		},
	}
}

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if err := cfg.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	address := fmt.Sprintf("%s:%d", cmd.String(addressFlagName), cmd.Int(portFlagName))

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(cfg),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", fmt.Sprintf("http://%s", address))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(cfg *appConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/score", scoreAPIHandler(cfg))
	mux.HandleFunc("POST /api/runs", createRunAPIHandler(cfg))
	mux.HandleFunc("GET /api/runs", listRunsAPIHandler(cfg.DB))
	mux.HandleFunc("GET /api/runs/{id}", getRunAPIHandler(cfg.DB))
	mux.HandleFunc("DELETE /api/runs/{id}", deleteRunAPIHandler(cfg.DB))
	mux.HandleFunc("GET /api/state", stateAPIHandler(cfg.DB))
	mux.Handle("GET /metrics", metrics.Handler(cfg.Registry))

	return mux
}
