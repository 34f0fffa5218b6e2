package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmslite/drivetemp/internal/api"
	"github.com/nmslite/drivetemp/internal/auth"
	"github.com/nmslite/drivetemp/internal/config"
	"github.com/nmslite/drivetemp/internal/metrics"
	"github.com/nmslite/drivetemp/internal/sink"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if a.v.IsSet("host") {
				cfg.Server.Host = a.v.GetString("host")
			}
			if a.v.IsSet("port") {
				cfg.Server.Port = a.v.GetInt("port")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closeLog, err := a.logger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ln, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, ln, logger)
		},
	}

	cmd.Flags().String("host", "", "listen address")
	cmd.Flags().Int("port", 0, "listen port")
	a.v.BindPFlag("host", cmd.Flags().Lookup("host"))
	a.v.BindPFlag("port", cmd.Flags().Lookup("port"))

	return cmd
}

// runServer serves on ln until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, cfg *config.Config, ln net.Listener, logger *slog.Logger) error {
	p, err := newPipeline(cfg.Pipeline)
	if err != nil {
		ln.Close()
		return err
	}

	var authService *auth.Service
	if cfg.Auth.JWTSecret != "" {
		authService, err = auth.NewService(
			cfg.Auth.JWTSecret,
			cfg.Auth.AdminUsername,
			cfg.Auth.AdminPassword,
			cfg.Auth.JWTExpiry(),
		)
		if err != nil {
			ln.Close()
			return err
		}
	} else {
		logger.Warn("auth.jwt_secret is not set, the convert endpoint is public")
	}

	be, err := openBackends(ctx, cfg, logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer be.Close()

	router := api.NewRouter(&api.Dependencies{
		Pipeline:     p,
		Auth:         authService,
		Metrics:      metrics.NewRecorder(cfg.Metrics.Namespace),
		Sinks:        append([]sink.Sink{sink.NewDiagnostics(logger)}, be.sinks...),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Ready:        be.Ready,
		Logger:       logger,
	})

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", ln.Addr().String())
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
