package main

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

	"connectrpc.com/connect"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/geocaching/internal/auth"
	"github.com/mmynk/geocaching/internal/config"
	"github.com/mmynk/geocaching/internal/metrics"
	"github.com/mmynk/geocaching/internal/middleware"
	"github.com/mmynk/geocaching/internal/service"
	"github.com/mmynk/geocaching/internal/storage"
	"github.com/mmynk/geocaching/pkg/api"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the map server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().Int("port", 0, "Port to listen on")
	cobra.CheckErr(a.v.BindPFlag("server.port", cmd.Flags().Lookup("port")))

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", a.settings.Database.Path)

	handler := newHandler(store, a.settings)
	addr := fmt.Sprintf(":%d", a.settings.Server.Port)
	server := &http.Server{
		Addr: addr,
		// h2c for HTTP/2 without TLS (required for Connect)
		Handler:           h2c.NewHandler(loggingMiddleware(corsMiddleware(handler)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// newHandler wires the MapService, metrics and health endpoints.
func newHandler(store storage.Store, settings *config.Settings) http.Handler {
	m := metrics.New()
	svc := service.NewMapService(store, service.Options{
		View: api.MapView{
			Center: api.Coordinate{Latitude: settings.Map.Latitude, Longitude: settings.Map.Longitude},
			Zoom:   settings.Map.Zoom,
		},
		SessionTTL: settings.Session.TTL,
		Metrics:    m,
	})

	interceptors := []connect.Interceptor{
		middleware.LoggingInterceptor(),
		middleware.MetricsInterceptor(m),
	}
	if settings.Auth.Secret != "" {
		jwtManager := auth.NewJWTManager(settings.Auth.Secret, settings.Auth.TokenTTL)
		interceptors = append(interceptors, middleware.RequireAuth(jwtManager, api.AdminProcedures...))
	} else {
		slog.Warn("auth.secret is empty, dataset import and reset are unauthenticated")
	}

	mux := http.NewServeMux()
	path, handler := api.NewMapServiceHandler(svc, connect.WithInterceptors(interceptors...))
	mux.Handle(path, handler)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, "+middleware.RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
