package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeMetricsCommand(ctx *commandContext) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve /metrics, /health and /ready until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				if address == "" {
					address = a.config.Metrics.Address
				}
				return serveMetrics(runCtx, a, address)
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Listen address (defaults to metrics.address)")
	return cmd
}

func newMetricsMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if a.redis != nil {
			if err := a.redis.Ping(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "redis unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func startMetricsServer(a *app, address string) (*http.Server, <-chan error) {
	server := &http.Server{
		Addr:              address,
		Handler:           newMetricsMux(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("health/metrics server listening", map[string]interface{}{"address": address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return server, errCh
}

func stopMetricsServer(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func serveMetrics(ctx context.Context, a *app, address string) error {
	server, errCh := startMetricsServer(a, address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received, stopping server", nil)
	return stopMetricsServer(server)
}

// withBackgroundMetrics exposes /metrics while a one-shot command runs, when metrics are enabled.
func withBackgroundMetrics(a *app, fn func() error) error {
	if !a.config.Metrics.Enabled {
		return fn()
	}
	server, errCh := startMetricsServer(a, a.config.Metrics.Address)
	defer func() {
		if err := stopMetricsServer(server); err != nil {
			a.logger.Warn("failed to stop metrics server", map[string]interface{}{"error": err})
		}
		if err, ok := <-errCh; ok && err != nil {
			a.logger.Warn("metrics server failed", map[string]interface{}{"error": err})
		}
	}()
	return fn()
}
