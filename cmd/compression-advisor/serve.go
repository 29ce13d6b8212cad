package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"
)

var (
	// Serve flags
	listenAddr      string
	purgeInterval   time.Duration
	shutdownTimeout = 10 * time.Second
)

func newServeMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics and a health check, purging history periodically",
		Args:  cobra.NoArgs,
		RunE:  run(runServe),
	}
	cmd.Flags().StringVar(&listenAddr, "listen", ":9464", "Listen address")
	cmd.Flags().DurationVar(&purgeInterval, "purge-interval", 24*time.Hour, "History purge interval, 0 disables")
	return cmd
}

func runServe(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.advisor.Ping(r.Context()); err != nil {
			pub := a.advisor.Sanitize(r.Context(), err)
			http.Error(w, pub.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if purgeInterval > 0 {
		go wait.UntilWithContext(ctx, func(ctx context.Context) {
			removed, err := a.advisor.Purge(ctx)
			if err != nil {
				a.logger.Error("history purge failed", "error", err)
				return
			}
			a.logger.Info("history purged", "removed", removed)
		}, purgeInterval)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("serving metrics", "addr", listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
