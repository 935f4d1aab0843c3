package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tartarus-sandbox/persephone/pkg/hermes"
	"github.com/tartarus-sandbox/persephone/pkg/persephone"
)

func newIngestCmd(a *app) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Continuously pull a Prometheus range query into the history store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pc := a.cfg.Prometheus
			if query != "" {
				pc.Query = query
			}

			store, err := openStore(a.cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			if days := a.cfg.Store.RetentionDays; days > 0 {
				if err := store.Prune(ctx, days); err != nil {
					a.logger.Warn("failed to prune history", "error", err, "retention_days", days)
				}
			}

			collector, err := persephone.NewPrometheusCollector(pc.URL, pc.QPS)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			ingestor, err := persephone.NewIngestor(persephone.IngestorConfig{
				Collector: collector,
				Store:     store,
				Interval:  pc.Interval,
				Step:      pc.Step,
				Query:     pc.Query,
				Logger:    hermes.NewSlogAdapter(a.logger),
				Metrics:   hermes.NewPrometheusMetrics(reg),
			})
			if err != nil {
				return err
			}

			if a.cfg.MetricsAddr != "" {
				srv := &http.Server{
					Addr:              a.cfg.MetricsAddr,
					Handler:           metricsMux(reg),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
			}

			a.logger.Info("starting ingestion", "url", pc.URL, "query", pc.Query, "interval", pc.Interval)
			return ingestor.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "PromQL range query (overrides prometheus.query)")
	return cmd
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
