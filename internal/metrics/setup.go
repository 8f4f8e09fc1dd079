package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config controls the Prometheus exporter.
type Config struct {
	Enabled      bool
	Addr         string // Listen address for the scrape endpoint (empty = handler only)
	Path         string // Scrape path (default /metrics)
	BuildVersion string
	BuildCommit  string
}

// Setup holds the installed meter provider and the scrape handler.
type Setup struct {
	MeterProvider     *sdkmetric.MeterProvider
	PrometheusHandler http.Handler

	path   string
	server *http.Server
}

// Init installs a global MeterProvider backed by a Prometheus exporter.
// When cfg.Enabled is false it returns an empty Setup and the global no-op
// provider stays in place.
func Init(ctx context.Context, cfg Config) (*Setup, error) {
	s := &Setup{path: cfg.Path}
	if s.path == "" {
		s.path = "/metrics"
	}
	if !cfg.Enabled {
		return s, nil
	}

	reg := promclient.NewRegistry()
	exp, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exp),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "remindchat_*_duration_seconds"},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}},
		)),
	)
	otel.SetMeterProvider(mp)
	reset()

	s.MeterProvider = mp
	s.PrometheusHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	if cfg.BuildVersion != "" || cfg.BuildCommit != "" {
		RegisterBuildInfo(cfg.BuildVersion, cfg.BuildCommit)
	}
	instruments()

	return s, nil
}

// Serve exposes the scrape handler on addr in the background. A non-nil
// health handler is mounted at /health.
func (s *Setup) Serve(addr string, health http.Handler, logger *slog.Logger) {
	if s.PrometheusHandler == nil || addr == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, s.PrometheusHandler)
	if health != nil {
		mux.Handle("/health", health)
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", "addr", addr, "path", s.path)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}

// Shutdown stops the metrics server and flushes the provider.
func (s *Setup) Shutdown(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}
	if s.MeterProvider != nil {
		errs = append(errs, s.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
