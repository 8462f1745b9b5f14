// Package metrics holds the prometheus collectors shared by the resolver,
// the mail-exchange cache and the chunk scheduler.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace = "domain_email_records"
)

var (
	durationBuckets = []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20, 60}

	operationDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Name:      "operation_duration_seconds",
		Buckets:   durationBuckets,
	}, []string{"op", "name"})

	operationStatusCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "operation_status",
	}, []string{"op", "status"})

	domainsRemainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "domains_remaining",
	})
)

// TrackDuration starts a timer for operation; call the returned func to observe it.
func TrackDuration(operation string) func() {
	return TrackNamedDuration(operation, "")
}

// TrackNamedDuration is TrackDuration with a second label, e.g. the record type.
func TrackNamedDuration(operation, name string) func() {
	start := time.Now()
	return func() {
		operationDurationHistogram.WithLabelValues(operation, name).Observe(time.Since(start).Seconds())
	}
}

// TrackStatus counts one outcome of operation.
func TrackStatus(operation, status string) {
	operationStatusCounter.WithLabelValues(operation, status).Inc()
}

// SetDomainsRemaining publishes how many domains a run still has to process.
func SetDomainsRemaining(n int) {
	domainsRemainingGauge.Set(float64(n))
}

// Serve exposes the default registry on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
