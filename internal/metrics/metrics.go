package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-dialer/internal/logger"
)

// metricPrefix namespaces every metric exporter-side.
const metricPrefix = "alarm_dialer_"

var (
	// PollCycles counts completed polling cycles, successful or not.
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "poll_cycles_total",
		Help: "Completed polling cycles",
	})

	// SourceErrors counts failed or timed-out document-source operations.
	SourceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "source_errors_total",
		Help: "Document source fetch failures",
	})

	// Transitions counts alarm state transitions by direction.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "transitions_total",
		Help: "Alarm state transitions",
	}, []string{"direction"})

	// Notifications counts call placements by result.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "notifications_total",
		Help: "Outbound call attempts",
	}, []string{"result"})

	// Suppressions counts withheld notifications by reason.
	Suppressions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "suppressions_total",
		Help: "Notifications withheld by the state machine",
	}, []string{"reason"})

	// StateErrors counts failed persistence writes.
	StateErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "state_persistence_errors_total",
		Help: "Failed alarm state persistence writes",
	})

	// AlarmActive exposes the current alarm value of the monitored entity.
	AlarmActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: metricPrefix + "alarm_active",
		Help: "1 while the most recently observed alarm value is active",
	})
)

// shutdownTimeout bounds the HTTP server drain on context cancellation.
const shutdownTimeout = 3 * time.Second

// Serve exposes /metrics on the given address until the context is canceled.
// An empty address disables the listener. Serve never takes the process down:
// a listener failure is logged and monitoring continues without metrics.
func Serve(ctx context.Context, address string) {
	if address == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.InfoKV(ctx, "Metrics listener started", "address", address)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "Metrics listener failed", "error", err)
		}
	}()
}
