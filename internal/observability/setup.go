package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Logger serves the high-rate event path (per-update, per-send). It is a
	// nop until Init swaps in the production logger, so hot paths never need
	// a nil check.
	Logger = zap.NewNop()

	// Metrics
	bansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_bans_total",
			Help: "Total number of auto-ban decisions executed",
		},
		[]string{"outcome"},
	)

	broadcastSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_broadcast_sends_total",
			Help: "Total number of per-recipient broadcast sends",
		},
		[]string{"status"},
	)

	updateProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warden_update_processing_duration_seconds",
			Help:    "Time spent processing platform updates",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// Init is idempotent: a recovered restart of the main loop must not
// re-register collectors or double-bind the metrics listener.
func Init(ctx context.Context, metricsAddr string) error {
	var err error
	initOnce.Do(func() {
		Logger, err = zap.NewProduction()
		if err != nil {
			return
		}

		prometheus.MustRegister(bansTotal)
		prometheus.MustRegister(broadcastSendsTotal)
		prometheus.MustRegister(updateProcessingDuration)

		tp := trace.NewTracerProvider()
		otel.SetTracerProvider(tp)

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	})
	return err
}

// RecordBan records an executed (or failed) ban action
func RecordBan(outcome string) {
	bansTotal.WithLabelValues(outcome).Inc()
}

// RecordBroadcastSend records a per-recipient broadcast send result
func RecordBroadcastSend(status string) {
	broadcastSendsTotal.WithLabelValues(status).Inc()
}

// StartUpdateProcessing returns a function to record update processing duration
func StartUpdateProcessing() func(status string) {
	start := time.Now()
	timer := prometheus.NewTimer(updateProcessingDuration.WithLabelValues("processing"))
	return func(status string) {
		timer.ObserveDuration()
		Logger.Debug("update processed",
			zap.String("status", status),
			zap.Duration("took", time.Since(start)),
		)
	}
}
