// Package metrics exposes Prometheus counters for the capture pipeline.
// Collection is always on; exposition is opt-in via Serve.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_sessions_started_total",
		Help: "Capture sessions successfully started",
	})

	sessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_sessions_ended_total",
		Help: "Capture sessions ended, by cause",
	}, []string{"cause"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parley_session_duration_seconds",
		Help:    "Capture session length in seconds",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	fragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_transcript_fragments_total",
		Help: "Transcript fragment batches received, by finality",
	}, []string{"finality"})

	feedRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_feed_restarts_total",
		Help: "Recognition feed restarts after provider end-of-stream",
	})

	feedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_feed_errors_total",
		Help: "Recognition feed errors, by kind",
	}, []string{"kind"})

	acquisitionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_acquisition_failures_total",
		Help: "Session starts that failed during resource acquisition",
	})

	generateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parley_generate_latency_seconds",
		Help:    "Generative backend round-trip latency",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

func SessionStarted()    { sessionsStarted.Inc() }
func AcquisitionFailed() { acquisitionFailures.Inc() }
func FeedRestarted()     { feedRestarts.Inc() }

func SessionEnded(cause string, elapsed time.Duration) {
	sessionsEnded.WithLabelValues(cause).Inc()
	sessionDuration.Observe(elapsed.Seconds())
}

func FragmentBatch(final bool) {
	if final {
		fragments.WithLabelValues("final").Inc()
	} else {
		fragments.WithLabelValues("interim").Inc()
	}
}

func FeedError(kind string) {
	feedErrors.WithLabelValues(kind).Inc()
}

func ObserveGenerate(elapsed time.Duration) {
	generateLatency.Observe(elapsed.Seconds())
}

// Serve exposes /metrics on addr. It blocks, so run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
