package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"

	SideEffectNotification = "notification"
	SideEffectWebhook      = "webhook"
)

var (
	entryUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "awaydesk",
		Subsystem: "ooo",
		Name:      "upserts_total",
		Help:      "Out-of-office create-or-update calls broken down by result.",
	}, []string{"result"})

	sideEffects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "awaydesk",
		Subsystem: "ooo",
		Name:      "side_effects_total",
		Help:      "Notification and webhook dispatches after a committed write, by kind and outcome.",
	}, []string{"kind", "outcome"})

	rpcLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "awaydesk",
		Subsystem: "grpc",
		Name:      "latency_seconds",
		Help:      "Latency distribution for gRPC calls.",
		Buckets: []float64{
			0.001, 0.005, 0.01, 0.05,
			0.1, 0.25, 0.5, 1, 2.5, 5,
		},
	}, []string{"method", "code"})
)

// ObserveUpsert counts one create-or-update call. result is "ok" or an error kind.
func ObserveUpsert(result string) {
	entryUpserts.WithLabelValues(result).Inc()
}

func ObserveSideEffect(kind string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	sideEffects.WithLabelValues(kind, outcome).Inc()
}

func ObserveRPC(method, code string, elapsed time.Duration) {
	rpcLatency.WithLabelValues(method, code).Observe(elapsed.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
