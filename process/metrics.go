package process

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "procctl"
)

var (
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "probes",
		Name:      "total",
		Help:      "Count of process status probes by outcome",
	}, []string{"outcome"})

	processesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "processes",
		Name:      "started_total",
		Help:      "Count of processes started",
	})
	processesReaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "processes",
		Name:      "reaped_total",
		Help:      "Count of processes reaped, by the reason they ended",
	}, []string{"reason"})
	processesTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "processes",
		Name:      "terminated_total",
		Help:      "Count of processes killed after exceeding their time limit",
	})

	waitTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "waits",
		Name:      "time_limit_exceeded_total",
		Help:      "Count of waits that hit the process time limit",
	})
	runDurations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "processes",
		Name:      "run_duration_seconds",
		Help:      "Time from process start until it was reaped",
		Buckets:   prometheus.ExponentialBuckets(0.015625, 2, 16),
	})
)

func observeProbe(err error) {
	switch {
	case err == nil:
		probesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrNotWaitable):
		probesTotal.WithLabelValues("not_waitable").Inc()
	case errors.Is(err, ErrInterrupted):
		probesTotal.WithLabelValues("interrupted").Inc()
	default:
		probesTotal.WithLabelValues("error").Inc()
	}
}
