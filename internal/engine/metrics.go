package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/threadbench/internal/model"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadbench_requests_total",
			Help: "Total number of handled work requests by mode, executor and outcome.",
		},
		[]string{"mode", "executor", "outcome"},
	)

	requestElapsed = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threadbench_request_elapsed_seconds",
			Help:    "Time from acceptance to result for handled work requests.",
			Buckets: []float64{.025, .05, .075, .1, .125, .15, .175, .2, .25, .3, .5, 1, 2.5, 5},
		},
		[]string{"mode", "executor"},
	)

	samplesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "threadbench_samples_dropped_total",
			Help: "Samples not recorded because the recorder queue was full or closed.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestElapsed)
	prometheus.MustRegister(samplesDropped)
}

func observe(res model.WorkResult) {
	outcome := "success"
	if res.Failed() {
		outcome = string(res.ErrorKind)
	}
	requestsTotal.WithLabelValues(string(res.Mode), res.ExecutorLabel, outcome).Inc()
	requestElapsed.WithLabelValues(string(res.Mode), res.ExecutorLabel).
		Observe((time.Duration(res.ElapsedMillis) * time.Millisecond).Seconds())
}
