package executor

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for task outcomes.
const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
)

var (
	tasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadbench_executor_tasks_submitted_total",
			Help: "Total number of tasks admitted by an executor.",
		},
		[]string{"executor"},
	)

	tasksRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadbench_executor_tasks_rejected_total",
			Help: "Total number of tasks an executor refused to accept.",
		},
		[]string{"executor"},
	)

	tasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadbench_executor_tasks_completed_total",
			Help: "Total number of tasks an executor finished, by outcome.",
		},
		[]string{"executor", "outcome"},
	)

	busyWorkers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threadbench_executor_busy_workers",
			Help: "Number of workers currently running a task.",
		},
		[]string{"executor"},
	)

	poolWorkers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threadbench_executor_workers",
			Help: "Number of live workers, busy or idle.",
		},
		[]string{"executor"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threadbench_executor_queue_depth",
			Help: "Number of tasks waiting for a worker.",
		},
		[]string{"executor"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threadbench_executor_task_duration_seconds",
			Help:    "Time a task spent running on a worker, in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.25, 0.5, 1, 2.5},
		},
		[]string{"executor"},
	)

	queueWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threadbench_executor_queue_wait_seconds",
			Help:    "Time between submission and a worker picking the task up, in seconds.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"executor"},
	)
)

func init() {
	prometheus.MustRegister(tasksSubmitted)
	prometheus.MustRegister(tasksRejected)
	prometheus.MustRegister(tasksCompleted)
	prometheus.MustRegister(busyWorkers)
	prometheus.MustRegister(poolWorkers)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(queueWait)
}

// initMetrics pre-creates the label combinations for an executor so that its
// series appear in /metrics with value 0 from startup.
func initMetrics(name string) {
	tasksSubmitted.WithLabelValues(name)
	tasksRejected.WithLabelValues(name)
	tasksCompleted.WithLabelValues(name, outcomeSuccess)
	tasksCompleted.WithLabelValues(name, outcomeFailed)
	busyWorkers.WithLabelValues(name).Set(0)
	poolWorkers.WithLabelValues(name).Set(0)
	queueDepth.WithLabelValues(name).Set(0)
}

func outcome(failed bool) string {
	if failed {
		return outcomeFailed
	}
	return outcomeSuccess
}
