// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	SimulationSteps    prometheus.Counter
	StepsSkipped       prometheus.Counter
	SimulationDuration prometheus.Histogram

	// Scheduler metrics
	TasksTotal         *prometheus.CounterVec
	TaskRetries        prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	WorkersActive      prometheus.Gauge
	EvaluationDuration prometheus.Histogram

	// Optimization metrics
	OptimizationsRunning prometheus.Gauge
	IterationsTotal      *prometheus.CounterVec
	SolutionsTotal       *prometheus.CounterVec
	ParetoFrontierSize   prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_lab"
	}

	return &Metrics{
		// Simulation metrics
		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		SimulationSteps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "steps_total",
			Help:      "Total number of simulated time steps",
		}),
		StepsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "steps_skipped_total",
			Help:      "Total number of steps skipped for missing price data",
		}),
		SimulationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Scheduler metrics
		TasksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Total number of scheduled tasks by outcome",
		}, []string{"outcome"}),
		TaskRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_retries_total",
			Help:      "Total number of task retry attempts",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cache_hits_total",
			Help:      "Total number of evaluation cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cache_misses_total",
			Help:      "Total number of evaluation cache misses",
		}),
		WorkersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "workers_active",
			Help:      "Number of workers currently evaluating a task",
		}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "evaluation_duration_seconds",
			Help:      "Candidate evaluation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		// Optimization metrics
		OptimizationsRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimization",
			Name:      "runs_running",
			Help:      "Number of optimization runs currently executing",
		}),
		IterationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimization",
			Name:      "iterations_total",
			Help:      "Total number of optimization iterations by algorithm",
		}, []string{"algorithm"}),
		SolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimization",
			Name:      "solutions_total",
			Help:      "Total number of evaluated solutions by outcome",
		}, []string{"outcome"}),
		ParetoFrontierSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimization",
			Name:      "pareto_frontier_size",
			Help:      "Size of the most recently computed Pareto frontier",
		}),

		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation records a finished simulation run.
func RecordSimulation(status string, seconds float64) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SimulationDuration.Observe(seconds)
}

// RecordSteps records executed and skipped simulation steps.
func RecordSteps(executed, skipped int) {
	DefaultMetrics.SimulationSteps.Add(float64(executed))
	DefaultMetrics.StepsSkipped.Add(float64(skipped))
}

// RecordTask records a finished scheduler task.
func RecordTask(outcome string) {
	DefaultMetrics.TasksTotal.WithLabelValues(outcome).Inc()
}

// RecordTaskRetry increments the retry counter.
func RecordTaskRetry() {
	DefaultMetrics.TaskRetries.Inc()
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// SetWorkersActive updates the active worker gauge.
func SetWorkersActive(n int) {
	DefaultMetrics.WorkersActive.Set(float64(n))
}

// RecordEvaluationDuration records how long one candidate evaluation took.
func RecordEvaluationDuration(seconds float64) {
	DefaultMetrics.EvaluationDuration.Observe(seconds)
}

// RecordIteration records one optimization iteration.
func RecordIteration(algorithm string) {
	DefaultMetrics.IterationsTotal.WithLabelValues(algorithm).Inc()
}

// RecordSolution records an evaluated solution.
func RecordSolution(failed bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	DefaultMetrics.SolutionsTotal.WithLabelValues(outcome).Inc()
}

// IncOptimizationsRunning marks one more optimization run in flight.
func IncOptimizationsRunning() {
	DefaultMetrics.OptimizationsRunning.Inc()
}

// DecOptimizationsRunning marks one optimization run finished.
func DecOptimizationsRunning() {
	DefaultMetrics.OptimizationsRunning.Dec()
}

// SetParetoFrontierSize updates the frontier size gauge.
func SetParetoFrontierSize(n int) {
	DefaultMetrics.ParetoFrontierSize.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	DefaultMetrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
