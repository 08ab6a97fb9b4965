package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for scheduled background jobs.
type JobMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	failure   *prometheus.CounterVec
	expired   prometheus.Counter
	recovered prometheus.Counter
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of background jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed job executions.",
	}, []string{"job"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quotes_expired_total",
		Help: "Delivery quotes flipped to expired by the sweep.",
	})
	recovered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_recovered_total",
		Help: "Orphaned courier deliveries re-linked by the reconcile sweep.",
	})
	reg.MustRegister(duration, success, failure, expired, recovered)
	return &JobMetrics{
		duration:  duration,
		success:   success,
		failure:   failure,
		expired:   expired,
		recovered: recovered,
	}
}

// ObserveDuration records the duration for the named job.
func (m *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *JobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *JobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddExpiredQuotes bumps the expired quote counter by n.
func (m *JobMetrics) AddExpiredQuotes(n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

// AddRecoveredDeliveries bumps the recovered delivery counter by n.
func (m *JobMetrics) AddRecoveredDeliveries(n int) {
	if m == nil || m.recovered == nil || n <= 0 {
		return
	}
	m.recovered.Add(float64(n))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
