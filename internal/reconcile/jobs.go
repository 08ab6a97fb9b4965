package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/laundrylink/laundrylink-backend/pkg/metrics"
)

// Job is a periodic reconciliation task with its own cadence.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

type quoteExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

type orphanSweeper interface {
	SweepOrphanDeliveries(ctx context.Context, cutoff time.Time) (int, error)
}

type quoteExpiryJob struct {
	quotes   quoteExpirer
	metrics  *metrics.JobMetrics
	interval time.Duration
	now      func() time.Time
}

// NewQuoteExpiryJob builds the job that flips pending quotes past their
// deadline to expired.
func NewQuoteExpiryJob(quotes quoteExpirer, jobMetrics *metrics.JobMetrics, interval time.Duration) (Job, error) {
	if quotes == nil {
		return nil, fmt.Errorf("quote service required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("expiry sweep interval must be positive")
	}
	return &quoteExpiryJob{
		quotes:   quotes,
		metrics:  jobMetrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

func (j *quoteExpiryJob) Name() string            { return "quote_expiry" }
func (j *quoteExpiryJob) Interval() time.Duration { return j.interval }

func (j *quoteExpiryJob) Run(ctx context.Context) error {
	expired, err := j.quotes.ExpireStale(ctx, j.now())
	j.metrics.AddExpiredQuotes(expired)
	if err != nil {
		return fmt.Errorf("expire stale quotes: %w", err)
	}
	return nil
}

type orphanDeliveryJob struct {
	orders   orphanSweeper
	metrics  *metrics.JobMetrics
	interval time.Duration
	minAge   time.Duration
	now      func() time.Time
}

// NewOrphanDeliveryJob builds the job that re-links courier deliveries whose
// local commit failed after the courier call succeeded. minAge keeps the
// sweep from racing conversions that are still in flight.
func NewOrphanDeliveryJob(orders orphanSweeper, jobMetrics *metrics.JobMetrics, interval, minAge time.Duration) (Job, error) {
	if orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("orphan sweep interval must be positive")
	}
	if minAge <= 0 {
		return nil, fmt.Errorf("orphan min age must be positive")
	}
	return &orphanDeliveryJob{
		orders:   orders,
		metrics:  jobMetrics,
		interval: interval,
		minAge:   minAge,
		now:      time.Now,
	}, nil
}

func (j *orphanDeliveryJob) Name() string            { return "orphan_deliveries" }
func (j *orphanDeliveryJob) Interval() time.Duration { return j.interval }

func (j *orphanDeliveryJob) Run(ctx context.Context) error {
	recovered, err := j.orders.SweepOrphanDeliveries(ctx, j.now().Add(-j.minAge))
	j.metrics.AddRecoveredDeliveries(recovered)
	if err != nil {
		return fmt.Errorf("sweep orphan deliveries: %w", err)
	}
	return nil
}
