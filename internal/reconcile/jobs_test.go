package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExpirer struct {
	gotNow  time.Time
	expired int
	err     error
}

func (s *stubExpirer) ExpireStale(_ context.Context, now time.Time) (int, error) {
	s.gotNow = now
	return s.expired, s.err
}

type stubSweeper struct {
	gotCutoff time.Time
	recovered int
	err       error
}

func (s *stubSweeper) SweepOrphanDeliveries(_ context.Context, cutoff time.Time) (int, error) {
	s.gotCutoff = cutoff
	return s.recovered, s.err
}

func TestQuoteExpiryJobRunsSweep(t *testing.T) {
	expirer := &stubExpirer{expired: 3}
	job, err := NewQuoteExpiryJob(expirer, nil, time.Minute)
	require.NoError(t, err)

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.(*quoteExpiryJob).now = func() time.Time { return frozen }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, frozen, expirer.gotNow)
	assert.Equal(t, "quote_expiry", job.Name())
	assert.Equal(t, time.Minute, job.Interval())
}

func TestQuoteExpiryJobPropagatesError(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("db down")}
	job, err := NewQuoteExpiryJob(expirer, nil, time.Minute)
	require.NoError(t, err)

	assert.ErrorContains(t, job.Run(context.Background()), "expire stale quotes")
}

func TestOrphanDeliveryJobAppliesMinAge(t *testing.T) {
	sweeper := &stubSweeper{recovered: 1}
	job, err := NewOrphanDeliveryJob(sweeper, nil, 5*time.Minute, 10*time.Minute)
	require.NoError(t, err)

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.(*orphanDeliveryJob).now = func() time.Time { return frozen }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, frozen.Add(-10*time.Minute), sweeper.gotCutoff)
	assert.Equal(t, "orphan_deliveries", job.Name())
}

func TestJobConstructorsRejectBadConfig(t *testing.T) {
	_, err := NewQuoteExpiryJob(nil, nil, time.Minute)
	assert.Error(t, err)

	_, err = NewQuoteExpiryJob(&stubExpirer{}, nil, 0)
	assert.Error(t, err)

	_, err = NewOrphanDeliveryJob(&stubSweeper{}, nil, time.Minute, 0)
	assert.Error(t, err)
}
