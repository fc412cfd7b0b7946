package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/pkg/logger"
)

type fakeExpirer struct {
	counts []int
	calls  int
	err    error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, _ int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.counts) {
		return 0, nil
	}
	count := f.counts[f.calls]
	f.calls++
	return count, nil
}

func TestReservationTTLJobDrainsBatches(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	expirer := &fakeExpirer{counts: []int{5, 5, 2}}
	job, err := NewReservationTTLJob(ReservationTTLJobParams{
		Logger:  logg,
		Expirer: expirer,
		Batch:   5,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", expirer.calls)
	}
}

func TestReservationTTLJobPropagatesError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job, err := NewReservationTTLJob(ReservationTTLJobParams{
		Logger:  logg,
		Expirer: &fakeExpirer{err: fmt.Errorf("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeChallengeDeleter struct {
	counts []int64
	calls  int
}

func (f *fakeChallengeDeleter) DeleteExpiredUnverified(_ context.Context, _ int) (int64, error) {
	if f.calls >= len(f.counts) {
		return 0, nil
	}
	count := f.counts[f.calls]
	f.calls++
	return count, nil
}

func TestChallengeCleanupJobDrainsBatches(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	deleter := &fakeChallengeDeleter{counts: []int64{10, 3}}
	job, err := NewChallengeCleanupJob(ChallengeCleanupJobParams{
		Logger:  logg,
		Deleter: deleter,
		Batch:   10,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if deleter.calls != 2 {
		t.Fatalf("expected 2 batches, got %d", deleter.calls)
	}
}

type fakeRetentionRepo struct {
	cutoff      time.Time
	minAttempts int
	deleted     int64
}

func (f *fakeRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.cutoff = cutoff
	f.minAttempts = minAttemptCount
	return f.deleted, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestOutboxRetentionJobUsesConfiguredWindow(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	repo := &fakeRetentionRepo{deleted: 7}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logg,
		DB:          passthroughTxRunner{},
		Repository:  repo,
		Retention:   7,
		MinAttempts: 3,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	job.(*outboxRetentionJob).now = func() time.Time { return now }
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := now.Add(-7 * 24 * time.Hour); !repo.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", repo.cutoff, want)
	}
	if repo.minAttempts != 3 {
		t.Fatalf("min attempts = %d, want 3", repo.minAttempts)
	}
}
