package cron

import (
	"context"
	"fmt"

	"github.com/voltara/prebooking-backend/pkg/logger"
)

const challengeCleanupBatch = 500

// ChallengeCleanupJobParams configure the expired challenge sweeper.
type ChallengeCleanupJobParams struct {
	Logger  *logger.Logger
	Deleter challengeDeleter
	Batch   int
}

type challengeDeleter interface {
	DeleteExpiredUnverified(ctx context.Context, limit int) (int64, error)
}

// NewChallengeCleanupJob builds the cron job that purges expired unverified
// acceptance challenges. Verified challenges stay: they back receipts.
func NewChallengeCleanupJob(params ChallengeCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Deleter == nil {
		return nil, fmt.Errorf("challenge deleter required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = challengeCleanupBatch
	}
	return &challengeCleanupJob{
		logg:    params.Logger,
		deleter: params.Deleter,
		batch:   batch,
	}, nil
}

type challengeCleanupJob struct {
	logg    *logger.Logger
	deleter challengeDeleter
	batch   int
}

func (j *challengeCleanupJob) Name() string { return "challenge-cleanup" }

func (j *challengeCleanupJob) Run(ctx context.Context) error {
	var total int64
	for {
		deleted, err := j.deleter.DeleteExpiredUnverified(ctx, j.batch)
		if err != nil {
			return fmt.Errorf("delete expired challenges: %w", err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": total})
	j.logg.Info(logCtx, "challenge cleanup loop complete")
	return nil
}
