package cron

import (
	"context"
	"fmt"

	"github.com/voltara/prebooking-backend/pkg/logger"
)

const reservationExpireBatch = 200

// ReservationTTLJobParams configure the stale reservation reaper.
type ReservationTTLJobParams struct {
	Logger  *logger.Logger
	Expirer reservationExpirer
	Batch   int
}

type reservationExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// NewReservationTTLJob builds the cron job that expires reservations whose
// payment window has lapsed.
func NewReservationTTLJob(params ReservationTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("reservation expirer required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = reservationExpireBatch
	}
	return &reservationTTLJob{
		logg:    params.Logger,
		expirer: params.Expirer,
		batch:   batch,
	}, nil
}

type reservationTTLJob struct {
	logg    *logger.Logger
	expirer reservationExpirer
	batch   int
}

func (j *reservationTTLJob) Name() string { return "reservation-ttl" }

func (j *reservationTTLJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.expirer.ExpireDue(ctx, j.batch)
		if err != nil {
			return fmt.Errorf("expire reservations: %w", err)
		}
		total += expired
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": total})
	j.logg.Info(logCtx, "reservation expiry loop complete")
	return nil
}
