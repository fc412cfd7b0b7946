package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/metrics"
)

// Service answers exactly one question: was this gateway reference captured?
// The answer comes from the payment backend, never from client-reported
// state. A captured answer is durable; concurrent checks for the same ref
// collapse into one gateway call.
//
// Only Captured results are cached. A recorded Failed result re-queries the
// gateway on the next check, since payments that were pending at first sight
// routinely complete moments later. Callers that need a single external call
// per ref regardless of outcome must cache the Failed answer themselves.
type Service interface {
	Verify(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error)
	RequireCaptured(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error)
}

type captureChecker interface {
	CapturedStatus(ctx context.Context, gatewayRef string) (bool, error)
}

type service struct {
	repo    Repository
	gateway captureChecker
	group   singleflight.Group
	metrics *metrics.TransactionMetrics
	logg    *logger.Logger
}

func NewService(repo Repository, gw captureChecker, txMetrics *metrics.TransactionMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("verification repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("verification capture checker required")
	}
	return &service{repo: repo, gateway: gw, metrics: txMetrics, logg: logg}, nil
}

func (s *service) Verify(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error) {
	gatewayRef = strings.TrimSpace(gatewayRef)
	if gatewayRef == "" {
		return nil, errors.New(errors.CodeValidation, "gateway ref is required")
	}

	result, err, _ := s.group.Do(gatewayRef, func() (any, error) {
		return s.verifyOnce(ctx, gatewayRef)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.VerificationRecord), nil
}

// RequireCaptured verifies and rejects anything short of a captured payment.
func (s *service) RequireCaptured(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error) {
	record, err := s.Verify(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}
	if record.Result != enums.VerificationResultCaptured {
		return nil, errors.New(errors.CodePaymentNotCaptured, "payment has not been captured").
			WithDetails(map[string]any{"gateway_ref": gatewayRef})
	}
	return record, nil
}

func (s *service) verifyOnce(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error) {
	existing, err := s.repo.Find(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}
	// Captured is final. A recorded failure is not: the payment may have
	// completed since, so ask the gateway again.
	if existing != nil && existing.Result == enums.VerificationResultCaptured {
		return existing, nil
	}

	start := time.Now()
	captured, err := s.gateway.CapturedStatus(ctx, gatewayRef)
	s.metrics.ObserveGatewayDuration("captured_status", time.Since(start))
	if err != nil {
		return nil, err
	}

	record := &models.VerificationRecord{
		GatewayRef: gatewayRef,
		Result:     enums.VerificationResultFailed,
		VerifiedAt: time.Now().UTC(),
	}
	if captured {
		record.Result = enums.VerificationResultCaptured
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, err
	}

	s.metrics.IncVerification(record.Result.String())
	if s.logg != nil {
		logCtx := s.logg.WithGatewayRef(ctx, gatewayRef)
		s.logg.Info(logCtx, fmt.Sprintf("payment verified: %s", record.Result))
	}
	return record, nil
}
