package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/voltara/prebooking-backend/api/responses"
	pkgerrors "github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ChallengeRateLimitPolicy throttles OTP issuance per customer and per IP.
type ChallengeRateLimitPolicy struct {
	window        time.Duration
	customerLimit int
	ipLimit       int
}

func NewChallengeRateLimitPolicy(window time.Duration, customerLimit, ipLimit int) ChallengeRateLimitPolicy {
	return ChallengeRateLimitPolicy{
		window:        window,
		customerLimit: customerLimit,
		ipLimit:       ipLimit,
	}
}

func (p ChallengeRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.customerLimit > 0 || p.ipLimit > 0)
}

// ChallengeRateLimit caps how often a caller may request a new acceptance
// challenge. Each issued challenge invalidates the prior one, so an
// unthrottled caller could lock honest verifiers out.
func ChallengeRateLimit(policy ChallengeRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					scope := fmt.Sprintf("challenge:ip:%s", ip)
					allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(policy.ipLimit), policy.window)
					if err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !allowed {
						respondRateLimited(ctx, logg, w, "ip", count, policy.ipLimit)
						return
					}
				}
			}

			if policy.customerLimit > 0 {
				if customerID := CustomerIDFromContext(ctx); customerID != "" {
					scope := fmt.Sprintf("challenge:customer:%s", customerID)
					allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(policy.customerLimit), policy.window)
					if err != nil {
						responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !allowed {
						respondRateLimited(ctx, logg, w, "customer", count, policy.customerLimit)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, dimension string, count int64, limit int) {
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"dimension": dimension,
			"count":     count,
			"limit":     limit,
		})
		logg.Warn(ctx, "challenge request throttled")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many challenge requests"))
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
