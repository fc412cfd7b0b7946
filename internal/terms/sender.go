package terms

import (
	"context"

	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/logger"
)

// Sender delivers a one-time code to the customer's contact point.
type Sender interface {
	Deliver(ctx context.Context, channel enums.ChallengeChannel, identifier, code string) error
}

// LogSender is a development sender that only records delivery metadata.
// The code itself is never written to the log.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender returns a Sender suitable for dev environments.
func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Deliver(ctx context.Context, channel enums.ChallengeChannel, identifier, code string) error {
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"channel":    string(channel),
			"identifier": maskIdentifier(identifier),
		})
		s.logg.Info(ctx, "challenge code dispatched")
	}
	return nil
}

func maskIdentifier(identifier string) string {
	if len(identifier) <= 4 {
		return "****"
	}
	return "****" + identifier[len(identifier)-4:]
}
