package settlement

import (
	"context"

	"github.com/voltara/prebooking-backend/pkg/logger"
)

// LogNotifier records genealogy insertions instead of calling the
// distributor network. Used until the partner webhook goes live.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) InsertNode(ctx context.Context, insertion ReferralInsertion) error {
	if n.logg != nil {
		ctx = n.logg.WithFields(ctx, map[string]any{
			"distributor_id": insertion.DistributorID.String(),
			"customer_id":    insertion.CustomerID.String(),
			"referral_code":  insertion.ReferralCode,
			"pv":             insertion.PV,
		})
		n.logg.Info(ctx, "referral network node inserted")
	}
	return nil
}
