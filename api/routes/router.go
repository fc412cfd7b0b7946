package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltara/prebooking-backend/api/controllers"
	"github.com/voltara/prebooking-backend/api/middleware"
	bookingsvc "github.com/voltara/prebooking-backend/internal/booking"
	catalogsvc "github.com/voltara/prebooking-backend/internal/catalog"
	coordinatorsvc "github.com/voltara/prebooking-backend/internal/coordinator"
	settlementsvc "github.com/voltara/prebooking-backend/internal/settlement"
	termssvc "github.com/voltara/prebooking-backend/internal/terms"
	"github.com/voltara/prebooking-backend/pkg/config"
	"github.com/voltara/prebooking-backend/pkg/db"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/metrics"
	"github.com/voltara/prebooking-backend/pkg/redis"
)

// RouterParams carry everything the HTTP surface needs.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Metrics     *metrics.TransactionMetrics
	Catalog     catalogsvc.Service
	Terms       termssvc.Service
	Bookings    bookingsvc.Service
	Coordinator coordinatorsvc.Service
	Settlement  settlementsvc.Service
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	challengePolicy := middleware.NewChallengeRateLimitPolicy(
		p.Config.OTP.TTL,
		5,
		20,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/variants", controllers.ListVariants(p.Catalog, p.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Config.JWT, p.Logger))

		r.Route("/terms", func(r chi.Router) {
			r.With(middleware.ChallengeRateLimit(challengePolicy, p.Redis, p.Logger)).
				Post("/challenges", controllers.RequestTermsChallenge(p.Terms, p.Logger))
			r.Post("/challenges/verify", controllers.VerifyTermsChallenge(p.Terms, p.Logger))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.CreateBooking(p.Bookings, p.Metrics, p.Logger))
			r.Get("/{reservationID}", controllers.GetBooking(p.Bookings, p.Logger))
			r.Post("/{reservationID}/cancel", controllers.CancelBooking(p.Bookings, p.Logger))
			r.Get("/{reservationID}/status", controllers.TransactionStatus(p.Coordinator, p.Logger))
			r.Get("/{reservationID}/ledger", controllers.GetLedgerEntry(p.Settlement, p.Bookings, p.Logger))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/submit", controllers.SubmitPayment(p.Coordinator, p.Logger))
			r.Post("/callback", controllers.PaymentCallback(p.Coordinator, p.Logger))
		})
	})

	return r
}
