package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oskim/tapflow-backend/api/controllers"
	webhookcontrollers "github.com/oskim/tapflow-backend/api/controllers/webhooks"
	"github.com/oskim/tapflow-backend/api/middleware"
	"github.com/oskim/tapflow-backend/internal/catalog"
	"github.com/oskim/tapflow-backend/internal/devices"
	"github.com/oskim/tapflow-backend/internal/ingest"
	"github.com/oskim/tapflow-backend/internal/orders"
	"github.com/oskim/tapflow-backend/internal/users"
	"github.com/oskim/tapflow-backend/pkg/config"
	"github.com/oskim/tapflow-backend/pkg/enums"
	"github.com/oskim/tapflow-backend/pkg/logger"
	"github.com/oskim/tapflow-backend/pkg/redis"
)

type dependencyPinger interface {
	Ping(ctx context.Context) error
}

type permitResponder interface {
	PermitResponse(ctx context.Context, dispenserID string, permitted bool, maxML int, userName, message string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger dependencyPinger,
	redisClient *redis.Client,
	pubsubPinger dependencyPinger,
	usersService users.Service,
	catalogService catalog.Service,
	ordersService orders.Service,
	devicesService devices.Service,
	deviceStore middleware.DeviceCredentialStore,
	ingestService ingest.Service,
	dispatcher permitResponder,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readyChecks(dbPinger, redisClient, pubsubPinger)))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/venues/{venueId}", controllers.VenueMenu(catalogService, logg))

		r.Route("/orders", func(r chi.Router) {
			idem := middleware.Idempotency(cfg.Idempotency, redisClient, logg)
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.With(idem).Post("/{orderId}/pay", controllers.PayOrder(ordersService, logg))
			r.With(idem).Post("/{orderId}/dispense", controllers.StartDispense(ordersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersService, logg))
			r.Get("/{orderId}/status", controllers.OrderStatus(ordersService, logg))
		})

		// Provisioning is an operator action on the device namespace.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireAnyRole(logg, enums.UserRoleSuperAdmin, enums.UserRoleVenueOwner))
			r.Post("/dispensers", controllers.ProvisionDispenser(devicesService, logg))
			r.Get("/dispensers", controllers.ListDispensers(devicesService, logg))
			r.Get("/dispensers/{id}", controllers.GetDispenser(devicesService, logg))
			r.Patch("/dispensers/{id}", controllers.PatchDispenser(devicesService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.DeviceAuth(cfg.Device, deviceStore, logg))

			r.Route("/dispensers/{id}", func(r chi.Router) {
				r.Get("/nvs", controllers.ReadNVS(devicesService, logg))
				r.Put("/nvs", controllers.DeviceWriteNVS(devicesService, logg))
				r.Get("/nvs/version", controllers.NVSVersion(devicesService, logg))
				r.Get("/status", controllers.DispenserStatus(devicesService, logg))
				r.Post("/permit", controllers.PermitPour(dispatcher, cfg.Device, logg))
			})

			r.With(middleware.DeviceStatusRateLimit(cfg.Device, redisClient, logg)).
				Post("/webhooks/dispenser-status", webhookcontrollers.DispenserStatus(ingestService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/auth/login", controllers.Login(usersService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/auth/me", controllers.Me(usersService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, enums.UserRoleSuperAdmin, enums.UserRoleVenueOwner))

				r.Route("/venues", func(r chi.Router) {
					r.Get("/", controllers.AdminListVenues(catalogService, logg))
					r.Post("/", controllers.AdminCreateVenue(catalogService, logg))
					r.Get("/{venueId}", controllers.AdminGetVenue(catalogService, logg))
					r.Put("/{venueId}", controllers.AdminUpdateVenue(catalogService, logg))
				})

				r.Route("/beers", func(r chi.Router) {
					r.Get("/", controllers.AdminListBeers(catalogService, logg))
					r.Post("/", controllers.AdminCreateBeer(catalogService, logg))
					r.Put("/{beerId}", controllers.AdminUpdateBeer(catalogService, logg))
				})

				r.Post("/venue-dispensers", controllers.AdminAssignTap(catalogService, logg))

				r.Route("/users", func(r chi.Router) {
					r.Get("/", controllers.AdminListUsers(usersService, logg))
					r.Post("/", controllers.AdminCreateUser(usersService, logg))
					r.Get("/{userId}", controllers.AdminGetUser(usersService, logg))
					r.Put("/{userId}", controllers.AdminUpdateUser(usersService, logg))
				})

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.AdminListOrders(ordersService, catalogService, logg))
					r.Post("/{orderId}/refund", controllers.AdminRefundOrder(ordersService, logg))
				})

				r.Route("/dispensers/{id}", func(r chi.Router) {
					r.Get("/nvs", controllers.ReadNVS(devicesService, logg))
					r.Put("/nvs", controllers.AdminWriteNVS(devicesService, logg))
					r.Get("/status", controllers.DispenserStatus(devicesService, logg))
				})
			})
		})
	})

	return r
}

func readyChecks(dbP dependencyPinger, redisClient *redis.Client, pubsubP dependencyPinger) map[string]controllers.ReadyCheck {
	checks := map[string]controllers.ReadyCheck{}
	if dbP != nil {
		checks["database"] = dbP.Ping
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}
	if pubsubP != nil {
		checks["pubsub"] = pubsubP.Ping
	}
	return checks
}
