// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridedesk/internal/http/handlers"
	"ridedesk/internal/http/middleware"
	"ridedesk/internal/infra"
	"ridedesk/internal/modules/matching"
	"ridedesk/internal/modules/notify"
	"ridedesk/internal/modules/offer"
	"ridedesk/internal/modules/presence"
	"ridedesk/internal/modules/pricing"
	"ridedesk/internal/modules/trip"
)

type RouterDeps struct {
	Trips    *trip.Service
	Offers   *offer.Service
	Presence *presence.Service
	Matching *matching.Service
	Pricing  *pricing.Service
	Hub      *notify.Hub
	Verifier infra.TokenVerifier
	Log      *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1", middleware.Auth(deps.Verifier))

	tripHandler := handlers.NewTripHandler(deps.Trips, deps.Pricing)
	api.POST("/rides", middleware.RequireRole(middleware.RolePassenger, middleware.RoleAdmin), tripHandler.CreateRide)
	api.POST("/deliveries", middleware.RequireRole(middleware.RolePassenger, middleware.RoleAdmin), tripHandler.CreateDelivery)
	api.GET("/trips", tripHandler.ListMine)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/cancel", tripHandler.Cancel)
	api.POST("/fares/estimate", tripHandler.EstimateFare)

	matchingHandler := handlers.NewMatchingHandler(deps.Trips, deps.Matching)
	api.POST("/matching/:id/dispatch", matchingHandler.Dispatch)
	api.GET("/matching/:id", matchingHandler.History)

	streamHandler := handlers.NewStreamHandler(deps.Hub)
	api.GET("/ws", streamHandler.Stream)

	driverHandler := handlers.NewDriverHandler(deps.Trips, deps.Offers, deps.Presence)
	driver := api.Group("/driver", middleware.RequireRole(middleware.RoleDriver))
	driver.GET("/presence", driverHandler.GetPresence)
	driver.PUT("/presence", driverHandler.UpdatePresence)
	driver.PUT("/availability", driverHandler.UpdateAvailability)
	driver.GET("/dashboard", driverHandler.Dashboard)
	driver.GET("/trips", driverHandler.ListTrips)
	driver.GET("/offers", driverHandler.ListOffers)
	driver.POST("/trips/:id/accept", driverHandler.Accept)
	driver.POST("/trips/:id/reject", driverHandler.Reject)
	driver.POST("/trips/:id/pickup", driverHandler.Advance(trip.ActionPickup))
	driver.POST("/trips/:id/start", driverHandler.Advance(trip.ActionStart))
	driver.POST("/trips/:id/complete", driverHandler.Advance(trip.ActionComplete))
	driver.POST("/trips/:id/deliver", driverHandler.Advance(trip.ActionDeliver))
	driver.GET("/ws", streamHandler.Stream)

	return r
}
