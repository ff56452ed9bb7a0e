package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-hold-service/internal/handler"
	"github.com/iliyamo/seat-hold-service/internal/middleware"
	"github.com/iliyamo/seat-hold-service/internal/utils"
)

// RegisterRoutes registers routes that do not touch the venue.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterTickets registers the customer endpoints.  rateLimit guards the
// hold endpoints, which take seats away from everyone else; cache fronts
// the static venue description only.
func RegisterTickets(e *echo.Echo, t *handler.TicketHandler, rateLimit, cache echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.GET("/seats/available", t.Available)
	v1.GET("/venue", t.Venue, cache)
	v1.GET("/venue/layout", t.Layout)

	holds := v1.Group("/holds", rateLimit)
	holds.POST("", t.Hold)
	holds.POST("/:id/confirm", t.Confirm)
}

// RegisterAdmin registers operator endpoints.  Login is open; everything
// else requires an ADMIN token.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.POST("/login", a.Login)

	protected := g.Group("", middleware.JWTAuth(jwtSecret), middleware.RequireRole(utils.RoleAdmin))
	protected.GET("/stats", a.Stats)
	protected.GET("/consistency", a.Consistency)
	protected.GET("/holds/:id", a.Hold)
	protected.GET("/confirmations/:id", a.Confirmation)
	protected.POST("/confirmations/:id/verify", a.VerifyConfirmation)
}
