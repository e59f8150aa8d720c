package server

import (
	"storefront/internal/handler"
	"storefront/internal/metrics"
	mw "storefront/internal/middleware"

	"github.com/labstack/echo/v4"
)

type routeSet struct {
	auth     *mw.Authenticator
	metrics  *metrics.Metrics
	health   *handler.HealthHandler
	authH    *handler.AuthHandler
	productH *handler.ProductHandler
	orderH   *handler.OrderHandler
	paymentH *handler.PaymentHandler
}

func registerRoutes(e *echo.Echo, r routeSet) {
	r.health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(r.metrics.Handler()))

	r.authH.RegisterRoutes(e, r.auth)
	r.productH.RegisterRoutes(e)
	r.orderH.RegisterRoutes(e)
	r.paymentH.RegisterRoutes(e)
}
