package server

import (
	"context"
	"net/http"

	"petstore/internal/config"
	"petstore/internal/handler"
	"petstore/internal/metrics"
	"petstore/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	AdminUser    *handler.AdminUserHandler
	Address      *handler.AddressHandler
	Order        *handler.OrderHandler
	Payment      *handler.PaymentHandler
	Promotion    *handler.PromotionHandler

	// token_version確認用
	Users repository.UserRepository
	// nilなら/metricsを出さない
	Metrics *metrics.Metrics
}

// DBなどの疎通確認。nilならok固定
type HealthCheck func(ctx context.Context) error

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers, health HealthCheck) {
	e.GET("/health", func(c echo.Context) error {
		if health != nil {
			if err := health(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics.Handler()))
	}

	h.Auth.RegisterRoutes(e, cfg, h.Users)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, cfg, h.Users)
	h.AdminUser.RegisterRoutes(e, cfg, h.Users)
	h.Address.RegisterRoutes(e, cfg, h.Users)
	h.Order.RegisterRoutes(e, cfg, h.Users)
	h.Payment.RegisterRoutes(e, cfg, h.Users)
	h.Promotion.RegisterRoutes(e, cfg, h.Users)
}
