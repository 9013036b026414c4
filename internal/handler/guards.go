package handler

import (
	"petstore/internal/config"
	"petstore/internal/middleware"
	"petstore/internal/repository"

	"github.com/labstack/echo/v4"
)

// JWT必須 + token_version一致
func requireAuth(cfg config.Config, userRepo repository.UserRepository) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
	}
}

// さらにADMIN限定
func requireAdmin(cfg config.Config, userRepo repository.UserRepository) []echo.MiddlewareFunc {
	return append(requireAuth(cfg, userRepo), middleware.AdminRoleGuard())
}
