package middleware

import (
	"petstore/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// ADMINだけ通す。TokenVersionGuardの後ろに置く（roleはDBの値）。
// 権限不足も401で返す
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxUserRoleKey).(string)
			switch model.Role(role) {
			case model.RoleAdmin:
				return next(c)
			case "":
				return deny(c, "unauthorized")
			default:
				return deny(c, "admin only")
			}
		}
	}
}
