package middleware

import (
	"petstore/internal/repository"

	"github.com/labstack/echo/v4"
)

// TokenVersionGuardはJWTのtvをDBのtoken_versionと突き合わせる。
// 強制ログアウト済み・停止中・ブロック中のユーザーはここで弾く
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, okID := c.Get(CtxUserIDKey).(int64)
			tv, okTV := c.Get(CtxTokenVersionKey).(int)
			if !okID || !okTV || userID <= 0 || tv < 0 {
				return deny(c, "unauthorized")
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil || user.TokenVersion != tv {
				return deny(c, "unauthorized")
			}
			if !user.IsActive || user.IsBlocked {
				return deny(c, "account disabled")
			}

			//降格直後のトークンでも管理者ルートに入れないようにDBのroleで上書き
			c.Set(CtxUserRoleKey, string(user.Role))
			return next(c)
		}
	}
}
