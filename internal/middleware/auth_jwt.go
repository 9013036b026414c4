package middleware

import (
	"errors"
	"net/http"
	"strings"

	"petstore/internal/config"
	auth "petstore/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

// エラーは{"message": "..."}で返す（handlerと同じ形）
type errorResponse struct {
	Message string `json:"message"`
}

func deny(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Message: msg})
}

// Authorization: Bearer <token> からtokenを取り出す
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthJWTはアクセストークンを検証し、user_id/role/token_versionをcontextに積む。
// DBとの突き合わせはTokenVersionGuardで行う
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return deny(c, "unauthorized")
			}

			claims, err := auth.ParseAccessToken(raw, secret)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return deny(c, "token expired")
				}
				return deny(c, "unauthorized")
			}

			userID, err := claims.UserID()
			if err != nil || userID <= 0 || claims.Role == "" || claims.TokenVersion < 0 {
				return deny(c, "unauthorized")
			}

			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxTokenVersionKey, claims.TokenVersion)
			return next(c)
		}
	}
}
