package handler

import (
	"errors"
	"net/http"
	"strconv"

	"petstore/internal/domain/model"
	"petstore/internal/middleware"
	"petstore/internal/usecase"
	"petstore/internal/validator"

	"github.com/labstack/echo/v4"
)

// 失敗時は必ず{"message": "..."}
type ErrorResponse struct {
	Message string `json:"message"`
}

// 更新系の成功レスポンス
type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Message: he.Message})
	}

	return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Message: msg})
}

// Bind + validateタグの検証
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		if errors.Is(err, echo.ErrValidatorNotRegistered) {
			return nil
		}
		return usecase.NewHTTPError(http.StatusBadRequest, validator.Message(err))
	}
	return nil
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// roleはTokenVersionGuardがDBの値で上書きしている
func viewerFromContext(c echo.Context) (usecase.Viewer, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return usecase.Viewer{}, false
	}
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return usecase.Viewer{UserID: id, IsAdmin: model.Role(role) == model.RoleAdmin}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
}

// ログイン中のユーザーID（なければ401のHTTPError）
func currentUserID(c echo.Context) (int64, error) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return 0, usecase.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

// パスの正のID（不正なら400 "invalid <name>"）
func pathID(c echo.Context, name string) (int64, error) {
	id, ok := parseIDParam(c, name)
	if !ok {
		return 0, usecase.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// クエリの整数（空ならdef）
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func queryInt64Ptr(c echo.Context, name string) (*int64, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}
