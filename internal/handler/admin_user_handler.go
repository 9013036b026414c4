package handler

import (
	"errors"
	"net/http"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/repository"
	"petstore/internal/usecase"
	auth "petstore/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	forceLogoutUC *auth.ForceLogoutUsecase
	auditUC       *usecase.AuditLogUsecase
}

func NewAdminUserHandler(forceLogoutUC *auth.ForceLogoutUsecase, auditUC *usecase.AuditLogUsecase) *AdminUserHandler {
	return &AdminUserHandler{forceLogoutUC: forceLogoutUC, auditUC: auditUC}
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	// ★ /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group("/admin", requireAdmin(cfg, userRepo)...)

	admin.POST("/users/:id/force-logout", h.ForceLogout)
	admin.GET("/audit-logs", h.ListAuditLogs)
}

func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	res, err := h.forceLogoutUC.Execute(c.Request().Context(), adminID, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Message: "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}

	return c.JSON(http.StatusOK, res)
}

// GET /admin/audit-logs?actor_user_id=&action=&resource_type=&resource_id=&from=&to=&limit=&offset=
func (h *AdminUserHandler) ListAuditLogs(c echo.Context) error {
	var f repository.AuditLogFilter

	var ok bool
	if f.ActorUserID, ok = queryInt64Ptr(c, "actor_user_id"); !ok {
		return badRequest(c, "invalid actor_user_id")
	}
	if f.ResourceID, ok = queryInt64Ptr(c, "resource_id"); !ok {
		return badRequest(c, "invalid resource_id")
	}
	if v := c.QueryParam("action"); v != "" {
		a := model.AuditAction(v)
		f.Action = &a
	}
	if v := c.QueryParam("resource_type"); v != "" {
		rt := model.AuditResourceType(v)
		f.ResourceType = &rt
	}
	if v := c.QueryParam("from"); v != "" {
		if f.CreatedFrom, ok = usecase.ParseDateTimeRFC3339(v); !ok {
			return badRequest(c, "invalid from")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if f.CreatedTo, ok = usecase.ParseDateTimeRFC3339(v); !ok {
			return badRequest(c, "invalid to")
		}
	}
	if f.Limit, ok = queryInt(c, "limit", 50); !ok {
		return badRequest(c, "invalid limit")
	}
	if f.Offset, ok = queryInt(c, "offset", 0); !ok {
		return badRequest(c, "invalid offset")
	}

	out, err := h.auditUC.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
