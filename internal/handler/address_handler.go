package handler

import (
	"net/http"

	"petstore/internal/config"
	"petstore/internal/repository"
	"petstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /addresses（本人の住所録）
type AddressHandler struct {
	uc *usecase.AddressUsecase
}

func NewAddressHandler(uc *usecase.AddressUsecase) *AddressHandler {
	return &AddressHandler{uc: uc}
}

func (h *AddressHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/addresses", requireAuth(cfg, userRepo)...)
	g.GET("", h.list)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.POST("/:id/default", h.setDefault)
}

// ユーザーIDとパスの住所IDをまとめて取る
func addressTarget(c echo.Context) (userID, addressID int64, err error) {
	if userID, err = currentUserID(c); err != nil {
		return 0, 0, err
	}
	addressID, err = pathID(c, "id")
	return userID, addressID, err
}

func (h *AddressHandler) list(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.uc.List(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AddressHandler) create(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return writeError(c, err)
	}
	var in usecase.AddressInput
	if err := bindAndValidate(c, &in); err != nil {
		return writeError(c, err)
	}
	created, err := h.uc.Create(c.Request().Context(), userID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *AddressHandler) update(c echo.Context) error {
	userID, id, err := addressTarget(c)
	if err != nil {
		return writeError(c, err)
	}
	var in usecase.AddressInput
	if err := bindAndValidate(c, &in); err != nil {
		return writeError(c, err)
	}
	updated, err := h.uc.Update(c.Request().Context(), userID, id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *AddressHandler) remove(c echo.Context) error {
	userID, id, err := addressTarget(c)
	if err == nil {
		err = h.uc.Delete(c.Request().Context(), userID, id)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *AddressHandler) setDefault(c echo.Context) error {
	userID, id, err := addressTarget(c)
	if err == nil {
		err = h.uc.SetDefault(c.Request().Context(), userID, id)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "default set"})
}
