package handler

import (
	"net/http"

	"petstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /products（ログイン不要）
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/top", h.top)
	e.GET("/products/:id", h.detail)
}

// クエリ → ListProductsInput。数値でないものは400
func listProductsQuery(c echo.Context) (usecase.ListProductsInput, error) {
	in := usecase.ListProductsInput{
		Q:        c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
	}
	var ok bool
	if in.Page, ok = queryInt(c, "page", 1); !ok {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit, ok = queryInt(c, "limit", 20); !ok {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.MinPrice, ok = queryInt64Ptr(c, "min_price"); !ok {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid min_price")
	}
	if in.MaxPrice, ok = queryInt64Ptr(c, "max_price"); !ok {
		return in, usecase.NewHTTPError(http.StatusBadRequest, "invalid max_price")
	}
	return in, nil
}

func (h *ProductHandler) list(c echo.Context) error {
	in, err := listProductsQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.List(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) top(c echo.Context) error {
	limit, ok := queryInt(c, "limit", 5)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	items, err := h.uc.Top(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
