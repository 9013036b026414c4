package handler

import (
	"net/http"
	"time"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/repository"
	"petstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PromotionHandler struct {
	uc *usecase.PromotionUsecase
}

func NewPromotionHandler(uc *usecase.PromotionUsecase) *PromotionHandler {
	return &PromotionHandler{uc: uc}
}

type PromotionValidateRequest struct {
	Code      string `json:"code" validate:"required"`
	CartTotal int64  `json:"cart_total" validate:"gte=0"`
}

// 日付はRFC3339
type PromotionCreateRequest struct {
	Code                 string  `json:"code" validate:"required,max=50"`
	Description          string  `json:"description"`
	Type                 string  `json:"type" validate:"required,oneof=percent fixed shipping"`
	Value                int64   `json:"value" validate:"gte=0"`
	StartDate            string  `json:"start_date" validate:"required"`
	EndDate              string  `json:"end_date" validate:"required"`
	UsageLimit           int64   `json:"usage_limit" validate:"gte=0"`
	MinPurchase          int64   `json:"min_purchase" validate:"gte=0"`
	CampaignType         string  `json:"campaign_type" validate:"omitempty,oneof=promo_code product_discount"`
	ApplicableProductIDs []int64 `json:"applicable_product_ids"`
	IsActive             *bool   `json:"is_active"`
}

// 省略したフィールドは変更しない
type PromotionUpdateRequest struct {
	Description          *string `json:"description"`
	Type                 *string `json:"type" validate:"omitempty,oneof=percent fixed shipping"`
	Value                *int64  `json:"value" validate:"omitempty,gte=0"`
	StartDate            *string `json:"start_date"`
	EndDate              *string `json:"end_date"`
	UsageLimit           *int64  `json:"usage_limit" validate:"omitempty,gte=0"`
	MinPurchase          *int64  `json:"min_purchase" validate:"omitempty,gte=0"`
	CampaignType         *string `json:"campaign_type" validate:"omitempty,oneof=promo_code product_discount"`
	ApplicableProductIDs []int64 `json:"applicable_product_ids"`
	IsActive             *bool   `json:"is_active"`
}

func (h *PromotionHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/promotions")

	//公開
	g.POST("/validate", h.validate)
	g.GET("/product-discounts", h.productDiscounts)

	//管理者
	admin := requireAdmin(cfg, userRepo)
	g.GET("", h.list, admin...)
	g.POST("", h.create, admin...)
	g.PUT("/:id", h.update, admin...)
	g.DELETE("/:id", h.delete, admin...)
	g.POST("/:id/broadcast", h.broadcast, admin...)
}

func (h *PromotionHandler) validate(c echo.Context) error {
	var req PromotionValidateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.Validate(c.Request().Context(), req.Code, req.CartTotal)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PromotionHandler) productDiscounts(c echo.Context) error {
	out, err := h.uc.ProductDiscounts(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PromotionHandler) list(c echo.Context) error {
	out, err := h.uc.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PromotionHandler) create(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req PromotionCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	start, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return badRequest(c, "invalid start_date")
	}
	end, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return badRequest(c, "invalid end_date")
	}

	out, err := h.uc.Create(c.Request().Context(), adminID, usecase.PromotionInput{
		Code:                 req.Code,
		Description:          req.Description,
		Type:                 model.PromotionType(req.Type),
		Value:                req.Value,
		StartDate:            start,
		EndDate:              end,
		UsageLimit:           req.UsageLimit,
		MinPurchase:          req.MinPurchase,
		CampaignType:         model.CampaignType(req.CampaignType),
		ApplicableProductIDs: req.ApplicableProductIDs,
		IsActive:             req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *PromotionHandler) update(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req PromotionUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	in := usecase.PromotionUpdateInput{
		Description:          req.Description,
		Value:                req.Value,
		UsageLimit:           req.UsageLimit,
		MinPurchase:          req.MinPurchase,
		ApplicableProductIDs: req.ApplicableProductIDs,
		IsActive:             req.IsActive,
	}
	if req.Type != nil {
		t := model.PromotionType(*req.Type)
		in.Type = &t
	}
	if req.CampaignType != nil {
		ct := model.CampaignType(*req.CampaignType)
		in.CampaignType = &ct
	}
	if req.StartDate != nil {
		t, ok := usecase.ParseDateTimeRFC3339(*req.StartDate)
		if !ok {
			return badRequest(c, "invalid start_date")
		}
		in.StartDate = t
	}
	if req.EndDate != nil {
		t, ok := usecase.ParseDateTimeRFC3339(*req.EndDate)
		if !ok {
			return badRequest(c, "invalid end_date")
		}
		in.EndDate = t
	}

	out, err := h.uc.Update(c.Request().Context(), adminID, id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PromotionHandler) delete(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.Delete(c.Request().Context(), adminID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "Promotion removed"})
}

// 全ユーザーへ告知（送信はoutbox経由で非同期）
func (h *PromotionHandler) broadcast(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Broadcast(c.Request().Context(), adminID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
