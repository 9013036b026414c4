package handler

import (
	"net/http"

	"petstore/internal/config"
	"petstore/internal/repository"
	"petstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// カード決済の準備（PaymentIntent作成）
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// 金額は受け取らず明細から計算する
type CreateIntentRequest struct {
	OrderItems    []usecase.CheckoutItem `json:"order_items" validate:"required,min=1,dive"`
	PromotionCode string                 `json:"promotion_code"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/payments", requireAuth(cfg, userRepo)...)
	g.POST("/create-intent", h.createIntent)
}

func (h *PaymentHandler) createIntent(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateIntentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateIntent(c.Request().Context(), userID, usecase.CreateIntentInput{
		Items:         req.OrderItems,
		PromotionCode: req.PromotionCode,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
