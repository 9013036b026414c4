package handler

import (
	"net/http"
	"strings"
	"time"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/middleware"
	"petstore/internal/repository"
	"petstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc      *usecase.OrderUsecase
	adminUC *usecase.AdminOrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase, adminUC *usecase.AdminOrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, adminUC: adminUC}
}

type ShippingAddressRequest struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// 金額は受け取らない（サーバーで計算する）
type OrderCreateRequest struct {
	OrderItems      []usecase.CheckoutItem  `json:"order_items" validate:"required,min=1,dive"`
	ShippingAddress *ShippingAddressRequest `json:"shipping_address" validate:"omitempty"`
	AddressID       int64                   `json:"address_id" validate:"omitempty,gt=0"`
	PaymentMethod   string                  `json:"payment_method" validate:"required,oneof=card khqr cod"`
	PromotionCode   string                  `json:"promotion_code"`
	PaymentIntentID string                  `json:"payment_intent_id"`

	//管理者のみ
	IsPaid bool   `json:"is_paid"`
	PaidAt string `json:"paid_at"`
}

type OrderPayRequest struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders", requireAuth(cfg, userRepo)...)

	g.POST("", h.create)
	g.GET("/mine", h.listMine)
	g.GET("/:id", h.detail)
	g.GET("/:id/payment", h.pollPayment)
	g.PUT("/:id/pay", h.pay)
	g.GET("/:id/invoice", h.invoice)

	//管理者
	g.GET("", h.adminList, middleware.AdminRoleGuard())
	g.PUT("/:id/status", h.updateStatus, middleware.AdminRoleGuard())
}

func (h *OrderHandler) create(c echo.Context) error {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	in := usecase.CreateOrderInput{
		Items:           req.OrderItems,
		AddressID:       req.AddressID,
		PaymentMethod:   model.PaymentMethod(req.PaymentMethod),
		PromotionCode:   req.PromotionCode,
		PaymentIntentID: req.PaymentIntentID,
		//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get("X-Idempotency-Key")),
		MarkPaid:       req.IsPaid,
	}
	if req.ShippingAddress != nil {
		in.ShippingAddress = &model.ShippingAddress{
			Address:    req.ShippingAddress.Address,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		}
	}
	if req.PaidAt != "" {
		t, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			return badRequest(c, "invalid paid_at")
		}
		in.PaidAt = &t
	}

	out, err := h.uc.Create(c.Request().Context(), viewer, in)
	if err != nil {
		return writeError(c, err)
	}

	return writeCreatedOrder(c, out)
}

const headerIdempotentReplayed = "Idempotent-Replayed"

// 再送でも201と同じ本文。再送かどうかはヘッダーで分かる
func writeCreatedOrder(c echo.Context, out usecase.CreateOrderOutput) error {
	if out.Replayed {
		c.Response().Header().Set(headerIdempotentReplayed, "true")
	}
	return c.JSON(http.StatusCreated, out.Order)
}

func (h *OrderHandler) listMine(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListMine(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Get(c.Request().Context(), viewer, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 入金確認（クライアントがポーリングする）
func (h *OrderHandler) pollPayment(c echo.Context) error {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.PollPayment(c.Request().Context(), viewer, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) pay(c echo.Context) error {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderPayRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.Pay(c.Request().Context(), viewer, id, usecase.PayOrderInput{
		PaymentIntentID: req.ID,
		Status:          req.Status,
		UpdateTime:      req.UpdateTime,
		EmailAddress:    req.EmailAddress,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) invoice(c echo.Context) error {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	html, err := h.uc.Invoice(c.Request().Context(), viewer, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.HTML(http.StatusOK, html)
}

func (h *OrderHandler) adminList(c echo.Context) error {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	userID, ok := queryInt64Ptr(c, "user_id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	f := repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		UserID: userID,
	}
	if v := c.QueryParam("from"); v != "" {
		t, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return badRequest(c, "invalid from")
		}
		f.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, ok := usecase.ParseDateTimeRFC3339(v)
		if !ok {
			return badRequest(c, "invalid to")
		}
		f.To = t
	}

	out, err := h.adminUC.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	// ★操作した管理者IDを取得（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.adminUC.UpdateStatus(
		c.Request().Context(),
		adminID,
		orderID,
		usecase.AdminUpdateOrderStatusInput{Status: req.Status},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
