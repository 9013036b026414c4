package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"petstore/internal/domain/model"
	"petstore/internal/logger"
	repo "petstore/internal/repository"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	inventory *Inventory
	log       *zap.Logger
	now       func() time.Time
}

func NewAdminOrderUsecase(tx repo.TransactionManager, log *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, inventory: NewInventory(), log: log, now: time.Now}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return errDB()
		}

		outs := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return errDB()
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		out = OrderListOutput{Items: outs, Total: total, Page: f.Page, Limit: f.Limit}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// ステータス更新。
// Cancelledなら在庫戻し、代引きのDeliveredなら入金済みにする
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.TrimSpace(in.Status))
	if !newStatus.Valid() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderOutput
	changed := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound()
		}
		if err != nil {
			return errDB()
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}

		// すでに同じなら何もしない（通知もしない）
		if o.Status == newStatus {
			out = toOrderOutput(o, items)
			return nil
		}
		if !model.CanTransition(o.Status, newStatus) {
			return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("cannot change status from %s to %s", o.Status, newStatus))
		}

		if newStatus == model.OrderStatusCancelled {
			if err := u.inventory.Release(ctx, r.Inventory(), items); err != nil {
				return err
			}
		}

		now := u.now()
		forcePaid := newStatus == model.OrderStatusDelivered && o.PaymentMethod == model.PaymentMethodCOD && !o.IsPaid
		err = r.Orders().ChangeStatus(ctx, orderID, repo.StatusChange{
			From:      o.Status,
			To:        newStatus,
			At:        now,
			ForcePaid: forcePaid,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "order was updated concurrently")
		}
		if err != nil {
			return errDB()
		}

		before := o.Status
		o.Status = newStatus
		o.UpdatedAt = now
		if newStatus == model.OrderStatusDelivered {
			o.IsDelivered = true
			o.DeliveredAt = &now
		}
		if forcePaid {
			o.IsPaid = true
			o.PaidAt = &now
			o.PaymentResult.Status = model.PaymentStatusSuccess
		}

		// 監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Create(ctx, model.NewAuditLog(
			actorAdminUserID, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, orderID,
			map[string]model.OrderStatus{"status": before},
			map[string]model.OrderStatus{"status": newStatus},
			now,
		)); err != nil {
			return errDB()
		}

		user, err := r.Users().FindByID(ctx, o.UserID)
		if err != nil && !errors.Is(err, repo.ErrUserNotFound) {
			return errDB()
		}
		if err := enqueueNotification(ctx, r.Outbox(), orderNotification(model.NotificationStatusChanged, o, user, nil)); err != nil {
			return errDB()
		}
		if err := enqueueOrderEvent(ctx, r.Outbox(), model.OrderEventStatusChanged, o); err != nil {
			return errDB()
		}
		if forcePaid {
			if err := enqueueOrderEvent(ctx, r.Outbox(), model.OrderEventPaid, o); err != nil {
				return errDB()
			}
		}

		changed = true
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if changed {
		logger.Info(ctx, u.log, "Order status changed",
			zap.Int64("order_id", orderID),
			zap.String("status", string(newStatus)),
			zap.Int64("actor", actorAdminUserID),
		)
	}
	return out, nil
}

// 期間パラメータ（RFC3339）。handlerで使う
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
