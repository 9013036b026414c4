package repository

import (
	"context"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) orders(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Order{})
}

func paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Offset((page - 1) * limit).Limit(limit)
	}
}

// 件数と1ページ分を新しい順で
func listOrders(q *gorm.DB, page, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []model.Order
	if err := q.Order("id DESC").Scopes(paginate(page, limit)).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func paymentColumns(p model.PaymentResult) map[string]any {
	return map[string]any{
		"payment_id":            p.ID,
		"payment_status":        p.Status,
		"payment_update_time":   p.UpdateTime,
		"payment_email_address": p.EmailAddress,
	}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Take(&o, orderID).Error; err != nil {
		if isNotFound(err) {
			return model.Order{}, repo.ErrNotFound
		}
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	return listOrders(r.orders(ctx).Where("user_id = ?", userID), page, limit)
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	err := r.db.WithContext(ctx).Create(&order).Error
	switch {
	case isUniqueViolation(err):
		return 0, repo.ErrConflict
	case err != nil:
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) ChangeStatus(ctx context.Context, orderID int64, ch repo.StatusChange) error {
	cols := map[string]any{"status": ch.To}
	if ch.To == model.OrderStatusDelivered {
		cols["is_delivered"] = true
		cols["delivered_at"] = ch.At
	}
	if ch.ForcePaid {
		cols["is_paid"] = true
		cols["paid_at"] = gorm.Expr("COALESCE(paid_at, ?)", ch.At)
		cols["payment_status"] = model.PaymentStatusSuccess
	}

	res := r.orders(ctx).Where("id = ? AND status = ?", orderID, ch.From).Updates(cols)
	if res.Error == nil && res.RowsAffected == 0 {
		return repo.ErrConflict
	}
	return res.Error
}

func (r *OrderGormRepository) MarkPaid(ctx context.Context, orderID int64, p repo.MarkPaidParams) (bool, error) {
	cols := paymentColumns(p.Result)
	cols["is_paid"] = true
	cols["paid_at"] = p.PaidAt
	if p.Advance {
		cols["status"] = gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
			model.OrderStatusPending, model.OrderStatusProcessing)
	}

	res := r.orders(ctx).Where("id = ? AND NOT is_paid", orderID).Updates(cols)
	return res.RowsAffected == 1, res.Error
}

func (r *OrderGormRepository) SetPaymentResult(ctx context.Context, orderID int64, result model.PaymentResult) error {
	return affected(r.orders(ctx).Where("id = ?", orderID).Updates(paymentColumns(result)))
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key).Take(&o).Error
	switch {
	case isNotFound(err):
		return model.Order{}, false, nil
	case err != nil:
		return model.Order{}, false, err
	}
	return o, true, nil
}

func adminOrderFilter(f repo.AdminOrderListFilter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if f.Status != "" {
			tx = tx.Where("status = ?", f.Status)
		}
		if f.UserID != nil {
			tx = tx.Where("user_id = ?", *f.UserID)
		}
		if f.From != nil {
			tx = tx.Where("created_at >= ?", *f.From)
		}
		if f.To != nil {
			tx = tx.Where("created_at <= ?", *f.To)
		}
		return tx
	}
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return listOrders(r.orders(ctx).Scopes(adminOrderFilter(f)), f.Page, f.Limit)
}
