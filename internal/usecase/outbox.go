package usecase

import (
	"context"
	"encoding/json"
	"strconv"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"
)

// 状態変更と同じTxでoutboxに積む
func enqueue(ctx context.Context, ob repo.OutboxRepository, topic, eventType, aggregateID string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ob.Save(ctx, model.OutboxEvent{
		Topic:       topic,
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     string(b),
	})
}

func enqueueNotification(ctx context.Context, ob repo.OutboxRepository, n model.Notification) error {
	aggregate := n.Reference
	if aggregate == "" {
		aggregate = n.PromotionCode
	}
	return enqueue(ctx, ob, model.TopicNotifications, string(n.Kind), aggregate, n)
}

func enqueueOrderEvent(ctx context.Context, ob repo.OutboxRepository, eventType string, o model.Order) error {
	return enqueue(ctx, ob, model.TopicOrderEvents, eventType, o.Reference, model.OrderEvent{
		Type:      eventType,
		OrderID:   o.ID,
		Reference: o.Reference,
		UserID:    o.UserID,
		Status:    o.Status,
		IsPaid:    o.IsPaid,
		Total:     o.TotalPrice,
	})
}

// 注文についての通知を組み立てる
func orderNotification(kind model.NotificationKind, o model.Order, u *model.User, items []model.OrderItem) model.Notification {
	n := model.Notification{
		Kind:      kind,
		OrderID:   o.ID,
		Reference: o.Reference,
		Total:     o.TotalPrice,
		Method:    o.PaymentMethod,
		Status:    o.Status,
		Items:     items,
	}
	if u != nil {
		n.To = u.Email
		n.Name = u.FirstName
		if n.Name == "" {
			n.Name = u.FullName()
		}
	}
	return n
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
