package model

import "time"

const (
	//メール送信（worker→SMTP）
	TopicNotifications = "notifications"
	//注文イベント（worker→Kafka）
	TopicOrderEvents = "order_events"
)

// 状態変更と同じTxで書くイベント。workerが後から送る
type OutboxEvent struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic       string     `gorm:"type:varchar(100);not null;index" json:"topic"`
	EventType   string     `gorm:"type:varchar(100);not null" json:"event_type"`
	AggregateID string     `gorm:"type:varchar(100);not null;index" json:"aggregate_id"`
	Payload     string     `gorm:"type:jsonb;not null" json:"payload"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   *string    `gorm:"type:text" json:"last_error,omitempty"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
