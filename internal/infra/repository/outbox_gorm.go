package repository

import (
	"context"

	"petstore/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxGormRepository struct {
	db *gorm.DB
}

func NewOutboxGormRepository(db *gorm.DB) *OutboxGormRepository {
	return &OutboxGormRepository{db: db}
}

func (r *OutboxGormRepository) Save(ctx context.Context, event model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(&event).Error
}

// 複数workerでも同じイベントを二重に取らない
func (r *OutboxGormRepository) FetchUnpublished(ctx context.Context, batchSize int, maxAttempts int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND attempts < ?", maxAttempts).
		Order("created_at asc").Order("id asc").
		Limit(batchSize).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *OutboxGormRepository) MarkPublished(ctx context.Context, eventID int64) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"published_at": gorm.Expr("NOW()"),
			"last_error":   nil,
		}).Error
}

func (r *OutboxGormRepository) MarkFailed(ctx context.Context, eventID int64, errMsg string) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"last_error": errMsg,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
}
