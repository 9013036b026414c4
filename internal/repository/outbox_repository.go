package repository

import (
	"context"

	"petstore/internal/domain/model"
)

type OutboxRepository interface {
	Save(ctx context.Context, event model.OutboxEvent) error

	// 未送信をロックして取る（FOR UPDATE SKIP LOCKED）
	FetchUnpublished(ctx context.Context, batchSize int, maxAttempts int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID int64) error
	MarkFailed(ctx context.Context, eventID int64, errMsg string) error
}
