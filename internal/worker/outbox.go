package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/logger"
	"petstore/internal/metrics"
	repo "petstore/internal/repository"
)

// Handlerは1件のイベントを外部へ送る。errorなら次回リトライ
type Handler func(ctx context.Context, event model.OutboxEvent) error

type OutboxProcessor struct {
	tx          repo.TransactionManager
	handlers    map[string]Handler
	logger      *zap.Logger
	batchSize   int
	maxAttempts int
	interval    time.Duration
	tracer      trace.Tracer
	metrics     *metrics.Metrics
}

func NewOutboxProcessor(
	tx repo.TransactionManager,
	handlers map[string]Handler,
	cfg config.Outbox,
	logger *zap.Logger,
) *OutboxProcessor {
	p := &OutboxProcessor{
		tx:          tx,
		handlers:    handlers,
		logger:      logger,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.Interval,
		tracer:      otel.Tracer("outbox-worker"),
	}
	if p.batchSize <= 0 {
		p.batchSize = 50
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 5
	}
	if p.interval <= 0 {
		p.interval = 500 * time.Millisecond
	}
	return p
}

func (p *OutboxProcessor) WithMetrics(m *metrics.Metrics) *OutboxProcessor {
	p.metrics = m
	return p
}

// Startはctxがキャンセルされるまでポーリングする
func (p *OutboxProcessor) Start(ctx context.Context) {
	logger.Info(ctx, p.logger, "Starting outbox processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.WithoutCancel(ctx), p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				logger.Error(ctx, p.logger, "Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatchは1バッチ分を処理し、送信できた件数を返す
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	type outcome struct {
		topic string
		ok    bool
	}
	var outcomes []outcome

	published := 0
	err := p.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		events, err := r.Outbox().FetchUnpublished(ctx, p.batchSize, p.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		logger.Debug(ctx, p.logger, "Processing outbox events", zap.Int("count", len(events)))

		for _, event := range events {
			if err := p.dispatch(ctx, event); err != nil {
				logger.Error(ctx, p.logger, "outbox worker dispatch failed",
					zap.Int64("id", event.ID),
					zap.String("topic", event.Topic),
					zap.Int("attempts", event.Attempts+1),
					zap.Error(err),
				)
				if dbErr := r.Outbox().MarkFailed(ctx, event.ID, err.Error()); dbErr != nil {
					return dbErr
				}
				outcomes = append(outcomes, outcome{event.Topic, false})
				continue
			}

			if err := r.Outbox().MarkPublished(ctx, event.ID); err != nil {
				return err
			}
			published++
			outcomes = append(outcomes, outcome{event.Topic, true})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	// commitできた分だけ数える
	for _, o := range outcomes {
		p.metrics.OutboxEvent(o.topic, o.ok)
	}
	return published, nil
}

func (p *OutboxProcessor) dispatch(ctx context.Context, event model.OutboxEvent) error {
	h, ok := p.handlers[event.Topic]
	if !ok {
		return fmt.Errorf("no handler for topic %q", event.Topic)
	}
	return h(ctx, event)
}

type notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NotificationHandlerはnotificationsトピックをメール送信へつなぐ
func NotificationHandler(n notifier) Handler {
	return func(ctx context.Context, event model.OutboxEvent) error {
		var note model.Notification
		if err := json.Unmarshal([]byte(event.Payload), &note); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		return n.Notify(ctx, note)
	}
}

type publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// OrderEventHandlerはorder_eventsトピックをそのままKafkaへ流す
func OrderEventHandler(pub publisher) Handler {
	return func(ctx context.Context, event model.OutboxEvent) error {
		return pub.Publish(ctx, event.Topic, event.AggregateID, []byte(event.Payload))
	}
}
