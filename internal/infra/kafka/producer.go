package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"petstore/internal/logger"
)

// Publisherはorder_eventsの送り先
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

type producer struct {
	syncProducer sarama.SyncProducer
	log          *zap.Logger
}

// brokersが空ならログに出すだけのPublisherを返す
func NewPublisher(brokers []string, log *zap.Logger) (Publisher, error) {
	if len(brokers) == 0 {
		return &logPublisher{log: log}, nil
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}
	return newProducer(p, log), nil
}

func newProducer(p sarama.SyncProducer, log *zap.Logger) *producer {
	return &producer{syncProducer: p, log: log}
}

func (p *producer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	var headers []sarama.RecordHeader
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	}

	partition, offset, err := p.syncProducer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	logger.Debug(ctx, p.log, "Message sent",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *producer) Close() error {
	return p.syncProducer.Close()
}

type logPublisher struct {
	log *zap.Logger
}

func (p *logPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	logger.Info(ctx, p.log, "Kafka not configured, event logged only",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.ByteString("payload", payload),
	)
	return nil
}

func (p *logPublisher) Close() error { return nil }
