package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RepoChat/backend/go/internal/config"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/models"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProgressPublisher 将运行进度事件发送到 Kafka，消息以 run_id 为 key，
// 因此同一运行的事件落在同一分区并保持顺序。
type ProgressPublisher struct {
	writer messageWriter
	topic  string
}

// NewProgressPublisher 创建一个新的 ProgressPublisher 实例。
func NewProgressPublisher(cfg config.KafkaConfig) *ProgressPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireOne,
	}
	return &ProgressPublisher{writer: writer, topic: cfg.Topic}
}

var _ interfaces.ProgressReporter = (*ProgressPublisher)(nil)

// Report 将 ProgressEvent 序列化为 JSON 并发送到 Kafka。
func (p *ProgressPublisher) Report(ctx context.Context, event models.ProgressEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: jsonData,
		Time:  event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *ProgressPublisher) Close() error {
	return p.writer.Close()
}
