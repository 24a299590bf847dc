// Package events は予約ライフサイクルイベントの配信を提供する。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/travelbook/internal/model"
	"github.com/segmentio/kafka-go"
)

// Publisher は予約イベントの配信インターフェース。
type Publisher interface {
	Publish(ctx context.Context, event model.BookingEvent) error
	Close() error
}

// messageWriter はkafka.Writerのうち利用するメソッドを抽象化する。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher はKafkaトピックへ予約イベントをJSONで書き込む。
// メッセージキーは予約IDで、同一予約のイベント順序をパーティション内で保つ。
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher は指定ブローカーとトピックに書き込むKafkaPublisherを生成する。
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// Topic は書き込み先のトピック名を返す。
func (p *KafkaPublisher) Topic() string {
	return p.topic
}

// Publish はイベントを1件書き込む。
func (p *KafkaPublisher) Publish(ctx context.Context, event model.BookingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.BookingID),
		Value: data,
		Time:  event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write booking event to %s: %w", p.topic, err)
	}

	p.logger.Debug("booking event published",
		slog.String("topic", p.topic),
		slog.String("type", event.Type),
		slog.String("booking_id", event.BookingID),
	)
	return nil
}

// Close は未送信メッセージを送り切ってからライターを閉じる。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher はブローカー未設定時に使う何もしない実装。
type NoopPublisher struct{}

// Publish は何もせずnilを返す。
func (NoopPublisher) Publish(context.Context, model.BookingEvent) error { return nil }

// Close は何もせずnilを返す。
func (NoopPublisher) Close() error { return nil }

// NewPublisher はブローカーが設定されていればKafkaPublisherを、なければNoopPublisherを返す。
func NewPublisher(brokers []string, topic string, logger *slog.Logger) Publisher {
	if len(brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic, logger)
}

// compile-time interface checks
var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
