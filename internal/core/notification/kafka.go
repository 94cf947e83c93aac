package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/segmentio/kafka-go"
)

// Writer is the part of *kafka.Writer the sender needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter keys messages by owner so one owner's events stay ordered.
func NewKafkaWriter(brokers []string, topic string, log logger.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Warn(fmt.Sprintf(msg, args...))
		}),
	}
}

type KafkaSender struct {
	writer Writer
}

func NewKafkaSender(writer Writer) *KafkaSender {
	return &KafkaSender{writer: writer}
}

func (s *KafkaSender) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OwnerID.String()),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

// LogSender is used when no broker is configured.
type LogSender struct {
	log logger.Logger
}

func NewLogSender(log logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, ev Event) error {
	s.log.Info("Notification",
		logger.StringField("type", string(ev.Type)),
		logger.StringField("owner_id", ev.OwnerID.String()),
		logger.StringField("subject", ev.Subject),
		logger.StringField("body", ev.Body))
	return nil
}
