package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/BearBump/FreightLink/internal/broker/messages"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает события плеч из топика планировщика. Сообщение без
// валидного конверта (не-JSON либо пустой type) коммитится с warn и до
// обработчика не доходит: одно битое сообщение не стопорит всю группу.
type Consumer struct {
	r   messageReader
	log *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		MaxWait:           500 * time.Millisecond,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r:   kafka.NewReader(cfg),
		log: slog.Default(),
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, log: slog.Default()}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume крутит fetch → handler → commit до ошибки чтения или отмены ctx.
// Ошибка обработчика останавливает чтение без коммита — сообщение будет
// перечитано после рестарта.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch leg event")
		}

		var env messages.Envelope
		if json.Unmarshal(msg.Value, &env) != nil || env.Type == "" {
			c.log.Warn("пропущено битое событие плеча",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
			if err := c.r.CommitMessages(ctx, msg); err != nil {
				return errors.Wrap(err, "commit skipped event")
			}
			continue
		}

		if err := handler(msg.Key, msg.Value); err != nil {
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit leg event")
		}
	}
}
