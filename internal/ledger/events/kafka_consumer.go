package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Recomputer is the subset of the recompute engine the audit consumer needs.
type Recomputer interface {
	RecomputeTotal(ctx context.Context, contractID uuid.UUID) error
	RecomputePaid(ctx context.Context, contractID uuid.UUID) error
}

// AuditConsumer replays both recompute operations for every contract id seen
// on the topic. Recompute is idempotent and a no-op for deleted contracts, so
// replaying is always safe; the consumer acts as a consistency audit that
// heals any drift between the derived fields and the child collections.
type AuditConsumer struct {
	reader     *kafka.Reader
	recomputer Recomputer
	logger     *zap.Logger
}

func NewAuditConsumer(brokers []string, groupID, topic string, recomputer Recomputer, logger *zap.Logger) *AuditConsumer {
	return &AuditConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer:  kafka.DefaultDialer,
		}),
		recomputer: recomputer,
		logger:     logger.Named("audit_consumer"),
	}
}

func (c *AuditConsumer) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("Failed to fetch message", zap.Error(err))
				continue
			}

			var event Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				c.logger.Error("Failed to parse event",
					zap.Error(err),
					zap.ByteString("value", msg.Value),
				)
				continue
			}

			if event.Contract != nil {
				if err := c.audit(ctx, event.Contract.ID); err != nil {
					c.logger.Error("Failed to audit contract",
						zap.Error(err),
						zap.String("contract_id", event.Contract.ID.String()),
					)
					continue
				}
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Failed to commit message",
					zap.Error(err),
					zap.String("event_type", string(event.Type)),
				)
			}
		}
	}()
}

func (c *AuditConsumer) audit(ctx context.Context, contractID uuid.UUID) error {
	if err := c.recomputer.RecomputeTotal(ctx, contractID); err != nil {
		return err
	}
	return c.recomputer.RecomputePaid(ctx, contractID)
}

func (c *AuditConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
