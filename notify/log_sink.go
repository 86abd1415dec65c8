package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes every message to the structured log. Used when no outbox is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.log.Info("notification",
		zap.String("message_id", msg.ID),
		zap.String("kind", string(msg.Kind)),
		zap.String("recipient_id", msg.RecipientID),
		zap.Any("payload", msg.Payload),
	)
	return nil
}
