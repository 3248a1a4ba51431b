package notifications

import (
	"context"
	"log/slog"
)

// LogSink stands in for a channel whose credentials are not configured.
type LogSink struct {
	log     *slog.Logger
	channel Channel
}

func NewLogSink(log *slog.Logger, channel Channel) *LogSink {
	return &LogSink{log: log, channel: channel}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "notification.logged",
		"channel", s.channel,
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
