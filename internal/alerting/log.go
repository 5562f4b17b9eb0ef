package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier 仅将消息写入日志，用于未配置 Telegram 的场景。
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier 构造日志推送器。
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify writes the message text and photo size at info level.
func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info().
		Str("text", msg.Text).
		Str("photo", msg.PhotoName).
		Int("photo_bytes", len(msg.Photo)).
		Msg("notification (log only)")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
