package notification

import (
	"context"
	"log/slog"
)

const (
	// KindOTP carries a one-time login code.
	KindOTP = "otp"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Channel     string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message Message) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, message Message) error { return f(ctx, message) }

// LoggerNotifier writes notifications to the logger instead of an SMS or
// email gateway. Codes appear in the log, which is how local runs read them.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("channel", message.Channel),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}
