package notification

import (
    "context"
    "log/slog"
)

const (
    // KindTransferCompleted is emitted once a transfer has been committed to the ledger.
    KindTransferCompleted = "transfer_completed"
)

// Message describes a notification payload.
type Message struct {
    Kind        string
    Destination string
    Body        string
    Attributes  map[string]string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    attrs := make([]any, 0, 3+len(message.Attributes))
    attrs = append(attrs,
        slog.String("kind", message.Kind),
        slog.String("destination", message.Destination),
        slog.String("body", message.Body),
    )
    for k, v := range message.Attributes {
        attrs = append(attrs, slog.String(k, v))
    }
    n.logger.InfoContext(ctx, "notification", attrs...)
    return nil
}
