package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fixoo-edu/fixoo_api/internal/logging"
)

const (
	// KindOTP marks a one-time code delivery.
	KindOTP = "otp"

	// ChannelSMS routes a message to the SMS provider.
	ChannelSMS = "sms"
	// ChannelEmail routes a message to the email provider.
	ChannelEmail = "email"
)

// Message describes a notification payload. HTML is only used by email.
type Message struct {
	Kind        string
	Channel     string
	Destination string
	Subject     string
	Body        string
	HTML        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of a provider.
// It stands in for SMS and email when no credentials are configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. The body may carry a
// one-time code, so it is only emitted at debug level.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", message.Kind),
		slog.String("channel", message.Channel),
		slog.String("destination", logging.Mask(message.Destination)),
		slog.String("subject", message.Subject),
	}
	n.logger.Info("notification", attrs...)
	if n.logger.Enabled(ctx, slog.LevelDebug) {
		n.logger.Debug("notification body", append(attrs, slog.String("body", message.Body))...)
	}
	return nil
}

// Mux routes messages to a notifier per channel.
type Mux struct {
	routes map[string]Notifier
}

// NewMux builds a router for the given channel notifiers.
func NewMux(sms, email Notifier) *Mux {
	return &Mux{routes: map[string]Notifier{ChannelSMS: sms, ChannelEmail: email}}
}

// Send dispatches message on its channel.
func (m *Mux) Send(ctx context.Context, message Message) error {
	n, ok := m.routes[message.Channel]
	if !ok || n == nil {
		return fmt.Errorf("no notifier for channel %q", message.Channel)
	}
	return n.Send(ctx, message)
}
