package routes

import (
	"log/slog"
	"time"

	"github.com/fixoo-edu/fixoo_api/internal/config"
	"github.com/fixoo-edu/fixoo_api/internal/notification"
)

// newNotifier routes SMS and email to their providers, each behind a rate
// limit and circuit breaker. A channel without credentials logs instead. The
// guards are returned by channel name for health output.
func newNotifier(cfg config.Config, logger *slog.Logger) (notification.Notifier, map[string]*notification.Guard) {
	fallback := notification.NewLoggerNotifier(logger)
	guards := map[string]*notification.Guard{}

	var sms notification.Notifier = fallback
	if cfg.SMS.APIURL != "" && cfg.SMS.Token != "" {
		guards["sms"] = notification.NewGuard(
			notification.NewSMSNotifier(cfg.SMS.APIURL, cfg.SMS.Token, cfg.SMS.From),
			guardConfig("sms", cfg), logger)
		sms = guards["sms"]
	} else {
		logger.Warn("sms provider not configured, codes will be logged")
	}

	var email notification.Notifier = fallback
	if cfg.Mail.APIKey != "" && cfg.Mail.From != "" {
		guards["email"] = notification.NewGuard(
			notification.NewEmailNotifier(notification.DefaultEmailURL, cfg.Mail.APIKey, cfg.Mail.From, cfg.Mail.FromName),
			guardConfig("email", cfg), logger)
		email = guards["email"]
	} else {
		logger.Warn("email provider not configured, codes will be logged")
	}

	return notification.NewMux(sms, email), guards
}

func guardConfig(name string, cfg config.Config) notification.GuardConfig {
	return notification.GuardConfig{
		Name:          name,
		RatePerSecond: cfg.Notify.RatePerSecond,
		MaxFailures:   cfg.Notify.BreakerMaxFailures,
		OpenTimeout:   30 * time.Second,
	}
}
