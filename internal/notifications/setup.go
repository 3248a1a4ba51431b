package notifications

import (
	"log/slog"
	"time"

	"github.com/geocoder89/fintechindex/internal/config"
)

// SinksFromConfig picks a real provider per channel when its credentials are
// configured and a LogSink otherwise. Real providers sit behind a breaker.
func SinksFromConfig(log *slog.Logger, cfg config.Config) (map[Channel]Sink, error) {
	sinks := map[Channel]Sink{
		ChannelEmail: NewLogSink(log, ChannelEmail),
		ChannelSMS:   NewLogSink(log, ChannelSMS),
	}

	if cfg.MailEnabled() {
		email, err := NewEmailSink(EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return nil, err
		}
		sinks[ChannelEmail] = NewProtectedSink(email, ProtectedSinkConfig{Timeout: 10 * time.Second})
	}

	if cfg.SMSEnabled() {
		sms := NewSMSSink(SMSConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFromNumber,
		})
		sinks[ChannelSMS] = NewProtectedSink(sms, ProtectedSinkConfig{})
	}

	return sinks, nil
}
