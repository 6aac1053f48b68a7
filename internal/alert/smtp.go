// Package alert sends operator notifications when a batch run dies.
package alert

import (
	"context"
	"fmt"
	"time"

	"journalize_robot_backend/platform/config"
	"journalize_robot_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers failure alerts over the operator SMTP relay.
type Sender struct {
	enabled  bool
	host     string
	port     int
	username string
	password string
	fromAddr string
	toAddr   string
	log      *logger.Logger
}

// New creates a new alert sender. When alerting is disabled the sender is a
// no-op so callers never need to branch.
func New(cfg config.AlertConfig, log *logger.Logger) *Sender {
	return &Sender{
		enabled:  cfg.GetAlertEnabled(),
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		username: cfg.GetSMTPUsername(),
		password: cfg.GetSMTPPassword(),
		fromAddr: cfg.GetAlertFromAddress(),
		toAddr:   cfg.GetAlertToAddress(),
		log:      log,
	}
}

// SendBatchFailure notifies the operators that a batch aborted on a fatal
// error. Remaining forms stay unprocessed until the next run.
func (s *Sender) SendBatchFailure(ctx context.Context, webformID string, cause error) {
	if s == nil || !s.enabled {
		return
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.fromAddr); err != nil {
		s.log.Error("alert from address rejected", "error", err)
		return
	}
	if err := msg.To(s.toAddr); err != nil {
		s.log.Error("alert to address rejected", "error", err)
		return
	}
	msg.Subject(fmt.Sprintf("Journalize robot: batch %s failed", webformID))
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"The journalizing batch for webform %s aborted on a fatal error.\n\nError: %v\n\nRemaining forms are untouched and will be picked up on the next run.\n",
		webformID, cause,
	))

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		s.log.Error("failed to build alert smtp client", "error", err)
		return
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.log.Error("failed to send batch failure alert", "error", err)
		return
	}

	s.log.Info("batch failure alert sent", "webform_id", webformID)
}
