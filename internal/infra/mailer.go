package infra

import (
	"fmt"
	"net/smtp"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends operational alert mails, e.g. when a reconciliation job fails.
// A nil Mailer (no ALERT_EMAIL configured) disables alerts.
type Mailer struct {
	host     string
	port     int
	user     string
	password string
	addr     string
	to       string
}

func NewMailer(cfg *config.Config) *Mailer {
	if cfg.AlertEmail == "" || cfg.SMTPHost == "" {
		return nil
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		to:       cfg.AlertEmail,
	}
}

// SendAlert mails the operations address. Safe to call on a nil receiver.
func (m *Mailer) SendAlert(subject, body string) error {
	if m == nil {
		return nil
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{m.to}
	e.Subject = subject
	e.Text = []byte(body)

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
