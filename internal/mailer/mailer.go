// Package mailer отправляет письма с кодом подтверждения через SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

type Config struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	From     string `yaml:"from" env:"SMTP_FROM"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

type Mailer struct {
	cfg  Config
	auth smtp.Auth
}

func New(cfg Config) *Mailer {
	return &Mailer{
		cfg:  cfg,
		auth: smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host),
	}
}

// Send отправляет письмо. smtp.SendMail не принимает контекст, поэтому
// отмена срабатывает только до начала отправки.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := []byte("To: " + to + "\r\n" +
		"From: " + m.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := m.cfg.Host + ":" + m.cfg.Port
	if err := smtp.SendMail(addr, m.auth, m.cfg.From, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	return nil
}
