// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email composes and delivers account notifications.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/i18n"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"github.com/wneessen/go-mail"
)

// Notifier delivers the messages of the account lifecycle.
type Notifier interface {
	SendVerificationCode(ctx context.Context, to, name, code string) error
	SendInvitation(ctx context.Context, to string, role models.Role, secret string) error
	SendPasswordReset(ctx context.Context, to, secret string) error
	SendPasswordChanged(ctx context.Context, to string) error
}

// Message is a plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender transports a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Service composes localized messages and hands them to a Sender.
type Service struct {
	sender      Sender
	frontendURL string
}

// NewService creates a notifier that links to pages under frontendURL.
func NewService(sender Sender, frontendURL string) *Service {
	return &Service{
		sender:      sender,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// SendVerificationCode mails the 6-digit code of a new signup.
func (s *Service) SendVerificationCode(ctx context.Context, to, name, code string) error {
	if name == "" {
		name = to
	}
	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: i18n.T(ctx, "email_verification_subject"),
		Body: i18n.TData(ctx, "email_verification_body", map[string]any{
			"Name": name,
			"Code": code,
		}),
	})
}

// SendInvitation mails the link that completes an invitation.
func (s *Service) SendInvitation(ctx context.Context, to string, role models.Role, secret string) error {
	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: i18n.T(ctx, "email_invitation_subject"),
		Body: i18n.TData(ctx, "email_invitation_body", map[string]any{
			"Role": string(role),
			"URL":  s.frontendURL + "/accept-invitation/" + secret,
		}),
	})
}

// SendPasswordReset mails the reset link.
func (s *Service) SendPasswordReset(ctx context.Context, to, secret string) error {
	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: i18n.T(ctx, "email_password_reset_subject"),
		Body: i18n.TData(ctx, "email_password_reset_body", map[string]any{
			"URL": s.frontendURL + "/reset-password/" + secret,
		}),
	})
}

// SendPasswordChanged confirms a completed reset.
func (s *Service) SendPasswordChanged(ctx context.Context, to string) error {
	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: i18n.T(ctx, "email_password_changed_subject"),
		Body:    i18n.T(ctx, "email_password_changed_body"),
	})
}

// SMTPSender delivers messages through an SMTP server.
type SMTPSender struct {
	cfg *config.SMTPConfig
}

// NewSMTPSender validates the SMTP settings.
func NewSMTPSender(cfg *config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send delivers msg via go-mail.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func (s *SMTPSender) build(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS on 465, STARTTLS otherwise
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// LogSender writes messages to the log instead of sending them. For development only.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(ctx context.Context, m Message) error {
	slog.InfoContext(ctx, "email_not_sent", "to", m.To, "subject", m.Subject, "body", m.Body)
	return nil
}

// NewSender picks SMTP when configured and the log sender otherwise.
func NewSender(cfg *config.SMTPConfig) (Sender, error) {
	if !cfg.Enabled() {
		slog.Warn("SMTP not configured, emails are written to the log")
		return LogSender{}, nil
	}
	return NewSMTPSender(cfg)
}
