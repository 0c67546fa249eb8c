// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/i18n"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type recordingSender struct {
	sent []email.Message
}

func (r *recordingSender) Send(_ context.Context, msg email.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Test App",
		TLS:      true,
	}
}

func newService(t *testing.T) (*email.Service, *recordingSender) {
	t.Helper()
	require.NoError(t, i18n.Init())
	sender := &recordingSender{}
	return email.NewService(sender, "https://app.example.com/"), sender
}

func TestSendVerificationCode(t *testing.T) {
	svc, sender := newService(t)
	ctx := i18n.WithLocale(context.Background(), language.English)

	err := svc.SendVerificationCode(ctx, "ada@example.com", "Ada", "042137")

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Your Assistant Hub verification code", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Ada")
	assert.Contains(t, msg.Body, "042137")
}

func TestSendVerificationCode_FallsBackToAddress(t *testing.T) {
	svc, sender := newService(t)

	err := svc.SendVerificationCode(context.Background(), "ada@example.com", "", "042137")

	require.NoError(t, err)
	assert.Contains(t, sender.sent[0].Body, "Hello ada@example.com")
}

func TestSendInvitation(t *testing.T) {
	svc, sender := newService(t)

	err := svc.SendInvitation(context.Background(), "bob@example.com", models.RoleAdmin, "s3cr3t")

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "https://app.example.com/accept-invitation/s3cr3t")
	assert.Contains(t, sender.sent[0].Body, "admin")
}

func TestSendPasswordReset_German(t *testing.T) {
	svc, sender := newService(t)
	ctx := i18n.WithLocale(context.Background(), language.German)

	err := svc.SendPasswordReset(ctx, "ada@example.com", "resetsecret")

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Passwort für Assistant Hub zurücksetzen", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, "https://app.example.com/reset-password/resetsecret")
}

func TestSendPasswordChanged(t *testing.T) {
	svc, sender := newService(t)

	err := svc.SendPasswordChanged(context.Background(), "ada@example.com")

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Your Assistant Hub password was changed", sender.sent[0].Subject)
}

func TestNewSMTPSender(t *testing.T) {
	sender, err := email.NewSMTPSender(validSMTPConfig())

	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestNewSMTPSender_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewSMTPSender(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewSMTPSender_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewSMTPSender(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestSMTPSender_InvalidRecipient(t *testing.T) {
	sender, err := email.NewSMTPSender(validSMTPConfig())
	require.NoError(t, err)

	err = sender.Send(context.Background(), email.Message{To: "not an address", Subject: "x", Body: "y"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting to address")
}

func TestSMTPSender_Unreachable(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.TLS = false
	sender, err := email.NewSMTPSender(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = sender.Send(ctx, email.Message{To: "ada@example.com", Subject: "x", Body: "y"})

	require.Error(t, err)
}

func TestNewSender(t *testing.T) {
	sender, err := email.NewSender(&config.SMTPConfig{})
	require.NoError(t, err)
	assert.IsType(t, email.LogSender{}, sender)

	sender, err = email.NewSender(validSMTPConfig())
	require.NoError(t, err)
	assert.IsType(t, &email.SMTPSender{}, sender)
}

func TestLogSender(t *testing.T) {
	err := email.LogSender{}.Send(context.Background(), email.Message{To: "ada@example.com"})

	assert.NoError(t, err)
}
