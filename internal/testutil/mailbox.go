// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"errors"
	"sync"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
)

// ErrMailboxDown is returned by a failing Mailbox.
var ErrMailboxDown = errors.New("mailbox unavailable")

// Notification is one message captured by a Mailbox.
type Notification struct {
	Kind   string // verification, invitation, reset, changed
	To     string
	Secret string // code or URL secret, empty for "changed"
	Role   models.Role
}

// Mailbox is a recording notifier for tests.
type Mailbox struct {
	mu   sync.Mutex
	sent []Notification
	Fail bool
}

func (m *Mailbox) record(n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrMailboxDown
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *Mailbox) SendVerificationCode(_ context.Context, to, _, code string) error {
	return m.record(Notification{Kind: "verification", To: to, Secret: code})
}

func (m *Mailbox) SendInvitation(_ context.Context, to string, role models.Role, secret string) error {
	return m.record(Notification{Kind: "invitation", To: to, Secret: secret, Role: role})
}

func (m *Mailbox) SendPasswordReset(_ context.Context, to, secret string) error {
	return m.record(Notification{Kind: "reset", To: to, Secret: secret})
}

func (m *Mailbox) SendPasswordChanged(_ context.Context, to string) error {
	return m.record(Notification{Kind: "changed", To: to})
}

// Sent returns a copy of all captured notifications.
func (m *Mailbox) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}

// Last returns the most recent notification of kind for to, or false.
func (m *Mailbox) Last(kind, to string) (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind && m.sent[i].To == to {
			return m.sent[i], true
		}
	}
	return Notification{}, false
}
