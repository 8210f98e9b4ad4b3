// Package mailer dispatches importer notifications. The transport is
// deliberately thin: a Sender interface with an SMTP implementation and
// a local debug sink, so tests and MAIL_DEBUG-style deployments never
// touch the network.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
)

// Message is one outbound notification.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Sender delivers notification messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPSender delivers mail through a relay with net/smtp. No
// authentication is used; the relay is expected to be a local or
// trusted submission host.
type SMTPSender struct {
	Addr string // host:port
}

// NewSMTPSender creates a sender for the given relay address.
func NewSMTPSender(addr string) *SMTPSender {
	return &SMTPSender{Addr: addr}
}

// Send delivers the message. The body is sent as text/plain.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if s.Addr == "" {
		return fmt.Errorf("smtp relay address not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(s.Addr, nil, msg.From, msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// DebugSender collects messages in memory instead of delivering them.
// Used when mail debug mode is on, and by the test suites.
type DebugSender struct {
	mu       sync.Mutex
	messages []Message
}

// NewDebugSender creates an empty debug sink.
func NewDebugSender() *DebugSender {
	return &DebugSender{}
}

// Send records the message.
func (s *DebugSender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

// Messages returns a copy of everything recorded so far.
func (s *DebugSender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset clears the recorded messages.
func (s *DebugSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
