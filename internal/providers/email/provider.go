package email

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoRecipients = errors.New("email_no_recipients")
	ErrEmptySubject = errors.New("email_empty_subject")
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outbound email. At least one of Text or HTML is set.
type Message struct {
	To          []string
	Bcc         []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

func (m Message) Validate() error {
	if len(recipients(m.To)) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(m.Subject) == "" {
		return ErrEmptySubject
	}
	return nil
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return msg.Validate()
}

func recipients(list []string) []string {
	out := make([]string, 0, len(list))
	for _, addr := range list {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
