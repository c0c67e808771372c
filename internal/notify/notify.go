package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/xbiggyl/wsassistant/internal/session"
)

// Notifier delivers the final minutes of an archived session. Failures are
// logged by the caller and never resurrect the session.
type Notifier interface {
	Notify(ctx context.Context, aggregate session.Aggregate) error
}

// SMTPConfig contains mail delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier emails plain-text minutes to every participant with an
// email address.
type SMTPNotifier struct {
	config SMTPConfig
}

// NewSMTPNotifier creates an SMTP-backed notifier. Configuration errors
// here are fatal init errors.
func NewSMTPNotifier(config SMTPConfig) (*SMTPNotifier, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("SMTP host cannot be empty")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid SMTP port: %d", config.Port)
	}
	if config.From == "" {
		return nil, fmt.Errorf("sender address cannot be empty")
	}

	return &SMTPNotifier{config: config}, nil
}

// Notify sends the minutes in one message addressed to all recipients.
// Sessions without any participant email are skipped silently.
func (n *SMTPNotifier) Notify(ctx context.Context, aggregate session.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipients := recipientAddresses(aggregate)
	if len(recipients) == 0 {
		return nil
	}

	body := RenderMinutes(aggregate)
	msg := buildMessage(n.config.From, recipients, subjectFor(aggregate), body)

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	if err := smtp.SendMail(addr, auth, n.config.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send minutes: %w", err)
	}

	return nil
}

func recipientAddresses(aggregate session.Aggregate) []string {
	var addrs []string
	for _, p := range aggregate.Metadata.Participants {
		if p.Email != "" {
			addrs = append(addrs, p.Email)
		}
	}
	return addrs
}

func subjectFor(aggregate session.Aggregate) string {
	title := aggregate.Metadata.Title
	if title == "" {
		title = aggregate.SessionID
	}
	return "Meeting minutes: " + title
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// RenderMinutes formats the aggregate as plain-text meeting minutes with
// the summary timeline followed by the full transcript.
func RenderMinutes(aggregate session.Aggregate) string {
	var b strings.Builder

	title := aggregate.Metadata.Title
	if title == "" {
		title = aggregate.SessionID
	}
	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "Date: %s\n", aggregate.Metadata.CreatedAt.Format("2006-01-02 15:04 MST"))
	if !aggregate.EndedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", aggregate.EndedAt.Sub(aggregate.Metadata.CreatedAt).Round(time.Minute))
	}

	if len(aggregate.Metadata.Participants) > 0 {
		b.WriteString("\nParticipants:\n")
		for _, p := range aggregate.Metadata.Participants {
			fmt.Fprintf(&b, "  - %s\n", p.DisplayName)
		}
	}

	if len(aggregate.Summaries) > 0 {
		b.WriteString("\nSummary:\n")
		for _, s := range aggregate.Summaries {
			fmt.Fprintf(&b, "\n%s - %s\n", s.Start.Format("15:04"), s.End.Format("15:04"))
			for _, bullet := range s.Bullets {
				fmt.Fprintf(&b, "  * %s\n", bullet)
			}
			if len(s.Keywords) > 0 {
				fmt.Fprintf(&b, "  Keywords: %s\n", strings.Join(s.Keywords, ", "))
			}
		}
	}

	if len(aggregate.Transcript) > 0 {
		b.WriteString("\nTranscript:\n")
		for _, seg := range aggregate.Transcript {
			speaker := seg.SpeakerName
			if speaker == "" {
				speaker = seg.SpeakerID
			}
			fmt.Fprintf(&b, "[%s] %s: %s\n", seg.Start.Format("15:04:05"), speaker, seg.Text)
		}
	}

	return b.String()
}
