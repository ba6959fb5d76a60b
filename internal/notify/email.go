package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// EmailChannel sends plain-text mail through an SMTP relay.
// config.Target holds a comma-separated recipient list.
type EmailChannel struct {
	addr string // host:port of the SMTP relay
	from string
	auth smtp.Auth

	// send is swapped out in tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates an email channel. auth may be nil for
// unauthenticated relays.
func NewEmailChannel(addr, from string, auth smtp.Auth) *EmailChannel {
	return &EmailChannel{
		addr: addr,
		from: from,
		auth: auth,
		send: smtp.SendMail,
	}
}

// Type implements Channel
func (c *EmailChannel) Type() model.ChannelType {
	return model.ChannelEmail
}

// Send delivers the message to the recipients in config.Target
func (c *EmailChannel) Send(ctx context.Context, config model.ChannelConfig, msg Message) error {
	if c.addr == "" {
		return fmt.Errorf("email channel is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	recipients := splitRecipients(config.Target)
	if len(recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	var body strings.Builder
	body.WriteString("From: " + c.from + "\r\n")
	body.WriteString("To: " + strings.Join(recipients, ", ") + "\r\n")
	body.WriteString("Subject: " + msg.Title + "\r\n")
	body.WriteString("\r\n")
	body.WriteString(msg.Text + "\r\n")

	if err := c.send(c.addr, c.auth, c.from, recipients, []byte(body.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func splitRecipients(target string) []string {
	var recipients []string
	for _, part := range strings.Split(target, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}
