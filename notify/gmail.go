// ABOUTME: Sends booking notifications as plain-text email through the Gmail API
// ABOUTME: Messages are built as RFC 5322 text and submitted base64url-encoded
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"time"

	"github.com/harperreed/consult/models"
	"google.golang.org/api/gmail/v1"
)

// GmailNotifier sends as the authorised user ("me").
type GmailNotifier struct {
	svc    *gmail.Service
	sender string
	now    func() time.Time
}

// NewGmailNotifier wraps an authenticated Gmail service. sender is the From
// address, usually the account's own address.
func NewGmailNotifier(svc *gmail.Service, sender string) *GmailNotifier {
	return &GmailNotifier{svc: svc, sender: sender, now: time.Now}
}

func (g *GmailNotifier) Send(ctx context.Context, n models.Notification) error {
	msg, err := Render(n)
	if err != nil {
		return err
	}

	raw := buildRFC822(g.sender, msg, g.now())
	_, err = g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", msg.To, err)
	}
	return nil
}

func buildRFC822(from string, msg Message, date time.Time) []byte {
	to := (&mail.Address{Name: msg.ToName, Address: msg.To}).String()

	var buf bytes.Buffer
	if from != "" {
		fmt.Fprintf(&buf, "From: %s\r\n", from)
	}
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}
