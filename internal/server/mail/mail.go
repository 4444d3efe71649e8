// Package mail delivers account messages: password reset links and the
// welcome message for administratively created accounts.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Message is a single outbound message. Body may contain secrets (reset
// links, initial passwords) and must never be logged.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Dispatcher sends a message. A nil error means the message was handed to
// the delivery backend, not that it reached the mailbox.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// Bytes renders msg as an RFC 5322 message.
func (m Message) Bytes(from string, date time.Time, messageID string) []byte {
	contentType := "text/plain; charset=UTF-8"
	if m.HTML {
		contentType = "text/html; charset=UTF-8"
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	if messageID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s>\r\n", messageID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}

// ResetMessage is the password reset notification carrying link.
func ResetMessage(to, link string, validFor time.Duration) Message {
	body := fmt.Sprintf(`You requested a password reset for your Task Manager account.

Open the link below to choose a new password:

%s

The link is valid for %d minutes and can be used once. If you did not
request a reset, ignore this message; your password stays unchanged.
`, link, int(validFor.Minutes()))

	return Message{To: to, Subject: "Task Manager password reset", Body: body}
}

// Profile fields shown in the welcome message.
type Welcome struct {
	Name            string
	Title           string
	Role            string
	InitialPassword string
}

// WelcomeMessage tells a newly created account its login details.
func WelcomeMessage(to string, w Welcome) Message {
	esc := func(s string) string {
		r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
		return r.Replace(s)
	}
	body := fmt.Sprintf(`<h3>Welcome to Task Manager!</h3>
<p><b>Full Name:</b> %s</p>
<p><b>Title:</b> %s</p>
<p><b>Role:</b> %s</p>
<p><b>Login Email:</b> %s</p>
<p><b>Initial Password:</b> <span style="font-family:monospace;">%s</span></p>
<p>Please change your password after first login for security.</p>
`, esc(w.Name), esc(w.Title), esc(w.Role), esc(to), esc(w.InitialPassword))

	return Message{To: to, Subject: "Your Task Manager Account Information", Body: body, HTML: true}
}
