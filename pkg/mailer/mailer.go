// Package mailer provides functionality to send transactional emails over
// SMTP. The defaults target Mailtrap (https://mailtrap.io/), which is useful
// for development and testing environments; any SMTP relay works in
// production.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends mail through one SMTP relay using plain authentication.
type Mailer struct {
	host   string
	port   string
	user   string
	pass   string
	sender string
}

// New builds a Mailer. host and port fall back to the Mailtrap sandbox when
// empty.
func New(host, port, user, pass, sender string) *Mailer {
	if host == "" {
		host = "smtp.mailtrap.io"
	}
	if port == "" {
		port = "2525"
	}
	return &Mailer{host: host, port: port, user: user, pass: pass, sender: sender}
}

// Send delivers one message. The Content-Type header is inferred from basic
// HTML tags in the body; everything else is sent as UTF-8 plain text.
//
// Returns an error if any of the following occurs:
//   - recipient, subject, or the configured credentials are empty.
//   - Connection to the SMTP server fails.
//   - SMTP authentication fails.
//   - The email sending command fails on the server.
func (m *Mailer) Send(recipient, subject, body string) error {
	// Basic validation
	if recipient == "" {
		return fmt.Errorf("recipient email address cannot be empty")
	}
	if m.sender == "" {
		return fmt.Errorf("sender email address cannot be empty")
	}
	if subject == "" {
		return fmt.Errorf("email subject cannot be empty")
	}
	if m.user == "" || m.pass == "" {
		return fmt.Errorf("SMTP username and password must be provided")
	}

	// To send HTML mail, the Content-Type header must be set to text/html.
	// For plain text, it's text/plain. We infer based on simple body content.
	contentType := "text/plain; charset=UTF-8"
	if strings.Contains(strings.ToLower(body), "<html>") || strings.Contains(strings.ToLower(body), "<p>") {
		contentType = "text/html; charset=UTF-8"
	}

	message := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: %s\r\n"+
		"\r\n"+
		"%s\r\n", recipient, m.sender, subject, contentType, body))

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)

	if err := smtp.SendMail(m.host+":"+m.port, auth, m.sender, []string{recipient}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
