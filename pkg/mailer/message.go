// Package mailer delivers emails through connected accounts: SMTP for imap_smtp accounts,
// the provider HTTP APIs for gmail and outlook accounts.
package mailer

import (
	"bytes"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewMessageID returns an RFC 5322 Message-ID in the sender's domain.
func NewMessageID(from string) string {
	domain := "dripflow.local"
	if _, host, ok := strings.Cut(from, "@"); ok && host != "" {
		domain = host
	}

	return "<" + uuid.New().String() + "@" + domain + ">"
}

// BuildMessage renders an HTML message with the headers every transport needs.
func BuildMessage(from, to, subject, body, messageID string, date time.Time) []byte {
	var buf bytes.Buffer

	header := func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", messageID)
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))

	return buf.Bytes()
}
