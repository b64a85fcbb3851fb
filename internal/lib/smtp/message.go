package smtp

import (
	"bytes"
	"mime"
	"strings"
	"time"
)

var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

// Message письмо с текстовым телом в UTF-8.
// Пустой From заменяется адресом отправителя транспорта.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Bytes собирает письмо для команды DATA. Тема с не-ASCII символами
// кодируется по RFC 2047, переводы строк тела приводятся к CRLF.
func (m Message) Bytes(date time.Time) []byte {
	var b bytes.Buffer
	header := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(headerSanitizer.Replace(value))
		b.WriteString("\r\n")
	}

	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", headerSanitizer.Replace(m.Subject)))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}
