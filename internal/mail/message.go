// Package mail renders MIME messages and delivers them over SMTP.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
)

// Message is a single outbound email. TextBody is always sent; HTMLBody is
// added as an alternative part when set.
type Message struct {
	From        string
	To          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

// Bytes renders msg as an RFC 5322 message.
func (m Message) Bytes(date time.Time) ([]byte, error) {
	var body bytes.Buffer
	contentType, err := m.writeBody(&body)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	writeHeader(&out, "From", headerSanitizer.Replace(m.From))
	writeHeader(&out, "To", headerSanitizer.Replace(strings.Join(m.To, ", ")))
	writeHeader(&out, "Subject", mime.QEncoding.Encode("utf-8", headerSanitizer.Replace(m.Subject)))
	writeHeader(&out, "Date", date.Format(time.RFC1123Z))
	writeHeader(&out, "MIME-Version", "1.0")
	writeHeader(&out, "Content-Type", contentType)
	if !strings.HasPrefix(contentType, "multipart/") {
		writeHeader(&out, "Content-Transfer-Encoding", "quoted-printable")
	}
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func (m Message) writeBody(w io.Writer) (string, error) {
	if len(m.Attachments) == 0 {
		if m.HTMLBody == "" {
			return textContentType("text/plain"), writeQuotedPrintable(w, m.TextBody)
		}
		return m.writeAlternative(w)
	}

	mw := multipart.NewWriter(w)
	if m.HTMLBody == "" {
		part, err := mw.CreatePart(textPartHeader("text/plain"))
		if err != nil {
			return "", err
		}
		if err := writeQuotedPrintable(part, m.TextBody); err != nil {
			return "", err
		}
	} else {
		var alt bytes.Buffer
		altType, err := m.writeAlternative(&alt)
		if err != nil {
			return "", err
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {altType}})
		if err != nil {
			return "", err
		}
		if _, err := part.Write(alt.Bytes()); err != nil {
			return "", err
		}
	}

	for _, a := range m.Attachments {
		if err := writeAttachment(mw, a); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return "multipart/mixed; boundary=" + mw.Boundary(), nil
}

func (m Message) writeAlternative(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)
	for _, p := range []struct{ mediaType, content string }{
		{"text/plain", m.TextBody},
		{"text/html", m.HTMLBody},
	} {
		part, err := mw.CreatePart(textPartHeader(p.mediaType))
		if err != nil {
			return "", err
		}
		if err := writeQuotedPrintable(part, p.content); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return "multipart/alternative; boundary=" + mw.Boundary(), nil
}

func writeAttachment(mw *multipart.Writer, a Attachment) error {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", mime.FormatMediaType(contentType, map[string]string{"name": a.Filename}))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	h.Set("Content-Transfer-Encoding", "base64")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(a.Data)
	for len(encoded) > 76 {
		if _, err := io.WriteString(part, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = io.WriteString(part, encoded+"\r\n")
	return err
}

func textContentType(mediaType string) string {
	return mime.FormatMediaType(mediaType, map[string]string{"charset": "UTF-8"})
}

func textPartHeader(mediaType string) textproto.MIMEHeader {
	return textproto.MIMEHeader{
		"Content-Type":              {textContentType(mediaType)},
		"Content-Transfer-Encoding": {"quoted-printable"},
	}
}

func writeQuotedPrintable(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := io.WriteString(qp, s); err != nil {
		return err
	}
	return qp.Close()
}

func writeHeader(w *bytes.Buffer, key, value string) {
	fmt.Fprintf(w, "%s: %s\r\n", key, value)
}
