// Package notify renders a transcript.Event into an email subject and body.
package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/davidahmann/callrelay/internal/transcript"
)

// Format selects the body rendering mode.
type Format string

const (
	FormatPlain Format = "plain"
	FormatHTML  Format = "html"
)

const (
	DefaultSubject  = "Nieuw gesprek van {{.Name}} ({{.PhoneNumber}})"
	TimestampLayout = "02-01-2006 15:04"
)

// Rendered is the output of Render. BodyHTML is empty in plain mode.
type Rendered struct {
	Subject   string
	BodyPlain string
	BodyHTML  string
}

// Renderer is safe for concurrent use once constructed.
type Renderer struct {
	subject  *texttemplate.Template
	format   Format
	location *time.Location
}

// view is the data handed to every template.
type view struct {
	Name          string
	PhoneNumber   string
	EmailAddress  string
	Caller        string
	Transcript    string
	Timestamp     string
	AudioLocation string
}

var plainBody = texttemplate.Must(texttemplate.New("plain").Parse(`Nieuw gesprek ontvangen:

Naam: {{.Name}}
Telefoonnummer: {{.PhoneNumber}}
E-mailadres: {{.EmailAddress}}
Tijdstip: {{.Timestamp}}
{{- if .AudioLocation}}
Audio: {{.AudioLocation}}
{{- end}}

Transcript:
{{.Transcript}}
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
<h2>Nieuw gesprek ontvangen</h2>
<table border="1" cellpadding="6" cellspacing="0" style="border-collapse: collapse;">
<tr><th align="left">Tijdstip</th><td>{{.Timestamp}}</td></tr>
<tr><th align="left">Naam</th><td>{{.Name}}</td></tr>
<tr><th align="left">Telefoonnummer</th><td>{{.PhoneNumber}}</td></tr>
<tr><th align="left">Transcript</th><td>{{.Transcript}}</td></tr>
<tr><th align="left">Transcript (opgemaakt)</th><td><pre style="white-space: pre-wrap;">{{.Transcript}}</pre></td></tr>
{{- if .AudioLocation}}
<tr><th align="left">Audio</th><td>{{.AudioLocation}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

// NewRenderer parses the subject template and executes it once, so a
// template naming an unknown field is rejected here rather than per request.
// An empty subject selects DefaultSubject; a subject without actions is used
// as a fixed literal.
// A nil location renders timestamps in the event's own zone.
func NewRenderer(subject string, format Format, location *time.Location) (*Renderer, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	tmpl, err := texttemplate.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	if err := tmpl.Execute(io.Discard, view{}); err != nil {
		return nil, fmt.Errorf("check subject template: %w", err)
	}
	switch format {
	case "":
		format = FormatPlain
	case FormatPlain, FormatHTML:
	default:
		return nil, fmt.Errorf("unknown email format %q", format)
	}
	return &Renderer{subject: tmpl, format: format, location: location}, nil
}

func (r *Renderer) Format() Format { return r.format }

// Render formats ev. The timestamp is taken from ev.ReceivedAt.
func (r *Renderer) Render(ev transcript.Event) (Rendered, error) {
	return r.RenderWithAudio(ev, "")
}

// RenderWithAudio is Render plus a reference to where synthesized audio was
// stored.
func (r *Renderer) RenderWithAudio(ev transcript.Event, audioLocation string) (Rendered, error) {
	ts := ev.ReceivedAt
	if r.location != nil {
		ts = ts.In(r.location)
	}
	v := view{
		Name:          ev.Name,
		PhoneNumber:   ev.PhoneNumber,
		EmailAddress:  ev.EmailAddress,
		Caller:        ev.Caller,
		Transcript:    ev.Transcript,
		Timestamp:     ts.Format(TimestampLayout),
		AudioLocation: audioLocation,
	}

	var subject bytes.Buffer
	if err := r.subject.Execute(&subject, v); err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}

	var plain bytes.Buffer
	if err := plainBody.Execute(&plain, v); err != nil {
		return Rendered{}, fmt.Errorf("render plain body: %w", err)
	}

	out := Rendered{
		Subject:   singleLine(subject.String()),
		BodyPlain: plain.String(),
	}
	if r.format == FormatHTML {
		var html bytes.Buffer
		if err := htmlBody.Execute(&html, v); err != nil {
			return Rendered{}, fmt.Errorf("render html body: %w", err)
		}
		out.BodyHTML = html.String()
	}
	return out, nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
