package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/davidahmann/callrelay/internal/transcript"
)

func testEvent() transcript.Event {
	return transcript.Event{
		Name:         "Jan",
		PhoneNumber:  "+31612345678",
		EmailAddress: transcript.DefaultEmailAddress,
		Transcript:   "Hallo, ik bel over mijn bestelling.\n  Graag terugbellen.",
		Caller:       "Jan",
		ReceivedAt:   time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC),
	}
}

func TestRenderPlainDefaultSubject(t *testing.T) {
	r, err := NewRenderer("", FormatPlain, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.Render(testEvent())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Subject != "Nieuw gesprek van Jan (+31612345678)" {
		t.Fatalf("unexpected subject: %q", out.Subject)
	}
	if out.BodyHTML != "" {
		t.Fatalf("expected no html body in plain mode")
	}
	for _, want := range []string{
		"Naam: Jan",
		"Telefoonnummer: +31612345678",
		"E-mailadres: geen e-mailadres opgegeven",
		"Tijdstip: 14-03-2025 09:26",
		"Transcript:\nHallo, ik bel over mijn bestelling.\n  Graag terugbellen.",
	} {
		if !strings.Contains(out.BodyPlain, want) {
			t.Fatalf("plain body missing %q:\n%s", want, out.BodyPlain)
		}
	}
	if strings.Contains(out.BodyPlain, "Audio:") {
		t.Fatalf("unexpected audio line")
	}
}

func TestRenderFixedSubject(t *testing.T) {
	r, err := NewRenderer("Nieuw transcript ontvangen", FormatPlain, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.Render(testEvent())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Subject != "Nieuw transcript ontvangen" {
		t.Fatalf("unexpected subject: %q", out.Subject)
	}
}

func TestRenderSubjectIsSingleLine(t *testing.T) {
	r, err := NewRenderer("Gesprek van {{.Caller}}", FormatPlain, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	ev := testEvent()
	ev.Caller = "Jan\r\nBcc: x@example.com"
	out, err := r.Render(ev)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.ContainsAny(out.Subject, "\r\n") {
		t.Fatalf("subject contains newline: %q", out.Subject)
	}
}

func TestRenderHTMLEscapesTranscript(t *testing.T) {
	r, err := NewRenderer("", FormatHTML, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	ev := testEvent()
	ev.Transcript = "</td></tr><script>alert(1)</script>\nregel twee"
	ev.Name = "Jan & <Piet>"

	out, err := r.Render(ev)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out.BodyHTML, "<script>") || strings.Contains(out.BodyHTML, "</td></tr><script>") {
		t.Fatalf("transcript was not escaped:\n%s", out.BodyHTML)
	}
	if !strings.Contains(out.BodyHTML, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Fatalf("expected escaped transcript:\n%s", out.BodyHTML)
	}
	if !strings.Contains(out.BodyHTML, "Jan &amp; &lt;Piet&gt;") {
		t.Fatalf("expected escaped name:\n%s", out.BodyHTML)
	}
	if !strings.Contains(out.BodyHTML, "<pre style=\"white-space: pre-wrap;\">&lt;/td&gt;") {
		t.Fatalf("expected preformatted transcript row:\n%s", out.BodyHTML)
	}
	if strings.Count(out.BodyHTML, "<tr>") != 5 {
		t.Fatalf("expected 5 rows, got %d", strings.Count(out.BodyHTML, "<tr>"))
	}
	if out.BodyPlain == "" {
		t.Fatalf("expected plain fallback body")
	}
}

func TestRenderWithAudio(t *testing.T) {
	r, err := NewRenderer("", FormatHTML, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.RenderWithAudio(testEvent(), "s3://bucket/transcript.mp3")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out.BodyPlain, "Audio: s3://bucket/transcript.mp3") {
		t.Fatalf("expected audio line:\n%s", out.BodyPlain)
	}
	if strings.Count(out.BodyHTML, "<tr>") != 6 {
		t.Fatalf("expected audio row")
	}
}

func TestRenderLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	r, err := NewRenderer("{{.Timestamp}}", FormatPlain, loc)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.Render(testEvent())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Subject != "14-03-2025 10:26" {
		t.Fatalf("unexpected timestamp: %q", out.Subject)
	}
}

func TestNewRendererErrors(t *testing.T) {
	if _, err := NewRenderer("{{.Name", FormatPlain, nil); err == nil {
		t.Fatalf("expected template parse error")
	}
	if _, err := NewRenderer("", Format("markdown"), nil); err == nil {
		t.Fatalf("expected unknown format error")
	}
	r, err := NewRenderer("", "", nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if r.Format() != FormatPlain {
		t.Fatalf("expected plain default, got %s", r.Format())
	}
	for _, subject := range []string{"{{.Unknown}}", "Gesprek van {{.Naam}}"} {
		if _, err := NewRenderer(subject, FormatPlain, nil); err == nil {
			t.Fatalf("subject %q: expected error for unknown field", subject)
		}
	}
}
