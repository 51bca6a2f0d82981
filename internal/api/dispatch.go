package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davidahmann/callrelay/internal/audio"
	"github.com/davidahmann/callrelay/internal/logging"
	"github.com/davidahmann/callrelay/internal/mail"
	"github.com/davidahmann/callrelay/internal/notify"
	"github.com/davidahmann/callrelay/internal/speech"
	"github.com/davidahmann/callrelay/internal/transcript"
)

const (
	MsgMissingBody       = "no valid data received"
	MsgMissingTranscript = "no transcript found"
	MsgSendFailed        = "error sending email"
	MsgDelivered         = "transcript received and emailed"
)

// Result is the HTTP outcome of one webhook delivery.
type Result struct {
	Status  int
	Message string
}

// Dispatcher runs normalize → synthesize → render → send for one request.
// It holds no per-request state; Synthesizer and Audio are optional.
type Dispatcher struct {
	Normalizer  *transcript.Normalizer
	Renderer    *notify.Renderer
	Mailer      mail.Sender
	Synthesizer speech.Synthesizer
	Audio       audio.Store
	From        string
	To          []string
	Log         *logrus.Entry
}

// HandleWebhook ignores cancellation of ctx; every outbound call is bounded by
// its own timeout instead.
func (d *Dispatcher) HandleWebhook(ctx context.Context, body []byte, contentType string) Result {
	ctx = context.WithoutCancel(ctx)
	log := logging.FromContext(ctx, d.Log)

	ev, err := d.Normalizer.Normalize(body, contentType)
	switch {
	case errors.Is(err, transcript.ErrMissingBody):
		log.WithField("content_type", contentType).Info("webhook without usable body")
		return Result{Status: http.StatusBadRequest, Message: MsgMissingBody}
	case errors.Is(err, transcript.ErrMissingTranscript):
		log.WithField("content_type", contentType).Info("webhook without transcript")
		return Result{Status: http.StatusBadRequest, Message: MsgMissingTranscript}
	case err != nil:
		log.WithError(err).Error("normalize webhook")
		return Result{Status: http.StatusBadRequest, Message: MsgMissingBody}
	}
	log = log.WithFields(logrus.Fields{"caller": ev.Name, "number": ev.PhoneNumber})
	log.Info("transcript received")

	attachments, audioLocation := d.synthesize(ctx, log, ev)

	rendered, err := d.Renderer.RenderWithAudio(ev, audioLocation)
	if err != nil {
		log.WithError(err).Error("render notification")
		return Result{Status: http.StatusInternalServerError, Message: MsgSendFailed}
	}

	msg := mail.Message{
		From:        d.From,
		To:          d.To,
		Subject:     rendered.Subject,
		TextBody:    rendered.BodyPlain,
		HTMLBody:    rendered.BodyHTML,
		Attachments: attachments,
	}
	if err := d.Mailer.Send(ctx, msg); err != nil {
		log.WithError(err).Error("send email")
		return Result{Status: http.StatusInternalServerError, Message: MsgSendFailed}
	}

	log.Info("email sent")
	return Result{Status: http.StatusOK, Message: MsgDelivered}
}

// synthesize never fails the request: errors are logged and the email goes
// out without audio.
func (d *Dispatcher) synthesize(ctx context.Context, log *logrus.Entry, ev transcript.Event) ([]mail.Attachment, string) {
	if d.Synthesizer == nil {
		return nil, ""
	}

	started := time.Now()
	clip, err := d.Synthesizer.Synthesize(ctx, ev.Transcript)
	if err != nil {
		entry := log.WithError(err)
		var serr *speech.SynthesisError
		if errors.As(err, &serr) {
			entry = entry.WithField("status", serr.StatusCode)
		}
		entry.Warn("speech synthesis failed, sending email without audio")
		return nil, ""
	}
	log.WithFields(logrus.Fields{
		"bytes":    len(clip.Data),
		"duration": time.Since(started).String(),
	}).Debug("speech synthesized")

	key := audio.NewKey(ev.ReceivedAt)
	if d.Audio != nil {
		location, err := d.Audio.Save(ctx, key, clip)
		if err == nil {
			log.WithField("location", location).Info("audio stored")
			return nil, location
		}
		log.WithError(err).Warn("store audio failed, attaching to email instead")
	}

	return []mail.Attachment{{
		Filename:    key + audio.Extension(clip.ContentType),
		ContentType: clip.ContentType,
		Data:        clip.Data,
	}}, ""
}
