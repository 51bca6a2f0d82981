package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/davidahmann/callrelay/internal/logging"
)

const (
	DefaultMaxBodyBytes = 1 << 20

	msgOnline        = "API is online"
	msgDebugReceived = "debug received"
	msgTooLarge      = "payload too large"
)

type Handler struct {
	Dispatcher   *Dispatcher
	MaxBodyBytes int64
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		writeText(w, http.StatusBadRequest, MsgMissingBody)
		return
	}

	// An accepted webhook runs to completion even if the caller hangs up.
	ctx := context.WithoutCancel(r.Context())
	res := h.Dispatcher.HandleWebhook(ctx, body, r.Header.Get("Content-Type"))
	writeText(w, res.Status, res.Message)
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, msgOnline)
}

// Debug logs whatever the caller sent and always answers 200.
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), nil)
	body, err := h.readBody(w, r)
	if err != nil {
		log.WithError(err).Warn("debug: read body")
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		parsed = nil
	}
	log.WithFields(logrus.Fields{
		"headers": redactHeaders(r.Header),
		"body":    string(body),
		"json":    parsed,
	}).Info("debug webhook")

	writeText(w, http.StatusOK, msgDebugReceived)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	defer func(Body io.ReadCloser) { _ = Body.Close() }(r.Body)
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie", "Proxy-Authorization":
			out[k] = "[redacted]"
		default:
			out[k] = strings.Join(v, ", ")
		}
	}
	return out
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
