package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestRouter(t *testing.T, mailer *fakeMailer) http.Handler {
	t.Helper()
	return NewRouter(&Handler{Dispatcher: newTestDispatcher(t, mailer)})
}

func TestIndex(t *testing.T) {
	router := newTestRouter(t, &fakeMailer{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Body.String() != msgOnline {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestWebhookJSON(t *testing.T) {
	mailer := &fakeMailer{}
	router := newTestRouter(t, mailer)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"name":"Jan","transcription":"Hallo"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-1")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Body.String() != MsgDelivered {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
	if res.Header().Get(requestIDHeader) != "req-1" {
		t.Fatalf("expected request id to be echoed")
	}
	if mailer.count() != 1 {
		t.Fatalf("expected one email")
	}
}

func TestWebhookForm(t *testing.T) {
	mailer := &fakeMailer{}
	router := newTestRouter(t, mailer)

	form := url.Values{}
	form.Set("transcript", "Bel me terug")
	form.Set("number", "0612345678")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(mailer.sent[0].Subject, "0612345678") {
		t.Fatalf("unexpected subject: %s", mailer.sent[0].Subject)
	}
}

func TestWebhookErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		mailer *fakeMailer
		status int
		msg    string
	}{
		{"empty json", `{}`, &fakeMailer{}, http.StatusBadRequest, MsgMissingTranscript},
		{"empty body", ``, &fakeMailer{}, http.StatusBadRequest, MsgMissingBody},
		{"transport failure", `{"transcript":"x"}`, &fakeMailer{err: errors.New("dial tcp 10.0.0.1:465: i/o timeout")}, http.StatusInternalServerError, MsgSendFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, tc.mailer)
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tc.body))
			res := httptest.NewRecorder()
			router.ServeHTTP(res, req)

			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
			if res.Body.String() != tc.msg {
				t.Fatalf("unexpected body: %s", res.Body.String())
			}
			if strings.Contains(res.Body.String(), "i/o timeout") {
				t.Fatalf("transport detail leaked")
			}
		})
	}
}

func TestWebhookCompletesAfterCallerHangUp(t *testing.T) {
	mailer := &fakeMailer{}
	router := newTestRouter(t, mailer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"transcript":"hoi"}`)).WithContext(ctx)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if mailer.count() != 1 || mailer.ctxErr != nil {
		t.Fatalf("expected email sent on a live context, got %d sent, ctx err %v", mailer.count(), mailer.ctxErr)
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	mailer := &fakeMailer{}
	router := NewRouter(&Handler{Dispatcher: newTestDispatcher(t, mailer), MaxBodyBytes: 16})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"transcript":"`+strings.Repeat("a", 64)+`"}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
	if mailer.count() != 0 {
		t.Fatalf("mailer must not be invoked")
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, &fakeMailer{})

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestDebug(t *testing.T) {
	mailer := &fakeMailer{}
	router := newTestRouter(t, mailer)

	for _, body := range []string{`{"transcript":"x"}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/debug", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer secret")
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)

		if res.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", res.Code)
		}
		if res.Body.String() != msgDebugReceived {
			t.Fatalf("unexpected body: %s", res.Body.String())
		}
	}
	if mailer.count() != 0 {
		t.Fatalf("debug must not send email")
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Callflow", "a")
	h.Add("X-Callflow", "b")

	got := redactHeaders(h)
	if got["Authorization"] != "[redacted]" {
		t.Fatalf("expected redacted authorization, got %q", got["Authorization"])
	}
	if got["X-Callflow"] != "a, b" {
		t.Fatalf("unexpected header value: %q", got["X-Callflow"])
	}
}
