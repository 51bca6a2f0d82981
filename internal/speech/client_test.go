package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestClientSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key-1" {
			t.Fatalf("unexpected api key header: %s", got)
		}
		var payload synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Text != "hallo" || payload.ModelID != DefaultModelID {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if payload.VoiceSettings.Stability != 0.4 || payload.VoiceSettings.Speed != 1.1 {
			t.Fatalf("voice settings not passed through: %+v", payload.VoiceSettings)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	c := &Client{
		APIKey:   "key-1",
		VoiceID:  "voice-1",
		BaseURL:  srv.URL,
		Settings: VoiceSettings{Stability: 0.4, SimilarityBoost: 0.75, Speed: 1.1},
		HTTP:     srv.Client(),
	}
	audio, err := c.Synthesize(context.Background(), "hallo")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio.Data) != "ID3-audio" || audio.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected audio: %+v", audio)
	}
}

func TestClientSynthesizeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid_api_key"}`))
	}))
	defer srv.Close()

	c := &Client{APIKey: "bad", VoiceID: "v", BaseURL: srv.URL, HTTP: srv.Client()}
	_, err := c.Synthesize(context.Background(), "hallo")
	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if serr.StatusCode != http.StatusUnauthorized || serr.Body != `{"detail":"invalid_api_key"}` {
		t.Fatalf("unexpected error: %+v", serr)
	}
}

func TestClientSynthesizeMissingConfig(t *testing.T) {
	c := &Client{BaseURL: "https://example.test"}
	if _, err := c.Synthesize(context.Background(), "x"); err == nil {
		t.Fatalf("expected missing api key error")
	}
	c.APIKey = "k"
	if _, err := c.Synthesize(context.Background(), "x"); err == nil {
		t.Fatalf("expected missing voice id error")
	}
}

func TestClientDefaultHTTPTimeout(t *testing.T) {
	c := &Client{}
	if got := c.httpClient().Timeout; got != DefaultTimeout {
		t.Fatalf("expected default timeout %s, got %s", DefaultTimeout, got)
	}
	if c.HTTP != nil {
		t.Fatalf("expected client to stay unmodified")
	}

	c = &Client{Timeout: 3 * time.Second}
	if got := c.httpClient().Timeout; got != 3*time.Second {
		t.Fatalf("expected configured timeout, got %s", got)
	}

	custom := &http.Client{Timeout: time.Second}
	c = &Client{HTTP: custom, Timeout: 3 * time.Second}
	if c.httpClient() != custom {
		t.Fatalf("expected configured http client")
	}
}

func TestClientSynthesizeConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	c := &Client{APIKey: "k", VoiceID: "v", BaseURL: srv.URL}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, err := c.Synthesize(context.Background(), "x")
			if err != nil {
				t.Errorf("synthesize: %v", err)
				return
			}
			if string(audio.Data) != "audio" || audio.ContentType == "" {
				t.Errorf("unexpected audio: %+v", audio)
			}
		}()
	}
	wg.Wait()
	if c.HTTP != nil {
		t.Fatalf("expected shared client to stay unmodified")
	}
}
