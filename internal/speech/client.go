// Package speech calls the ElevenLabs text-to-speech API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultModelID = "eleven_multilingual_v2"
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 4 << 10
)

// Audio is a synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// VoiceSettings are passed through to the API unchanged.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	Speed           float64 `json:"speed"`
}

// SynthesisError is returned for any non-200 response.
type SynthesisError struct {
	StatusCode int
	Body       string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("elevenlabs returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls the ElevenLabs text-to-speech endpoint. HTTP is optional; when
// nil, each call uses a client bounded by Timeout (DefaultTimeout if unset).
type Client struct {
	APIKey   string
	VoiceID  string
	ModelID  string
	BaseURL  string
	Settings VoiceSettings
	Timeout  time.Duration
	HTTP     *http.Client
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize converts text to speech with the configured voice. Any non-200
// response is returned as a *SynthesisError. The Client is never modified, so
// one value may serve concurrent requests.
func (c *Client) Synthesize(ctx context.Context, text string) (Audio, error) {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	modelID := c.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	if c.APIKey == "" {
		return Audio{}, fmt.Errorf("missing elevenlabs api key")
	}
	if c.VoiceID == "" {
		return Audio{}, fmt.Errorf("missing elevenlabs voice id")
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:          text,
		ModelID:       modelID,
		VoiceSettings: c.Settings,
	})
	if err != nil {
		return Audio{}, err
	}

	endpoint := baseURL + "/text-to-speech/" + url.PathEscape(c.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("xi-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	res, err := c.httpClient().Do(req)
	if err != nil {
		return Audio{}, err
	}
	defer func(Body io.ReadCloser) { _ = Body.Close() }(res.Body)

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return Audio{}, &SynthesisError{StatusCode: res.StatusCode, Body: string(msg)}
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Audio{}, err
	}
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return Audio{Data: data, ContentType: contentType}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
