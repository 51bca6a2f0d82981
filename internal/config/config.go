// Package config loads the gateway configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
)

type Config struct {
	ListenAddr string
	SMTP       SMTPConfig
	Email      EmailConfig
	Synthesis  SynthesisConfig
	Audio      AudioConfig
	Log        LogConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Security string
	Timeout  time.Duration
}

type EmailConfig struct {
	Format  string
	Subject string
}

type SynthesisConfig struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	BaseURL    string
	Stability  float64
	Similarity float64
	Style      float64
	Speed      float64
}

type AudioConfig struct {
	Dir        string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

type LogConfig struct {
	Level  string
	Format string
}

// MissingError lists required options that were not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

const DefaultPort = "5000"

// Defaults holds every value applied when the environment leaves a field
// empty. The SMTP port is derived from the security mode afterwards.
func Defaults() Config {
	return Config{
		SMTP: SMTPConfig{
			Security: "ssl",
			Timeout:  10 * time.Second,
		},
		Email: EmailConfig{
			Format:  "plain",
			Subject: "Nieuw gesprek van {{.Name}} ({{.PhoneNumber}})",
		},
		Synthesis: SynthesisConfig{
			ModelID: "eleven_multilingual_v2",
			BaseURL: "https://api.elevenlabs.io/v1",
		},
		Audio: AudioConfig{
			S3Region: "us-east-1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the environment through getenv. It fails when any required SMTP
// option is absent or a value cannot be parsed.
func Load(getenv func(string) string) (Config, error) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		ListenAddr: env("CALLRELAY_LISTEN_ADDR"),
		SMTP: SMTPConfig{
			Host:     env("SMTP_SERVER"),
			Username: env("SMTP_USERNAME"),
			Password: getenv("SMTP_PASSWORD"),
			From:     env("FROM_EMAIL"),
			To:       env("TO_EMAIL"),
			Security: strings.ToLower(env("SMTP_SECURITY")),
		},
		Email: EmailConfig{
			Format:  strings.ToLower(env("EMAIL_FORMAT")),
			Subject: getenv("EMAIL_SUBJECT"),
		},
		Synthesis: SynthesisConfig{
			APIKey:  env("ELEVENLABS_API_KEY"),
			VoiceID: env("ELEVENLABS_VOICE_ID"),
			ModelID: env("ELEVENLABS_MODEL_ID"),
			BaseURL: strings.TrimRight(env("ELEVENLABS_BASE_URL"), "/"),
		},
		Audio: AudioConfig{
			Dir:        env("AUDIO_DIR"),
			S3Bucket:   env("AUDIO_S3_BUCKET"),
			S3Region:   env("AUDIO_S3_REGION"),
			S3Endpoint: env("AUDIO_S3_ENDPOINT"),
			S3Prefix:   env("AUDIO_S3_PREFIX"),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL"),
			Format: env("LOG_FORMAT"),
		},
	}

	if cfg.ListenAddr == "" {
		port := env("PORT")
		if port == "" {
			port = DefaultPort
		}
		cfg.ListenAddr = ":" + port
	}

	var err error
	if cfg.SMTP.Port, err = intFromEnv(env, "SMTP_PORT"); err != nil {
		return Config{}, err
	}
	if cfg.SMTP.Timeout, err = durationFromEnv(env, "SMTP_TIMEOUT"); err != nil {
		return Config{}, err
	}
	floats := []struct {
		key  string
		dst  *float64
		dflt float64
	}{
		{"ELEVENLABS_STABILITY", &cfg.Synthesis.Stability, 0.5},
		{"ELEVENLABS_SIMILARITY", &cfg.Synthesis.Similarity, 0.75},
		{"ELEVENLABS_STYLE", &cfg.Synthesis.Style, 0},
		{"ELEVENLABS_SPEED", &cfg.Synthesis.Speed, 1.0},
	}
	for _, f := range floats {
		if *f.dst, err = floatFromEnv(env, f.key, f.dflt); err != nil {
			return Config{}, err
		}
	}

	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}

	switch cfg.SMTP.Security {
	case "ssl":
		if cfg.SMTP.Port == 0 {
			cfg.SMTP.Port = 465
		}
	case "starttls":
		if cfg.SMTP.Port == 0 {
			cfg.SMTP.Port = 587
		}
	default:
		return Config{}, fmt.Errorf("invalid SMTP_SECURITY %q: want ssl or starttls", cfg.SMTP.Security)
	}
	if cfg.Email.Format != "plain" && cfg.Email.Format != "html" {
		return Config{}, fmt.Errorf("invalid EMAIL_FORMAT %q: want plain or html", cfg.Email.Format)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	required := []struct{ key, value string }{
		{"SMTP_SERVER", c.SMTP.Host},
		{"SMTP_USERNAME", c.SMTP.Username},
		{"SMTP_PASSWORD", c.SMTP.Password},
		{"FROM_EMAIL", c.SMTP.From},
		{"TO_EMAIL", c.SMTP.To},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

// Recipients splits TO_EMAIL on commas.
func (c SMTPConfig) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Enabled reports whether both the API key and a voice are configured.
func (c SynthesisConfig) Enabled() bool {
	return c.APIKey != "" && c.VoiceID != ""
}

func intFromEnv(env func(string) string, key string) (int, error) {
	v := env(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func durationFromEnv(env func(string) string, key string) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, aerr := strconv.Atoi(v)
		if aerr != nil {
			return 0, fmt.Errorf("invalid %s %q", key, v)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}

func floatFromEnv(env func(string) string, key string, fallback float64) (float64, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, nil
}
