package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davidahmann/callrelay/internal/api"
	"github.com/davidahmann/callrelay/internal/audio"
	"github.com/davidahmann/callrelay/internal/config"
	"github.com/davidahmann/callrelay/internal/logging"
	"github.com/davidahmann/callrelay/internal/mail"
	"github.com/davidahmann/callrelay/internal/notify"
	"github.com/davidahmann/callrelay/internal/speech"
	"github.com/davidahmann/callrelay/internal/transcript"
)

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(config.Config) (*http.Server, error)

var (
	runFn  = run
	fatalf = logrus.Fatalf
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("callrelay-gateway: %v", err)
	}
}

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("callrelay-gateway", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (overrides CALLRELAY_LISTEN_ADDR and PORT)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getenv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ListenAddr = firstNonEmpty(*addr, cfg.ListenAddr)
	logging.Configure(cfg.Log.Level, cfg.Log.Format)

	server, err := factory(cfg)
	if err != nil {
		return err
	}

	logging.NewLogger("gateway").WithFields(logrus.Fields{
		"addr":      server.Addr,
		"smtp_host": cfg.SMTP.Host,
		"security":  cfg.SMTP.Security,
		"speech":    cfg.Synthesis.Enabled(),
	}).Info("callrelay-gateway listening")
	if err := listen(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newServer(cfg config.Config) (*http.Server, error) {
	log := logging.NewLogger("webhook")

	renderer, err := notify.NewRenderer(cfg.Email.Subject, notify.Format(cfg.Email.Format), nil)
	if err != nil {
		return nil, err
	}

	d := &api.Dispatcher{
		Normalizer: transcript.NewNormalizer(),
		Renderer:   renderer,
		Mailer: &mail.SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Security: mail.Security(cfg.SMTP.Security),
			Timeout:  cfg.SMTP.Timeout,
		},
		From: cfg.SMTP.From,
		To:   cfg.SMTP.Recipients(),
		Log:  log,
	}

	if cfg.Synthesis.Enabled() {
		d.Synthesizer = &speech.Client{
			APIKey:  cfg.Synthesis.APIKey,
			VoiceID: cfg.Synthesis.VoiceID,
			ModelID: cfg.Synthesis.ModelID,
			BaseURL: cfg.Synthesis.BaseURL,
			Settings: speech.VoiceSettings{
				Stability:       cfg.Synthesis.Stability,
				SimilarityBoost: cfg.Synthesis.Similarity,
				Style:           cfg.Synthesis.Style,
				Speed:           cfg.Synthesis.Speed,
			},
			Timeout: cfg.SMTP.Timeout,
		}
		store, err := audioStore(cfg.Audio, cfg.SMTP.Timeout)
		if err != nil {
			return nil, err
		}
		d.Audio = store
	}

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(&api.Handler{Dispatcher: d}),
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

// audioStore returns nil when no destination is configured; clips are then
// attached to the email.
func audioStore(cfg config.AudioConfig, timeout time.Duration) (audio.Store, error) {
	switch {
	case cfg.S3Bucket != "":
		store, err := audio.NewS3Store(audio.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Prefix:   cfg.S3Prefix,
			Endpoint: cfg.S3Endpoint,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("audio store: %w", err)
		}
		return store, nil
	case cfg.Dir != "":
		return audio.FileStore{Dir: cfg.Dir}, nil
	default:
		return nil, nil
	}
}

// listenAndServe serves until SIGINT or SIGTERM, then drains in-flight
// requests.
func listenAndServe(server *http.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.NewLogger("gateway").Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return http.ErrServerClosed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
