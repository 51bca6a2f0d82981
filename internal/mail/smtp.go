package mail

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Security selects how the SMTP session is encrypted.
type Security string

const (
	// SecuritySSL wraps the connection in TLS before the SMTP greeting.
	SecuritySSL Security = "ssl"
	// SecuritySTARTTLS connects in plaintext and upgrades with STARTTLS.
	SecuritySTARTTLS Security = "starttls"
)

const DefaultTimeout = 10 * time.Second

// DefaultPort returns the conventional submission port for a mode.
func DefaultPort(sec Security) int {
	if sec == SecuritySTARTTLS {
		return 587
	}
	return 465
}

// TransportError wraps a failure in one SMTP phase.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smtp %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SMTPSender opens one authenticated session per Send and always closes it.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	Security Security
	Timeout  time.Duration
	// RootCAs overrides the system pool when verifying the server.
	RootCAs *x509.CertPool
	Now     func() time.Time
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return &TransportError{Op: "rcpt", Err: errors.New("no recipients")}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	raw, err := msg.Bytes(now())
	if err != nil {
		return &TransportError{Op: "build", Err: err}
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if s.Security == SecuritySTARTTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return &TransportError{Op: "starttls", Err: errors.New("server does not support STARTTLS")}
		}
		if err := client.StartTLS(s.tlsConfig()); err != nil {
			return &TransportError{Op: "starttls", Err: err}
		}
	}

	if s.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
			return &TransportError{Op: "auth", Err: err}
		}
	}
	if err := client.Mail(msg.From); err != nil {
		return &TransportError{Op: "mail", Err: err}
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return &TransportError{Op: "rcpt", Err: err}
		}
	}

	w, err := client.Data()
	if err != nil {
		return &TransportError{Op: "data", Err: err}
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return &TransportError{Op: "data", Err: err}
	}
	if err := w.Close(); err != nil {
		return &TransportError{Op: "data", Err: err}
	}
	if err := client.Quit(); err != nil {
		return &TransportError{Op: "quit", Err: err}
	}
	return nil
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	port := s.Port
	if port == 0 {
		port = DefaultPort(s.Security)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(port))
	dialer := &net.Dialer{}

	var (
		conn net.Conn
		err  error
	)
	if s.Security == SecuritySTARTTLS {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig()}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: "greeting", Err: err}
	}
	return client, nil
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName: s.Host,
		RootCAs:    s.RootCAs,
		MinVersion: tls.VersionTLS12,
	}
}
