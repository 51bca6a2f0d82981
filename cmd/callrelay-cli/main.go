package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidahmann/callrelay/internal/notify"
	"github.com/davidahmann/callrelay/internal/transcript"
)

const (
	defaultAddr    = "http://localhost:5000"
	requestTimeout = 10 * time.Second
)

var exitFn = os.Exit

func main() {
	exitFn(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		_ = newRootCmd(stdin, stdout, stderr).Usage()
		return 2
	}

	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCmd(stdin io.Reader, stdout io.Writer, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "callrelay",
		Short:         "Operator tool for the callrelay webhook gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRenderCmd(), newSendCmd(), newPingCmd())
	return root
}

func newRenderCmd() *cobra.Command {
	var (
		html    bool
		subject string
	)
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render the notification email for a webhook payload",
		Long: `Render normalizes a webhook payload and prints the email the gateway
would send for it. The payload is read from file, or from stdin when no file
is given. Nothing is sent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(cmd, args)
			if err != nil {
				return err
			}

			ev, err := transcript.NewNormalizer().Normalize(body, "")
			if err != nil {
				return err
			}

			format := notify.FormatPlain
			if html {
				format = notify.FormatHTML
			}
			renderer, err := notify.NewRenderer(subject, format, nil)
			if err != nil {
				return err
			}
			out, err := renderer.Render(ev)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Subject: %s\n\n", out.Subject)
			if html {
				fmt.Fprint(w, out.BodyHTML)
				return nil
			}
			fmt.Fprint(w, out.BodyPlain)
			return nil
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "render the HTML body instead of plain text")
	cmd.Flags().StringVar(&subject, "subject", envOrDefault("EMAIL_SUBJECT", ""), "subject template")
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		addr        string
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "POST a webhook payload to a running gateway",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			if contentType == "" {
				contentType = guessContentType(body)
			}

			client := &http.Client{Timeout: requestTimeout}
			resp, err := client.Post(strings.TrimRight(addr, "/")+"/webhook", contentType, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("send webhook: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

			fmt.Fprintf(cmd.OutOrStdout(), "status=%d message=%s\n", resp.StatusCode, strings.TrimSpace(string(respBody)))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gateway returned %d", resp.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOrDefault("CALLRELAY_ADDR", defaultAddr), "gateway base URL")
	cmd.Flags().StringVar(&contentType, "content-type", "", "request content type (guessed from the payload when empty)")
	return cmd
}

func newPingCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a gateway is online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: requestTimeout}
			resp, err := client.Get(strings.TrimRight(addr, "/") + "/")
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gateway returned %d", resp.StatusCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOrDefault("CALLRELAY_ADDR", defaultAddr), "gateway base URL")
	return cmd
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return body, nil
	}
	body, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty payload")
	}
	return body, nil
}

func guessContentType(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return "application/json"
	}
	return "application/x-www-form-urlencoded"
}

func envOrDefault(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
