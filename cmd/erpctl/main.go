// cmd/erpctl/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ammerola/erp-admin/internal/client"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
	"github.com/ammerola/erp-admin/internal/pkg/logger"
)

// Version is injected at build time
var Version = "dev"

const clientKey = "client"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "erpctl:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for usage errors, 3 when the API rejected the credentials
// and 1 otherwise.
func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return 3
	}
	return 1
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "erpctl",
		Usage:   "command-line client for the ERP admin API",
		Version: Version,
		// main decides the exit code
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080/api/v1", EnvVars: []string{"ERP_URL"}, Usage: "API base URL"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"ERP_TOKEN"}, Usage: "bearer token"},
			&cli.StringFlag{Name: "token-file", EnvVars: []string{"ERP_TOKEN_FILE"}, Usage: "file holding the bearer token"},
			&cli.StringFlag{Name: "jwt-secret", EnvVars: []string{"JWT_SECRET"}, Usage: "sign a short-lived development token with this secret"},
			&cli.StringFlag{Name: "issuer", Value: "erp-admin", EnvVars: []string{"JWT_ISSUER"}},
			&cli.StringFlag{Name: "subject", Value: "erpctl", Usage: "subject of a development token"},
			&cli.StringFlag{Name: "role", Value: "Administrator", Usage: "role of a development token"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "per-request timeout"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "table", Usage: "table or json"},
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			logger.SetupLogger(c.String("log-level"), "text")

			creds, err := credentials(c)
			if err != nil {
				return err
			}
			api, err := client.New(c.String("url"), creds,
				client.WithHTTPClient(&http.Client{Timeout: c.Duration("timeout")}),
				client.WithUserAgent("erpctl/"+Version),
			)
			if err != nil {
				return err
			}
			c.App.Metadata = map[string]any{clientKey: api}
			return nil
		},
		Commands: []*cli.Command{
			invoicesCommand(),
			leadsCommand(),
			rolesCommand(),
			settingsCommand(),
			tokenCommand(),
		},
	}
}

// credentials picks the first configured token source. A signing secret is
// only meant for local development.
func credentials(c *cli.Context) (client.CredentialProvider, error) {
	switch {
	case c.String("token") != "":
		return client.StaticToken(c.String("token")), nil
	case c.String("token-file") != "":
		return client.FileToken(c.String("token-file")), nil
	case c.String("jwt-secret") != "":
		token, err := devToken(c)
		if err != nil {
			return nil, err
		}
		slog.Debug("using development token", slog.String("subject", c.String("subject")), slog.String("role", c.String("role")))
		return client.StaticToken(token), nil
	}
	return client.EnvToken("ERP_TOKEN"), nil
}

func devToken(c *cli.Context) (string, error) {
	return middleware.SignToken([]byte(c.String("jwt-secret")), c.String("issuer"), c.String("subject"), c.String("role"), time.Hour)
}

func apiClient(c *cli.Context) *client.Client {
	return c.App.Metadata[clientKey].(*client.Client)
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "print a development token signed with --jwt-secret",
		Action: func(c *cli.Context) error {
			if c.String("jwt-secret") == "" {
				return cli.Exit("--jwt-secret (or JWT_SECRET) is required", 2)
			}
			token, err := devToken(c)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
