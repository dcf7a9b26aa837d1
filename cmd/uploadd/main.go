// Package main implements uploadd, a daemon that uploads files one at a time
// to a configured endpoint and exposes the queue over a control API.
//
// Usage:
//
//	uploadd          run the daemon
//	uploadd token    print a control API token to stdout
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/phrazzld/uploadq/internal/auth"
	"github.com/phrazzld/uploadq/internal/config"
	"github.com/phrazzld/uploadq/internal/platform/logger"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("uploadd: %v", err)
	}
}

// run dispatches the subcommand named by args
func run(ctx context.Context, args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch command {
	case "serve":
		return serve(ctx, cfg)
	case "token":
		// Logs go to stderr so stdout carries only the token
		return printToken(ctx, cfg, logger.New(os.Stderr, cfg.Server.LogLevel), stdout)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// serve runs the daemon until it receives SIGINT or SIGTERM
func serve(ctx context.Context, cfg *config.Config) error {
	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"abort_policy", cfg.Queue.AbortPolicy)
	if cfg.Database.URL != "" {
		appLogger.Debug("Database configuration", "url_present", true)
	}
	if cfg.Broker.URL != "" {
		appLogger.Debug("Broker configuration", "url_present", true, "exchange", cfg.Broker.Exchange)
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// printToken writes a control-scope token followed by a newline
func printToken(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	tokens, err := auth.NewTokenSource(cfg.Auth, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize token source: %w", err)
	}
	token, err := tokens.TokenFor(ctx, auth.ControlScope)
	if err != nil {
		return fmt.Errorf("failed to create control token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
