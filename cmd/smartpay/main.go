// Command smartpay is a terminal client for the SmartPay API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/pkg/client"
)

const usage = `usage: smartpay <command> [flags]

commands:
  signup     create an account and log in
  login      log in and save the session
  logout     revoke and forget the saved session
  wallet     show balance and monthly spending
  add-money  credit the wallet
  set-limit  set the monthly spending limit (0 removes it)
  pay        make a payment
  history    list recent transactions

environment:
  SMARTPAY_API_URL   API base URL (default http://localhost:8080)
  SMARTPAY_SESSION   session file (default ~/.smartpay/session.json)
`

func main() {
	_ = godotenv.Load()
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
	if os.Getenv("SMARTPAY_DEBUG") == "" {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := envFromOS()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve session path")
	}

	if err := run(ctx, os.Args[1:], os.Stdout, env); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type environment struct {
	api   *client.Client
	store client.SessionStore
}

func envFromOS() (*environment, error) {
	baseURL := os.Getenv("SMARTPAY_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	path := os.Getenv("SMARTPAY_SESSION")
	if path == "" {
		var err error
		if path, err = client.DefaultSessionPath(); err != nil {
			return nil, err
		}
	}
	return &environment{
		api:   client.New(baseURL, 0),
		store: client.NewFileStore(path),
	}, nil
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, out io.Writer, env *environment) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}
	log.Debug().Str("command", args[0]).Msg("Running command")
	return cmd(ctx, env, args[1:], out)
}
