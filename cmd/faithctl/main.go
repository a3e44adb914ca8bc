// Command faithctl signs in to Faith Connect from a terminal. Remembered
// sessions are kept in the durable store (a file under ~/.faithconnect by
// default, or Redis/Postgres via FAITH_STORAGE_URL); other sessions last as
// long as the parent shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/faith-connect/faith_connect/internal/apiclient"
	"github.com/faith-connect/faith_connect/internal/auth"
	"github.com/faith-connect/faith_connect/internal/config"
	"github.com/faith-connect/faith_connect/internal/logging"
	"github.com/faith-connect/faith_connect/internal/session"
	"github.com/faith-connect/faith_connect/internal/storage"
)

// env holds everything a command needs. It is built once per invocation.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	client  *apiclient.Client
	store   *session.Store
	manager *auth.Manager
	out     io.Writer
	in      io.Reader
	closers []func() error
}

func (e *env) close() error {
	var errs []error
	for _, fn := range e.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func newEnv(ctx context.Context, cfg config.Config, out io.Writer, in io.Reader) (*env, error) {
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)
	e := &env{cfg: cfg, logger: logger, out: out, in: in}

	durable, closeDurable, err := storage.Open(ctx, cfg.StorageURL, cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("open durable storage: %w", err)
	}
	e.closers = append(e.closers, closeDurable)
	sessionArea := storage.NewFile(cfg.SessionAreaPath())

	e.store = session.New(durable, sessionArea,
		session.WithMaxAge(cfg.RememberMeMaxAge),
		session.WithLogger(logger),
	)
	e.client, err = apiclient.New(cfg.APIURL, e.store,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		_ = e.close()
		return nil, err
	}
	e.manager = auth.NewManager(e.client, e.store,
		auth.WithLogger(logger),
		auth.WithNavigator(auth.NavigatorFunc(func(context.Context, string) {
			fmt.Fprintln(os.Stderr, "Signed out.")
		})),
	)
	return e, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var e *env
	current := func() *env { return e }

	return &cli.App{
		Name:  "faithctl",
		Usage: "sign in to Faith Connect from the terminal",
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e, err = newEnv(c.Context, cfg, c.App.Writer, os.Stdin)
			if err != nil {
				return err
			}
			if !restoresSession(c.Args().First()) {
				return nil
			}
			return e.manager.RestoreSession(c.Context)
		},
		After: func(*cli.Context) error {
			if e == nil {
				return nil
			}
			return e.close()
		},
		Commands: commands(current),
	}
}

// restoresSession reports whether a command needs the stored session restored
// first. logout clears on its own, and restoring a rejected token before it
// would sign out twice.
func restoresSession(command string) bool {
	switch command {
	case "", "help", "h", "asset-url", "logout":
		return false
	}
	return true
}
