// Package cli wires configuration, storage and the remote into the `tada`
// command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wewew312/todomemes/internal/auth"
	"github.com/wewew312/todomemes/internal/config"
	"github.com/wewew312/todomemes/internal/logging"
	"github.com/wewew312/todomemes/internal/remote"
	"github.com/wewew312/todomemes/internal/repository"
	"github.com/wewew312/todomemes/internal/store"
	"github.com/wewew312/todomemes/internal/store/jsonstore"
	"github.com/wewew312/todomemes/internal/store/sqlstore"
	"github.com/wewew312/todomemes/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// closeTimeout bounds how long queued remote mutations may take to drain
// before the process exits.
const closeTimeout = 30 * time.Second

// usageError marks errors caused by bad input rather than a failed
// operation; they exit with ExitUsage.
type usageError struct {
	err  error
	hint string
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageArgs turns cobra's positional-argument errors into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err, hint: "usage: " + cmd.UseLine()}
		}
		return nil
	}
}

// app holds what commands share. Heavy pieces open lazily so `auth` and
// `serve` never touch the store.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	verbose    bool
	theme      string
	noColor    bool

	cfg   *config.Config
	log   *zap.Logger
	creds *auth.Credentials

	local store.Store
	repo  *repository.Repository
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut, log: zap.NewNop()}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.log.Sync()
	if err == nil {
		return ExitOK
	}

	ui.Fail(errOut, err.Error())
	var ue *usageError
	switch {
	case errors.As(err, &ue):
		if ue.hint != "" {
			ui.Hint(errOut, ue.hint)
		}
		return ExitUsage
	case strings.HasPrefix(err.Error(), "unknown command"):
		return ExitUsage
	}
	return ExitError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tada",
		Short: "tada - a to-do list with local storage and backend sync",
		Long: `tada keeps your to-do list in a local file or database and, when a
backend is configured, mirrors every change to it.

Examples:
  tada add "Buy milk" --importance high --deadline 2025-01-31
  tada ls
  tada done 2
  tada rm 3
  tada sync`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err, hint: "usage: " + cmd.UseLine()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.tada/config.toml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&a.theme, "theme", "", "output theme: "+strings.Join(ui.Themes, ", "))
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		a.addCmd(),
		a.lsCmd(),
		a.showCmd(),
		a.doneCmd(),
		a.rmCmd(),
		a.editCmd(),
		a.syncCmd(),
		a.pullCmd(),
		a.clearCmd(),
		a.exportCmd(),
		a.authCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads configuration and the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.theme != "" {
		cfg.Theme = a.theme
	}
	a.cfg = cfg

	ui.SetTheme(cfg.Theme)
	if a.noColor {
		ui.SetColorForcing(false, true)
	}

	log, err := logging.New(cfg.LogFile, cfg.LogLevel, a.verbose)
	if err != nil {
		return err
	}
	a.log = log
	a.creds = auth.New(cfg.CredentialsPath(), cfg.Token)
	a.log.Debug("config loaded",
		zap.String("path", cfg.Path),
		zap.String("storage", cfg.Storage),
		zap.Bool("offline", cfg.Offline()),
		zap.String("command", cmd.CommandPath()))
	return nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Storage {
	case config.StorageSQLite:
		return sqlstore.Open(ctx, sqlstore.DriverSQLite, a.cfg.DSN, a.log)
	case config.StoragePostgres:
		return sqlstore.Open(ctx, sqlstore.DriverPostgres, a.cfg.DSN, a.log)
	default:
		return jsonstore.Open(a.cfg.JSONPath(), a.log)
	}
}

func (a *app) openRemote() (repository.Remote, error) {
	if a.cfg.Offline() {
		a.log.Info("no base_url configured, working offline")
		return remote.NewStub(a.log), nil
	}
	token, err := a.creds.Token()
	if err != nil {
		return nil, err
	}
	api, err := remote.NewAPI(a.cfg.BaseURL, token, a.cfg.Remote.Timeout)
	if err != nil {
		return nil, err
	}
	api.GenerateFails = a.cfg.Remote.GenerateFails
	return remote.NewClient(api,
		remote.WithLogger(a.log),
		remote.WithDeviceID(a.cfg.DeviceID),
		remote.WithBackoff(remote.Backoff{
			Initial:      a.cfg.Remote.InitialBackoff,
			Max:          a.cfg.Remote.MaxBackoff,
			MaxAttempts:  a.cfg.Remote.MaxAttempts,
			ReadAttempts: a.cfg.Remote.ReadAttempts,
		}),
	), nil
}

// repository opens the store and remote on first use.
func (a *app) repository(ctx context.Context) (*repository.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	local, err := a.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Storage, err)
	}
	rem, err := a.openRemote()
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("remote: %w", err)
	}
	a.local = local
	a.repo = repository.New(local, rem, a.log)
	return a.repo, nil
}

// close drains queued remote work and closes the store.
func (a *app) close() error {
	if a.repo == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.repo.Close(ctx); err != nil {
		a.log.Warn("close", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("some changes were not sent to the backend; run `tada sync` later")
		}
		return err
	}
	return nil
}

// interactive reports whether both ends are a terminal.
func (a *app) interactive() bool {
	f, ok := a.out.(*os.File)
	if !ok || f != os.Stdout || !ui.IsTTY() {
		return false
	}
	in, ok := a.in.(*os.File)
	if !ok {
		return false
	}
	fi, err := in.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
