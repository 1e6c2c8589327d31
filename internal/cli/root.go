// Package cli implements the veilmarket command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/broker"
	"github.com/mesh-intelligence/veilmarket/internal/paths"
	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
	pkgsqlite "github.com/mesh-intelligence/veilmarket/pkg/sqlite"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	as        string
}

// app is the state shared by one command invocation.
type app struct {
	flags     rootFlags
	settings  settings
	configDir string
	dataDir   string
	logger    *slog.Logger
	out       io.Writer
	errOut    io.Writer
}

// usageError marks a command-line mistake that should exit with
// exitUserError.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// NewRootCmd creates the top-level "veilmarket" command with global flags
// and all subcommands registered.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "veilmarket",
		Short: "An anonymous B2B marketplace broker",
		Long: "Veilmarket brokers negotiations between organizations that stay anonymous\n" +
			"to each other until an offer is accepted.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: ./.veilmarket)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&a.flags.as, "as", "", "acting user id (default: user from config)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newSeedCmd(a),
		newListingCmd(a),
		newOfferCmd(a),
		newThreadCmd(a),
		newNotificationsCmd(a),
		newMemberCmd(a),
		newSweepCmd(a),
	)
	return root
}

// Execute runs the CLI against the process arguments and exits.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes args and returns the process exit code. Interrupts cancel
// the command context.
func Run(args []string, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// exitCode maps domain failures and usage mistakes to exitUserError and
// everything else to exitSysError.
func exitCode(err error) int {
	switch types.CodeOf(err) {
	case types.CodeForbidden, types.CodeInvalidTransition, types.CodeConflict,
		types.CodeNotFound, types.CodeInvalidArgument:
		return exitUserError
	}
	var u usageError
	if errors.As(err, &u) {
		return exitUserError
	}
	return exitSysError
}

// load resolves directories, reads the config file and builds the logger.
func (a *app) load() error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config directory: %w", err)
	}
	s, err := loadSettings(configDir)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, s.DataDir, configDir)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	logger, err := newLogger(a.errOut, s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	a.configDir, a.dataDir, a.settings, a.logger = configDir, dataDir, s, logger
	return nil
}

// config is the backend configuration for this invocation.
func (a *app) config() types.Config {
	return types.Config{
		Backend:       a.settings.Backend,
		DataDir:       a.dataDir,
		OfferTTL:      a.settings.OfferTTL,
		SweepInterval: a.settings.SweepInterval,
		SweepBatch:    a.settings.SweepBatch,
	}
}

// user returns the acting user: --as, then the config's user.
func (a *app) user() (string, error) {
	if a.flags.as != "" {
		return a.flags.as, nil
	}
	if a.settings.User != "" {
		return a.settings.User, nil
	}
	return "", usageError{errors.New("no acting user: pass --as or set user in config.yaml")}
}

// withBackend attaches the backend for the duration of fn.
func (a *app) withBackend(fn func(*sqlite.Backend) error) (err error) {
	backend, err := pkgsqlite.Open(a.config())
	if err != nil {
		return fmt.Errorf("attach backend: %w", err)
	}
	defer func() {
		if derr := backend.Detach(); derr != nil && err == nil {
			err = fmt.Errorf("detach backend: %w", derr)
		}
	}()
	return fn(backend)
}

// withService runs fn against a broker over an attached backend as the
// acting user.
func (a *app) withService(fn func(svc *broker.Service, userID string) error) error {
	userID, err := a.user()
	if err != nil {
		return err
	}
	return a.withBackend(func(backend *sqlite.Backend) error {
		return fn(a.service(backend), userID)
	})
}

func (a *app) service(backend *sqlite.Backend) *broker.Service {
	return broker.NewService(backend, broker.Options{
		Logger:   a.logger,
		OfferTTL: a.settings.OfferTTL,
	})
}
