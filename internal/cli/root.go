// Package cli implements the strata command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/strata/internal/modeling"
	"github.com/mesh-intelligence/strata/internal/paths"
	"github.com/mesh-intelligence/strata/internal/sqlite"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app carries the global flags and the state loaded before a subcommand
// runs.
type app struct {
	configDirFlag string
	dataDirFlag   string

	configDir string
	cfg       *viper.Viper
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "strata" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.DiscardHandler)}
	root := &cobra.Command{
		Use:   "strata",
		Short: "Keep conceptual, logical and physical data models in step",
		Long: "Strata stores data models at three layers and synchronizes objects and\n" +
			"relationships across each family of conceptual, logical and physical models.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "__complete" {
				return nil
			}
			return a.load(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDirFlag, "config-dir", "", "configuration directory (default: ./.strata or the user config dir)")
	pf.StringVar(&a.dataDirFlag, "data-dir", "", "data directory (default: ./.strata-db)")
	pf.StringP("output", "o", "", "output format (table|json|yaml)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json)")
	_ = root.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newModelCmd(a))
	root.AddCommand(newObjectCmd(a))
	root.AddCommand(newRelationshipCmd(a))
	root.AddCommand(newMetadataCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newRestoreCmd(a))
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// usageError marks bad flags and arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// exitCode maps an error to exit code 1 when the input was at fault and 2
// otherwise.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ue usageError
	if errors.As(err, &ue) || modeling.IsUserError(err) {
		return exitUserError
	}
	return exitSysError
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// load reads config.yaml and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	dir, err := paths.ResolveConfigDir(a.configDirFlag)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}
	a.configDir = dir

	a.cfg, err = loadConfig(dir, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	a.logger, err = newLogger(cmd.ErrOrStderr(), a.cfg.GetString(cfgKeyLogLevel), a.cfg.GetString(cfgKeyLogFormat))
	if err != nil {
		return usageError{err}
	}
	return nil
}

// dataDir resolves the data directory from flag, config and environment.
func (a *app) dataDir() (string, error) {
	return paths.ResolveDataDir(a.dataDirFlag, a.cfg.GetString(cfgKeyDataDir), a.configDir)
}

// attach opens the store. The caller must Detach it.
func (a *app) attach() (*sqlite.Backend, error) {
	dir, err := a.dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		return nil, fmt.Errorf("attaching store: %w", err)
	}
	a.logger.Debug("attached store", "data_dir", dir)
	return backend, nil
}

// withService runs fn against a freshly attached store.
func (a *app) withService(fn func(svc *modeling.Service, store *sqlite.Backend) error) error {
	store, err := a.attach()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Detach(); err != nil {
			a.logger.Warn("detaching store", "err", err)
		}
	}()
	return fn(modeling.NewService(store, a.logger), store)
}

// printer returns a printer for the configured output format.
func (a *app) printer(w io.Writer) (*printer, error) {
	return newPrinter(w, a.cfg.GetString(cfgKeyOutput))
}
