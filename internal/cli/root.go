package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/formsync"
	"github.com/roach88/formsync/internal/remote"
	"github.com/roach88/formsync/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// KeyGenerator overrides the session key generator (for testing).
	// If nil, defaults to formsync.UUIDv7Generator.
	KeyGenerator formsync.KeyGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the formsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formsync",
		Short: "formsync - offline-first questionnaire sync",
		Long: `Collect questionnaire answers page by page, save every page on this
device first and mirror the whole form to a remote form service.

Configuration is read from formsync.toml (or --config), FORMSYNC_*
environment variables and flags, in increasing order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default is ./formsync.toml)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setupLogging installs the default slog handler: text to stderr, debug
// level when verbose.
func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// resolveConfig builds the configuration for cmd. flags maps config keys
// to the names of cmd's flags that override them.
func (o *RootOptions) resolveConfig(cmd *cobra.Command, flags map[string]string) (Config, error) {
	v := newViper()
	for key, name := range flags {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return Config{}, WrapExitError(ExitCommandError, "failed to bind flag", err)
		}
	}
	if err := readConfigFile(v, o.ConfigFile); err != nil {
		return Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	cfg, err := resolveConfig(v)
	if err != nil {
		return Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// openStore opens the local store named by cfg.
func openStore(cfg Config) (*store.Store, error) {
	slog.Debug("opening store", "path", cfg.StorePath)
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}

// closeStore closes st, logging any error.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}

// errNoRemote is returned by offlineRemote for every call.
var errNoRemote = errors.New(keyRemoteBaseURL + " is not configured")

// offlineRemote stands in for the remote when none is configured, so
// pages are still saved locally and reported as not synced.
type offlineRemote struct{}

func (offlineRemote) Create(context.Context, string, form.Values) (string, error) {
	return "", errNoRemote
}

func (offlineRemote) Update(context.Context, string, form.Values) error {
	return errNoRemote
}

// newSynchronizer wires the local store to the configured remote.
func (o *RootOptions) newSynchronizer(cfg Config, st *store.Store) (*formsync.Synchronizer, error) {
	var rem formsync.Remote = offlineRemote{}
	if cfg.RemoteBaseURL == "" {
		slog.Warn("no remote configured, answers are only saved locally")
	} else {
		client, err := remote.New(cfg.RemoteBaseURL, remote.WithTimeout(cfg.RemoteTimeout))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid remote", err)
		}
		rem = client
	}

	var opts []formsync.Option
	if o.KeyGenerator != nil {
		opts = append(opts, formsync.WithKeyGenerator(o.KeyGenerator))
	}
	return formsync.New(st, rem, opts...), nil
}
